package licm

import (
	"testing"

	"ssaopt/internal/diagnostics"
	"ssaopt/internal/ir"
)

// buildLoopWithInvariant builds a `while (i < n) { t = a + b; u = i + t }`
// loop: t is loop-invariant (both operands are parameters defined outside
// the loop), u is not (it depends on the header's induction-variable φ).
func buildLoopWithInvariant() (*ir.Function, map[string]*ir.BasicBlock, *ir.BinaryInst, *ir.BinaryInst) {
	fn := ir.NewFunction("invariant")
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	preheader := b.Block("preheader")
	header := b.Block("header")
	body := b.Block("body")
	latch := b.Block("latch")
	exit := b.Block("exit")

	i0 := b.Param("i0", ir.IntType{Bits: 64})
	n := b.Param("n", ir.IntType{Bits: 64})
	a := b.Param("a", ir.IntType{Bits: 64})
	bb := b.Param("b", ir.IntType{Bits: 64})
	one := b.Param("one", ir.IntType{Bits: 64})

	b.SetJump(entry, preheader)
	b.SetJump(preheader, header)

	phi := b.NewPhi(header, "i", ir.IntType{Bits: 64})
	cond := b.NewBinary(header, "cond", ir.Lt, phi.Result(), n, ir.BoolType{}).Result()
	b.SetBr(header, cond, body, exit)

	invariant := b.NewBinary(body, "t", ir.Add, a, bb, ir.IntType{Bits: 64})
	variant := b.NewBinary(body, "u", ir.Add, phi.Result(), invariant.Result(), ir.IntType{Bits: 64})
	b.SetJump(body, latch)

	i2 := b.NewBinary(latch, "i2", ir.Add, phi.Result(), one, ir.IntType{Bits: 64}).Result()
	b.SetJump(latch, header)

	b.AddIncoming(phi, preheader, i0)
	b.AddIncoming(phi, latch, i2)

	b.SetRet(exit, nil)

	blocks := map[string]*ir.BasicBlock{
		"entry": entry, "preheader": preheader, "header": header,
		"body": body, "latch": latch, "exit": exit,
	}
	return fn, blocks, invariant, variant
}

func TestHoistsLoopInvariantBinary(t *testing.T) {
	fn, blocks, invariant, variant := buildLoopWithInvariant()
	preheader := blocks["preheader"]
	body := blocks["body"]

	changed, _ := Run(fn)
	if !changed {
		t.Fatalf("expected Run to hoist the invariant instruction")
	}

	if invariant.Block() != preheader {
		t.Fatalf("expected the invariant instruction to move into the preheader, got block %v", invariant.Block())
	}
	n := len(preheader.Instructions)
	if n < 2 || preheader.Instructions[n-2] != invariant {
		t.Fatalf("expected the invariant instruction to sit immediately before the preheader's terminator")
	}
	if preheader.Instructions[n-1] != preheader.Terminator() {
		t.Fatalf("expected the preheader's terminator to remain last after hoisting")
	}

	if variant.Block() != body {
		t.Fatalf("expected the phi-dependent instruction to stay in the body, got block %v", variant.Block())
	}
}

func TestDoesNotHoistPotentiallyTrappingDivision(t *testing.T) {
	fn, blocks, _, _ := buildLoopWithInvariant()
	b := ir.NewBuilder(fn)
	body := blocks["body"]

	a := fn.Params[2]
	bParam := fn.Params[3]
	quotient := b.NewBinary(body, "q", ir.Div, a, bParam, ir.IntType{Bits: 64})

	Run(fn)

	if quotient.Block() != body {
		t.Fatalf("expected a division to stay in the body even though its operands are invariant, got block %v", quotient.Block())
	}
}

func TestSkipsLoopsWithoutAUniquePreheader(t *testing.T) {
	fn := ir.NewFunction("no-preheader")
	b := ir.NewBuilder(fn)

	entryA := b.Block("entryA")
	entryB := b.Block("entryB")
	header := b.Block("header")
	body := b.Block("body")
	latch := b.Block("latch")
	exit := b.Block("exit")

	cond := b.Param("cond", ir.BoolType{})
	a := b.Param("a", ir.IntType{Bits: 64})
	bb := b.Param("b", ir.IntType{Bits: 64})

	b.SetJump(entryA, header)
	b.SetJump(entryB, header)
	b.SetBr(header, cond, body, exit)
	sum := b.NewBinary(body, "t", ir.Add, a, bb, ir.IntType{Bits: 64})
	b.SetJump(body, latch)
	b.SetJump(latch, header)
	b.SetRet(exit, nil)

	changed, report := Run(fn)
	if changed {
		t.Fatalf("expected no hoisting when the loop header has more than one external predecessor")
	}
	if sum.Block() != body {
		t.Fatalf("expected the candidate instruction to stay put")
	}

	found := false
	for _, e := range report.Entries {
		if e.Code == diagnostics.CodeMalformedPrecondition {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a malformed-precondition diagnostic")
	}
}
