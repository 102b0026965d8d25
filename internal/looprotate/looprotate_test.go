package looprotate

import (
	"testing"

	"ssaopt/internal/diagnostics"
	"ssaopt/internal/ir"
)

// buildWhileLoop builds `while (i < n) { body }`:
//
//	entry:     jmp preheader
//	preheader: jmp header
//	header:    i = phi [i0, preheader], [i2, latch]
//	           cond = i < n
//	           br cond, body, exit
//	body:      jmp latch
//	latch:     i2 = i + one
//	           jmp header
//	exit:      ret i
func buildWhileLoop() (*ir.Function, map[string]*ir.BasicBlock) {
	fn := ir.NewFunction("while")
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	preheader := b.Block("preheader")
	header := b.Block("header")
	body := b.Block("body")
	latch := b.Block("latch")
	exit := b.Block("exit")

	i0 := b.Param("i0", ir.IntType{Bits: 64})
	n := b.Param("n", ir.IntType{Bits: 64})
	one := b.Param("one", ir.IntType{Bits: 64})

	b.SetJump(entry, preheader)
	b.SetJump(preheader, header)

	phi := b.NewPhi(header, "i", ir.IntType{Bits: 64})
	cond := b.NewBinary(header, "cond", ir.Lt, phi.Result(), n, ir.BoolType{}).Result()
	b.SetBr(header, cond, body, exit)

	b.SetJump(body, latch)
	i2 := b.NewBinary(latch, "i2", ir.Add, phi.Result(), one, ir.IntType{Bits: 64}).Result()
	b.SetJump(latch, header)

	b.AddIncoming(phi, preheader, i0)
	b.AddIncoming(phi, latch, i2)

	b.SetRet(exit, phi.Result())

	return fn, map[string]*ir.BasicBlock{
		"entry": entry, "preheader": preheader, "header": header,
		"body": body, "latch": latch, "exit": exit,
	}
}

func TestRotateWhileLoopStructuralInvariants(t *testing.T) {
	fn, blocks := buildWhileLoop()

	changed, report := Run(fn)
	if !changed {
		t.Fatalf("expected Run to rotate the loop")
	}

	header := blocks["header"]
	latch := blocks["latch"]
	exit := blocks["exit"]
	body := blocks["body"]
	preheader := blocks["preheader"]

	jump, ok := header.Terminator().(*ir.JumpTerm)
	if !ok {
		t.Fatalf("expected header to end in an unconditional jump, got %T", header.Terminator())
	}
	if jump.Target != body {
		t.Fatalf("expected header to jump straight into the body, got %s", jump.Target.Name)
	}

	br, ok := latch.Terminator().(*ir.BrTerm)
	if !ok {
		t.Fatalf("expected latch to end in a conditional branch, got %T", latch.Terminator())
	}
	if br.TrueBlk != header && br.FalseBlk != header {
		t.Fatalf("expected one of latch's branch targets to be header")
	}
	if br.TrueBlk != exit && br.FalseBlk != exit {
		t.Fatalf("expected one of latch's branch targets to be the unified exit")
	}

	phis := exit.Phis()
	if len(phis) != 1 {
		t.Fatalf("expected exactly one unifying phi at the exit, got %d", len(phis))
	}
	exitPhi := phis[0]
	if v, ok := exitPhi.IncomingFrom(latch); !ok || v == nil {
		t.Fatalf("expected the exit phi to take an incoming value from latch")
	}
	if v, ok := exitPhi.IncomingFrom(preheader); !ok || v == nil {
		t.Fatalf("expected the exit phi to take an incoming value from preheader")
	}

	jumpToCommon, ok := exit.Terminator().(*ir.JumpTerm)
	if !ok {
		t.Fatalf("expected the original exit block to just jump into the split-off common exit, got %T", exit.Terminator())
	}
	commonExit := jumpToCommon.Target
	ret, ok := commonExit.Terminator().(*ir.RetTerm)
	if !ok {
		t.Fatalf("expected the common-exit block to carry the original return, got %T", commonExit.Terminator())
	}
	if ret.Value != exitPhi.Result() {
		t.Fatalf("expected the function's return (an external use of the header phi) to be rewired to the exit phi")
	}
}

func TestRotateIsIdempotentBySkippingAnAlreadyRotatedLoop(t *testing.T) {
	fn, _ := buildWhileLoop()

	Run(fn)
	changed, _ := Run(fn)
	if changed {
		t.Fatalf("expected a second rotation attempt over an already-rotated loop to report no change")
	}
}

func TestRotateSkipsLoopsWithoutAUniquePreheader(t *testing.T) {
	fn := ir.NewFunction("no-preheader")
	b := ir.NewBuilder(fn)

	entryA := b.Block("entryA")
	entryB := b.Block("entryB")
	header := b.Block("header")
	body := b.Block("body")
	latch := b.Block("latch")
	exit := b.Block("exit")

	cond := b.Param("cond", ir.BoolType{})

	b.SetJump(entryA, header)
	b.SetJump(entryB, header)
	b.SetBr(header, cond, body, exit)
	b.SetJump(body, latch)
	b.SetJump(latch, header)
	b.SetRet(exit, nil)

	before := len(fn.Blocks)
	changed, report := Run(fn)
	if changed {
		t.Fatalf("expected no rotation when the loop header has more than one external predecessor")
	}
	if got := len(fn.Blocks); got != before {
		t.Fatalf("expected no new blocks, got %d want %d", got, before)
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
