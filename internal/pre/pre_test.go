package pre

import (
	"testing"

	"ssaopt/internal/ir"
)

// buildDiamondRedundancy builds a function where both branches of a
// diamond compute the same expression a+b, and the join block recomputes
// it a third time — the classic partially-redundant pattern lazy code
// motion hoists to a single computation per path and replaces downstream.
//
//	entry: cond = ...; br cond, left, right
//	left:  l = a + b; jmp join
//	right: r = a + b; jmp join
//	join:  j = a + b; ret j
func buildDiamondRedundancy() (*ir.Function, map[string]*ir.BasicBlock, map[string]*ir.Value) {
	fn := ir.NewFunction("diamond")
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	a := b.Param("a", ir.IntType{Bits: 64})
	bp := b.Param("b", ir.IntType{Bits: 64})
	cond := b.Param("cond", ir.BoolType{})

	b.SetBr(entry, cond, left, right)

	l := b.NewBinary(left, "l", ir.Add, a, bp, ir.IntType{Bits: 64}).Result()
	b.SetJump(left, join)

	r := b.NewBinary(right, "r", ir.Add, a, bp, ir.IntType{Bits: 64}).Result()
	b.SetJump(right, join)

	j := b.NewBinary(join, "j", ir.Add, a, bp, ir.IntType{Bits: 64}).Result()
	b.SetRet(join, j)

	return fn, map[string]*ir.BasicBlock{"entry": entry, "left": left, "right": right, "join": join},
		map[string]*ir.Value{"l": l, "r": r, "j": j}
}

func TestPRERemovesRedundantJoinComputation(t *testing.T) {
	fn, blocks, _ := buildDiamondRedundancy()

	changed, _ := Run(fn)
	if !changed {
		t.Fatalf("expected PRE to modify the function")
	}

	join := blocks["join"]
	binCount := 0
	for _, inst := range join.Instructions {
		if _, ok := inst.(*ir.BinaryInst); ok {
			binCount++
		}
	}
	if binCount != 0 {
		t.Fatalf("expected the join block's recomputation of a+b to be fully redundant and replaced, found %d binary ops", binCount)
	}

	term := join.Terminator()
	ret, ok := term.(*ir.RetTerm)
	if !ok {
		t.Fatalf("expected a RetTerm in join, got %T", term)
	}
	if ret.Value == nil {
		t.Fatalf("expected the return value to be resolved to a reaching definition")
	}
}

func TestPREIsIdempotent(t *testing.T) {
	fn, _, _ := buildDiamondRedundancy()

	Run(fn)
	changed, _ := Run(fn)
	if changed {
		t.Fatalf("expected a second PRE run over an already-optimized function to report no change")
	}
}

// buildNoRedundancy builds a function with two unrelated expressions that
// never repeat — PRE must not introduce any temporary or rewrite anything.
func buildNoRedundancy() *ir.Function {
	fn := ir.NewFunction("no-redundancy")
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")

	a := b.Param("a", ir.IntType{Bits: 64})
	bp := b.Param("b", ir.IntType{Bits: 64})
	c := b.Param("c", ir.IntType{Bits: 64})

	sum := b.NewBinary(entry, "sum", ir.Add, a, bp, ir.IntType{Bits: 64}).Result()
	b.NewBinary(entry, "prod", ir.Mul, sum, c, ir.IntType{Bits: 64})
	b.SetRet(entry, sum)

	return fn
}

func TestPRELeavesNonRedundantExpressionsAlone(t *testing.T) {
	fn := buildNoRedundancy()
	before := len(fn.Entry.Instructions)

	changed, _ := Run(fn)
	if changed {
		t.Fatalf("expected no change when no expression is computed more than once")
	}
	if got := len(fn.Entry.Instructions); got != before {
		t.Fatalf("expected instruction count to be unchanged, got %d want %d", got, before)
	}
}

// buildCriticalEdgeDiamond builds a CFG where entry->join is a genuine
// critical edge (entry has two successors, join has two predecessors) and
// entry->a->join is not (a has only one successor).
//
//	entry: br cond, a, join
//	a:     jmp join
//	join:  ret
func buildCriticalEdgeDiamond() (*ir.Function, map[string]*ir.BasicBlock) {
	fn := ir.NewFunction("critical")
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	a := b.Block("a")
	join := b.Block("join")

	cond := b.Param("cond", ir.BoolType{})

	b.SetBr(entry, cond, a, join)
	b.SetJump(a, join)
	b.SetRet(join, nil)

	return fn, map[string]*ir.BasicBlock{"entry": entry, "a": a, "join": join}
}

func TestSplitCriticalEdgesSplitsOnlyTrueCriticalEdges(t *testing.T) {
	fn, blocks := buildCriticalEdgeDiamond()
	before := len(fn.Blocks)

	if changed := splitCriticalEdges(fn); !changed {
		t.Fatalf("expected the entry->join critical edge to be split")
	}
	if got := len(fn.Blocks); got != before+1 {
		t.Fatalf("expected exactly one new intermediate block, got %d new blocks", got-before)
	}

	join := blocks["join"]
	for _, p := range join.Preds {
		if len(p.Succs) > 1 {
			t.Fatalf("join still has a predecessor %s with multiple successors", p.Name)
		}
	}

	if changed := splitCriticalEdges(fn); changed {
		t.Fatalf("expected splitCriticalEdges to be idempotent once no critical edges remain")
	}
}

// buildAsymmetricDiamond builds A -> B, A -> C, B -> M, C -> M where only B
// computes x+y; C does not, and M recomputes it a third time. Unlike
// buildDiamondRedundancy (fully symmetric: every branch computes the same
// thing), this is the true S4 shape: one path already has the expression,
// the other doesn't, and both of M's reaching values must unify through a
// phi once the lazy code motion OCPs are materialized on each path.
//
//	entry: br cond, b, c
//	b:     l = x + y; jmp m
//	c:     jmp m
//	m:     j = x + y; ret j
func buildAsymmetricDiamond() (*ir.Function, map[string]*ir.BasicBlock, map[string]*ir.Value) {
	fn := ir.NewFunction("asymmetric")
	bld := ir.NewBuilder(fn)

	entry := bld.Block("entry")
	b := bld.Block("b")
	c := bld.Block("c")
	m := bld.Block("m")

	x := bld.Param("x", ir.IntType{Bits: 64})
	y := bld.Param("y", ir.IntType{Bits: 64})
	cond := bld.Param("cond", ir.BoolType{})

	bld.SetBr(entry, cond, b, c)

	l := bld.NewBinary(b, "l", ir.Add, x, y, ir.IntType{Bits: 64}).Result()
	bld.SetJump(b, m)

	bld.SetJump(c, m)

	j := bld.NewBinary(m, "j", ir.Add, x, y, ir.IntType{Bits: 64}).Result()
	bld.SetRet(m, j)

	return fn, map[string]*ir.BasicBlock{"entry": entry, "b": b, "c": c, "m": m},
		map[string]*ir.Value{"l": l, "j": j}
}

func countBinary(blk *ir.BasicBlock) int {
	n := 0
	for _, inst := range blk.Instructions {
		if _, ok := inst.(*ir.BinaryInst); ok {
			n++
		}
	}
	return n
}

func TestPREHoistsOnTheMissingPathAndUnifiesWithAPhiAtTheMerge(t *testing.T) {
	fn, blocks, _ := buildAsymmetricDiamond()

	changed, _ := Run(fn)
	if !changed {
		t.Fatalf("expected PRE to modify the function")
	}

	b, c, m := blocks["b"], blocks["c"], blocks["m"]

	if got := countBinary(c); got != 1 {
		t.Fatalf("expected c, which never computed x+y originally, to gain exactly one materialized computation, got %d", got)
	}
	if got := countBinary(b); got != 1 {
		t.Fatalf("expected b to still have exactly one x+y computation after its redundant occurrence is replaced, got %d", got)
	}
	if got := countBinary(m); got != 0 {
		t.Fatalf("expected m's recomputation of x+y to be replaced, found %d binary ops left", got)
	}

	phis := m.Phis()
	if len(phis) != 1 {
		t.Fatalf("expected exactly one phi at m unifying b's and c's reaching values, got %d", len(phis))
	}
	phi := phis[0]
	if len(phi.Incoming) != 2 {
		t.Fatalf("expected the merge phi to have two incoming edges, got %d", len(phi.Incoming))
	}
	for _, e := range phi.Incoming {
		if e.Pred != b && e.Pred != c {
			t.Fatalf("phi has an incoming edge from an unexpected predecessor %s", e.Pred.Name)
		}
	}

	term := m.Terminator()
	ret, ok := term.(*ir.RetTerm)
	if !ok {
		t.Fatalf("expected a RetTerm in m, got %T", term)
	}
	if ret.Value != phi.Result() {
		t.Fatalf("expected m's return value to resolve to the merge phi's result")
	}
}

func TestPREAsymmetricDiamondIsIdempotent(t *testing.T) {
	fn, _, _ := buildAsymmetricDiamond()

	Run(fn)
	changed, _ := Run(fn)
	if changed {
		t.Fatalf("expected a second PRE run to report no change once the asymmetric diamond is fixed up")
	}
}

// buildLoopHoist builds a rotated-loop CFG — preheader -> header -> body ->
// {latch, exit}, latch -> header (back edge) — where the header's phi
// defines the loop variable i but the redundant expression a*b does not
// depend on it: a and b are plain parameters, live from entry. Anticipated
// can therefore see past the header (it is never killed there), and Lazy
// Code Motion hoists the body's single occurrence to the preheader, the
// landing-pad position every iteration passes through exactly once.
//
//	preheader: jmp header
//	header:    i = phi [i0: preheader], [i1: latch]; jmp body
//	body:      t = a * b; br cond, latch, exit
//	latch:     i1 = i + 1; jmp header
//	exit:      ret t
func buildLoopHoist() (*ir.Function, map[string]*ir.BasicBlock, map[string]*ir.Value) {
	fn := ir.NewFunction("loophoist")
	bld := ir.NewBuilder(fn)

	preheader := bld.Block("preheader")
	header := bld.Block("header")
	body := bld.Block("body")
	latch := bld.Block("latch")
	exit := bld.Block("exit")

	a := bld.Param("a", ir.IntType{Bits: 64})
	b := bld.Param("b", ir.IntType{Bits: 64})
	i0 := bld.Param("i0", ir.IntType{Bits: 64})
	cond := bld.Param("cond", ir.BoolType{})

	bld.SetJump(preheader, header)

	phi := bld.NewPhi(header, "i", ir.IntType{Bits: 64})
	bld.SetJump(header, body)

	t := bld.NewBinary(body, "t", ir.Mul, a, b, ir.IntType{Bits: 64}).Result()
	bld.SetBr(body, cond, latch, exit)

	one := bld.NewConst(latch, "one", 1, ir.IntType{Bits: 64}).Result()
	i1 := bld.NewBinary(latch, "i1", ir.Add, phi.Result(), one, ir.IntType{Bits: 64}).Result()
	bld.SetJump(latch, header)

	bld.AddIncoming(phi, preheader, i0)
	bld.AddIncoming(phi, latch, i1)

	bld.SetRet(exit, t)

	return fn, map[string]*ir.BasicBlock{"preheader": preheader, "header": header, "body": body, "latch": latch, "exit": exit},
		map[string]*ir.Value{"t": t}
}

func TestPREHoistsALoopInvariantOccurrenceToTheLandingPad(t *testing.T) {
	fn, blocks, vals := buildLoopHoist()

	preheader, body, exit := blocks["preheader"], blocks["body"], blocks["exit"]

	changed, _ := Run(fn)
	if !changed {
		t.Fatalf("expected PRE to modify the function")
	}

	if got := countBinary(body); got != 0 {
		t.Fatalf("expected body's recomputation of a*b to be replaced on every pass through the loop, found %d binary ops left", got)
	}

	hoisted := countBinary(preheader)
	if hoisted != 1 {
		t.Fatalf("expected exactly one a*b materialized at the preheader (the landing pad every iteration enters through), got %d", hoisted)
	}

	var hoistedValue *ir.Value
	for _, inst := range preheader.Instructions {
		if bin, ok := inst.(*ir.BinaryInst); ok {
			hoistedValue = bin.Result()
		}
	}
	if hoistedValue == nil {
		t.Fatalf("expected to find the hoisted binary instruction in the preheader")
	}
	if hoistedValue == vals["t"] {
		t.Fatalf("expected the hoisted value to be a fresh temporary, not body's original t")
	}

	term := exit.Terminator()
	ret, ok := term.(*ir.RetTerm)
	if !ok {
		t.Fatalf("expected a RetTerm in exit, got %T", term)
	}
	if ret.Value != hoistedValue {
		t.Fatalf("expected exit's return value to resolve to the value hoisted to the preheader")
	}
}

func TestPRELoopHoistIsIdempotent(t *testing.T) {
	fn, _, _ := buildLoopHoist()

	Run(fn)
	changed, _ := Run(fn)
	if changed {
		t.Fatalf("expected a second PRE run over the rotated loop to report no change")
	}
}
