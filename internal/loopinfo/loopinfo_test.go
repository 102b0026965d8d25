package loopinfo

import (
	"testing"

	"ssaopt/internal/dominators"
	"ssaopt/internal/ir"
)

// buildSimpleLoop builds a single-latch, single-preheader, single-exit
// loop:
//
//	entry:     jmp preheader
//	preheader: jmp header
//	header:    br cond, body, exit
//	body:      jmp latch
//	latch:     jmp header
//	exit:      ret
func buildSimpleLoop() (*ir.Function, map[string]*ir.BasicBlock) {
	fn := ir.NewFunction("loop")
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	preheader := b.Block("preheader")
	header := b.Block("header")
	body := b.Block("body")
	latch := b.Block("latch")
	exit := b.Block("exit")

	cond := b.Param("cond", ir.BoolType{})

	b.SetJump(entry, preheader)
	b.SetJump(preheader, header)
	b.SetBr(header, cond, body, exit)
	b.SetJump(body, latch)
	b.SetJump(latch, header)
	b.SetRet(exit, nil)

	return fn, map[string]*ir.BasicBlock{
		"entry": entry, "preheader": preheader, "header": header,
		"body": body, "latch": latch, "exit": exit,
	}
}

func TestAnalyzeFindsSimpleLoopStructure(t *testing.T) {
	fn, blocks := buildSimpleLoop()
	doms := dominators.Analyze(fn)
	info := Analyze(fn, doms)

	loop := info.ForHeader(blocks["header"])
	if loop == nil {
		t.Fatalf("expected header to be recognized as a loop header")
	}
	if loop.Latch != blocks["latch"] {
		t.Fatalf("expected latch block, got %v", loop.Latch)
	}
	if loop.Preheader != blocks["preheader"] {
		t.Fatalf("expected preheader block, got %v", loop.Preheader)
	}
	if loop.Exit != blocks["exit"] {
		t.Fatalf("expected exit block, got %v", loop.Exit)
	}
	if len(loop.Blocks) != 3 {
		t.Fatalf("expected 3 blocks in loop body (header, body, latch), got %d", len(loop.Blocks))
	}
	for _, name := range []string{"header", "body", "latch"} {
		if !loop.Contains(blocks[name]) {
			t.Fatalf("expected loop body to contain %s", name)
		}
	}
	if loop.Contains(blocks["preheader"]) || loop.Contains(blocks["exit"]) {
		t.Fatalf("loop body must not contain preheader or exit")
	}
}

func TestAnalyzeReportsNoLoopsForAcyclicFunction(t *testing.T) {
	fn := ir.NewFunction("straight")
	b := ir.NewBuilder(fn)
	a := b.Block("a")
	c := b.Block("c")
	b.SetJump(a, c)
	b.SetRet(c, nil)

	doms := dominators.Analyze(fn)
	info := Analyze(fn, doms)

	if len(info.Loops) != 0 {
		t.Fatalf("expected no loops in an acyclic function, got %d", len(info.Loops))
	}
}

// buildNestedLoop builds an outer loop whose body contains a complete
// inner loop, so Parent-assignment has something to pick between.
//
//	entry:       jmp outer.ph
//	outer.ph:    jmp outer.header
//	outer.header:     br cond, inner.ph, outer.exit
//	inner.ph:    jmp inner.header
//	inner.header:     br cond2, inner.body, outer.latch
//	inner.body:  jmp inner.latch
//	inner.latch: jmp inner.header
//	outer.latch: jmp outer.header
//	outer.exit:  ret
func buildNestedLoop() (*ir.Function, map[string]*ir.BasicBlock) {
	fn := ir.NewFunction("nested")
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	outerPh := b.Block("outer.ph")
	outerHeader := b.Block("outer.header")
	innerPh := b.Block("inner.ph")
	innerHeader := b.Block("inner.header")
	innerBody := b.Block("inner.body")
	innerLatch := b.Block("inner.latch")
	outerLatch := b.Block("outer.latch")
	outerExit := b.Block("outer.exit")

	cond := b.Param("cond", ir.BoolType{})
	cond2 := b.Param("cond2", ir.BoolType{})

	b.SetJump(entry, outerPh)
	b.SetJump(outerPh, outerHeader)
	b.SetBr(outerHeader, cond, innerPh, outerExit)
	b.SetJump(innerPh, innerHeader)
	b.SetBr(innerHeader, cond2, innerBody, outerLatch)
	b.SetJump(innerBody, innerLatch)
	b.SetJump(innerLatch, innerHeader)
	b.SetJump(outerLatch, outerHeader)
	b.SetRet(outerExit, nil)

	return fn, map[string]*ir.BasicBlock{
		"outer.header": outerHeader, "inner.header": innerHeader,
	}
}

func TestAnalyzeAssignsParentForNestedLoops(t *testing.T) {
	fn, blocks := buildNestedLoop()
	doms := dominators.Analyze(fn)
	info := Analyze(fn, doms)

	inner := info.ForHeader(blocks["inner.header"])
	outer := info.ForHeader(blocks["outer.header"])
	if inner == nil || outer == nil {
		t.Fatalf("expected both inner and outer loops to be found")
	}
	if inner.Parent != outer {
		t.Fatalf("expected inner loop's parent to be the outer loop")
	}
	if outer.Parent != nil {
		t.Fatalf("expected outer loop to have no parent, got header %v", outer.Parent.Header)
	}
}
