package pre

import (
	"fmt"

	"ssaopt/internal/diagnostics"
	"ssaopt/internal/ir"
)

// splitCriticalEdges is the rewriter's preprocessing step (§4.6): a block
// with ≥2 predecessors has each of its genuinely critical incoming edges
// split, introducing a single-predecessor intermediate block, so every
// later insertion point is well-defined. It must run before the expression
// domain and the four analyses are built.
//
// An edge p->blk is critical when p has more than one successor (so
// inserting code at the end of p before its terminator would run on every
// one of p's outgoing paths, not just this one) and blk has more than one
// predecessor (so inserting at blk's first insertion point would run
// regardless of which predecessor control arrived from). A merge block
// whose predecessors each have a single successor already has a
// well-defined insertion point and is left alone — splitting it
// unconditionally would re-split the same merge on every subsequent call,
// since a join point's predecessor count never drops to one.
func splitCriticalEdges(fn *ir.Function) bool {
	builder := ir.NewBuilder(fn)
	changed := false
	// Snapshot fn.Blocks first: SplitEdge appends new blocks to fn.Blocks,
	// and this loop must not revisit them.
	targets := append([]*ir.BasicBlock(nil), fn.Blocks...)
	for _, blk := range targets {
		if len(blk.Preds) < 2 {
			continue
		}
		preds := append([]*ir.BasicBlock(nil), blk.Preds...)
		for _, p := range preds {
			if len(p.Succs) < 2 {
				continue
			}
			builder.SplitEdge(p, blk)
			changed = true
		}
	}
	return changed
}

// reachingDef is one (Value, OriginBlock) pair reaching a block for a
// given expression index, per §4.6's replacement-phase state.
type reachingDef struct {
	value  *ir.Value
	origin *ir.BasicBlock
}

// Run performs the full Lazy Code Motion PRE pass over fn: critical-edge
// splitting, the four-pass analysis stack, Optimal-Computation-Point
// insertion, and the topological replacement rewrite. It returns whether
// the IR was modified and a diagnostic Report; it never returns a Go
// error (§7: no exceptions cross a pass boundary).
func Run(fn *ir.Function) (bool, *diagnostics.Report) {
	report := diagnostics.NewReport("pre")
	changed := splitCriticalEdges(fn)

	a := analyze(fn)
	n := a.domain.size()
	if n == 0 {
		return changed, report
	}

	builder := ir.NewBuilder(fn)

	// Insertion phase: materialize a new binary op at the first insertion
	// point of every block/index pair with ToInsert(B)[i] set.
	inserted := make([]map[uint]*ir.Value, len(a.blocks))
	for i, blk := range a.blocks {
		a.toInsert[i].Each(func(idx uint) {
			e := a.domain.expr(idx)
			name := fmt.Sprintf("%s.pre%d", blk.Name, idx)
			inst := builder.NewBinaryAtFirstInsertionPoint(blk, name, e.Op, e.X, e.Y, a.domain.typeOf(idx))
			if inserted[i] == nil {
				inserted[i] = make(map[uint]*ir.Value)
			}
			inserted[i][idx] = inst.Result()
			report.Info(diagnostics.CodeExpressionInserted, ref(blk, e), "inserted temporary for %s", exprString(e))
			changed = true
		})
	}

	// Replacement phase: Kahn's-algorithm topological traversal over the
	// predecessor graph, carrying the reaching-definitions-of-temporaries
	// state described in §4.6.
	state := make([]map[uint][]reachingDef, len(a.blocks))
	for i := range a.blocks {
		state[i] = make(map[uint][]reachingDef)
	}

	inDegree := make([]int, len(a.blocks))
	for i, blk := range a.blocks {
		inDegree[i] = len(blk.Preds)
	}

	queue := []uint{a.index[fn.Entry]}
	visited := make([]bool, len(a.blocks))
	visited[a.index[fn.Entry]] = true

	// Kahn's algorithm stalls at a loop header: its back edge from the
	// latch never reduces in-degree to zero until the latch itself has
	// already run, which can't happen before the header does. When the
	// worklist empties with blocks still unvisited, force the
	// lowest-index unvisited block in (its loop header, on a reducible
	// CFG) and resume draining — every block still gets exactly the same
	// per-block treatment, just not preceded by its back-edge predecessor.
	for {
		for len(queue) > 0 {
			bi := queue[0]
			queue = queue[1:]
			processBlock(a, builder, report, inserted, state, inDegree, visited, &queue, &changed, bi)
		}
		progressed := false
		for i := range a.blocks {
			if !visited[i] {
				visited[i] = true
				queue = append(queue, uint(i))
				progressed = true
				break
			}
		}
		if !progressed {
			break
		}
	}

	return changed, report
}

// processBlock runs one block through the replacement-phase state machine
// described in §4.6 steps 1-4.
func processBlock(a *analysis, builder *ir.Builder, report *diagnostics.Report,
	inserted []map[uint]*ir.Value, state []map[uint][]reachingDef, inDegree []int, visited []bool,
	queue *[]uint, changed *bool, bi uint) {

	blk := a.blocks[bi]

	// Step 1: seed state with every temporary inserted in this block.
	for idx, v := range inserted[bi] {
		state[bi][idx] = append(state[bi][idx], reachingDef{value: v, origin: blk})
	}

	// Step 2: for every expression index with a non-empty reaching set,
	// resolve a single representative value, unifying with a φ if more
	// than one definition reaches.
	repl := make(map[uint]*ir.Value, len(state[bi]))
	for idx, defs := range state[bi] {
		if len(defs) == 0 {
			continue
		}
		if len(defs) == 1 {
			repl[idx] = defs[0].value
			continue
		}
		e := a.domain.expr(idx)
		phi := builder.NewPhi(blk, fmt.Sprintf("%s.phi%d", blk.Name, idx), a.domain.typeOf(idx))
		for _, d := range defs {
			builder.AddIncoming(phi, d.origin, d.value)
		}
		repl[idx] = phi.Result()
		report.Notef(diagnostics.CodeExpressionInserted, ref(blk, e),
			"unified %d reaching temporaries for %s with a phi", len(defs), exprString(e))
	}

	// Step 3: walk the block's instructions, replacing every redundant
	// occurrence with the resolved value.
	for _, inst := range append([]ir.Instruction(nil), blk.Instructions...) {
		bin, ok := inst.(*ir.BinaryInst)
		if !ok {
			continue
		}
		e := Expression{Op: bin.Op, X: bin.X, Y: bin.Y}
		idx, ok := a.domain.indexOf(e)
		if !ok || !a.toReplace[bi].Test(idx) {
			continue
		}
		r, ok := repl[idx]
		if !ok || r == bin.Result() {
			continue
		}
		ir.ReplaceAllUses(bin.Result(), r)
		builder.Erase(bin)
		report.Info(diagnostics.CodeExpressionReplaced, ref(blk, e), "replaced redundant %s", exprString(e))
		*changed = true
	}

	// Step 4: propagate the resolved values to every successor and
	// enqueue it once every predecessor has been processed.
	for _, s := range blk.Succs {
		si := a.index[s]
		for idx, v := range repl {
			state[si][idx] = append(state[si][idx], reachingDef{value: v, origin: blk})
		}
		inDegree[si]--
		if !visited[si] && inDegree[si] <= 0 {
			visited[si] = true
			*queue = append(*queue, si)
		}
	}
}

func exprString(e Expression) string {
	return fmt.Sprintf("%s %s, %s", e.Op, e.X, e.Y)
}

func ref(blk *ir.BasicBlock, e Expression) string {
	return fmt.Sprintf("block %s: %s", blk.Name, exprString(e))
}

// Pass adapts Run to ir.OptimizationPass for use in an OptimizationPipeline.
type Pass struct{}

func (Pass) Name() string        { return "lazy-code-motion-pre" }
func (Pass) Description() string { return "partial redundancy elimination via lazy code motion" }
func (Pass) Apply(fn *ir.Function) bool {
	changed, _ := Run(fn)
	return changed
}
