// Package dominators implements the forward Dominators analysis (§4.2):
// domain is blocks; for each block B, GEN = {B}, KILL = ∅; meet =
// intersection; boundary = ∅ (the entry's IN has no predecessors and is
// initialized empty); init = U. After solving, OUT(B) is the dominator set
// of B.
//
// The immediate dominator of B is the unique D in dom(B) \ {B} such that
// dom(B) \ {B} is a subset of dom(D) — the subset-based definition. The
// original C++ assignment this specification was distilled from has a
// sibling variant with a nested-loop immediate-dominator computation of
// quadratic/cubic shape and a suspect break condition (see DESIGN.md); this
// package deliberately implements only the subset-based definition.
package dominators

import (
	"sort"

	"ssaopt/internal/bitset"
	"ssaopt/internal/dataflow"
	"ssaopt/internal/ir"
)

// Result is the per-function output of the analysis.
type Result struct {
	domainSize uint
	index      map[*ir.BasicBlock]uint
	blocks     []*ir.BasicBlock
	dom        map[*ir.BasicBlock]*bitset.BitSet
	idom       map[*ir.BasicBlock]*ir.BasicBlock // nil for entry / no strict dominator
}

// Dominates reports whether d dominates b (d ∈ dom(b)), including d == b.
func (r *Result) Dominates(d, b *ir.BasicBlock) bool {
	if _, ok := r.index[b]; !ok {
		return false
	}
	di, ok := r.index[d]
	if !ok {
		return false
	}
	return r.dom[b].Test(di)
}

// DominatorSet returns the set of blocks that dominate b, including b
// itself.
func (r *Result) DominatorSet(b *ir.BasicBlock) []*ir.BasicBlock {
	set := r.dom[b]
	if set == nil {
		return nil
	}
	var out []*ir.BasicBlock
	set.Each(func(i uint) { out = append(out, r.blocks[i]) })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ImmediateDominator returns b's immediate dominator, or nil for the entry
// block or a block with no strict dominator.
func (r *Result) ImmediateDominator(b *ir.BasicBlock) *ir.BasicBlock {
	return r.idom[b]
}

// Analyze runs the Dominators analysis over fn and returns the result.
func Analyze(fn *ir.Function) *Result {
	blocks := fn.Blocks
	n := uint(len(blocks))

	index := make(map[*ir.BasicBlock]uint, n)
	for i, b := range blocks {
		index[b] = uint(i)
	}

	props := make([]*dataflow.BlockProps, n)
	for i, b := range blocks {
		typ := dataflow.Regular
		if b == fn.Entry {
			typ = dataflow.Entry
		}
		if isExit(b) {
			typ = dataflow.Exit // EXIT wins over ENTRY per spec's "later assignment" rule
		}
		props[i] = &dataflow.BlockProps{
			ID:    dataflow.BlockID(i),
			Type:  typ,
			Preds: blockIDs(index, b.Preds),
			Succs: blockIDs(index, b.Succs),
			Gen:   bitset.New(n).Set(uint(i)),
			Kill:  bitset.New(n),
		}
	}

	transfer := func(b *dataflow.BlockProps) *bitset.BitSet {
		return b.In.Union(b.Gen)
	}

	solver := dataflow.NewSolver(dataflow.Forward, n, props, dataflow.BlockID(index[fn.Entry]),
		dataflow.Intersection, transfer, bitset.New(n), bitset.All(n))
	solver.Run()

	res := &Result{
		domainSize: n,
		index:      index,
		blocks:     blocks,
		dom:        make(map[*ir.BasicBlock]*bitset.BitSet, n),
		idom:       make(map[*ir.BasicBlock]*ir.BasicBlock, n),
	}
	for i, b := range blocks {
		res.dom[b] = props[i].Out
	}
	for _, b := range blocks {
		res.idom[b] = immediateDominator(res, b)
	}
	return res
}

// immediateDominator finds the unique D in dom(b)\{b} such that
// dom(b)\{b} is a subset of dom(D) (§4.2).
func immediateDominator(r *Result, b *ir.BasicBlock) *ir.BasicBlock {
	strict := r.DominatorSet(b)
	var candidates []*ir.BasicBlock
	for _, d := range strict {
		if d != b {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	for _, d := range candidates {
		if isSubsetExceptSelf(candidates, b, d, r) {
			return d
		}
	}
	return nil
}

// isSubsetExceptSelf reports whether dom(b)\{b} ⊆ dom(d).
func isSubsetExceptSelf(strictDomB []*ir.BasicBlock, b, d *ir.BasicBlock, r *Result) bool {
	domD := r.dom[d]
	for _, s := range strictDomB {
		if !domD.Test(r.index[s]) {
			return false
		}
	}
	return true
}

func isExit(b *ir.BasicBlock) bool {
	term := b.Terminator()
	if term == nil {
		return false
	}
	_, ok := term.(*ir.RetTerm)
	return ok
}

func blockIDs(index map[*ir.BasicBlock]uint, blocks []*ir.BasicBlock) []dataflow.BlockID {
	ids := make([]dataflow.BlockID, len(blocks))
	for i, b := range blocks {
		ids[i] = dataflow.BlockID(index[b])
	}
	return ids
}
