// Package dataflow implements the generic, monotone iterative dataflow
// solver every analysis in this repository is built from (§4.1 of the
// governing specification). It knows nothing about the IR: a block is
// whatever the caller says it is, identified only by a BlockID, with its
// own GEN/KILL bit-vectors and predecessor/successor lists. Each concrete
// analysis (dominators, faint-variable DCE, the four PRE passes) supplies
// its own Meet and Transfer closures and reads the resulting IN/OUT
// vectors back out of the BlockProps it handed in.
//
// Contract. Given a function CFG, a per-block BlockInfo, a direction, a
// boundary condition (applied to IN of ENTRY blocks in forward mode; to
// OUT of EXIT blocks in backward mode), and an initial condition (applied
// to OUT of every block in forward mode; to IN of every block in backward
// mode), the solver computes a fixpoint assignment of IN/OUT satisfying:
//
//   - forward:  IN(B)  = meet({OUT(P) : P in preds(B)})  if preds nonempty
//     OUT(B) = transfer(B)
//   - backward: OUT(B) = meet({IN(S) : S in succs(B)})   if succs nonempty
//     IN(B)  = transfer(B)
//
// Traversal order. Forward passes iterate blocks in post-order of the
// entry block's DFS tree; backward passes iterate in reverse post-order of
// the same tree. This is what the source this spec was distilled from
// chose; it is not the canonical choice for forward analyses (reverse
// post-order is generally faster there) but is preserved deliberately —
// see the "traversal choice preserved" note in SPEC_FULL.md §9. Traversal order is
// computed once, at solver construction.
//
// Termination. The solver iterates rounds until every block's OUT is
// unchanged from the previous round. Meet and transfer must be monotone
// and the lattice (2^n, the BitSet lattice) finite of height n, so
// termination is guaranteed under standard assumptions.
package dataflow

import (
	"sort"

	"ssaopt/internal/bitset"
)

// Direction is the solve direction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// BlockType classifies a block for boundary-condition purposes. A block is
// ENTRY iff it is the function's entry; EXIT iff it contains a return
// terminator. A pathological single-block function may satisfy both — per
// spec, EXIT wins (each analysis that builds BlockProps assigns it after
// ENTRY, a later assignment).
type BlockType int

const (
	Regular BlockType = iota
	Entry
	Exit
)

// BlockID identifies a block within a single solve. It need not relate to
// any IR-level ID; callers choose the numbering.
type BlockID int

// BlockProps is a block's complete solver-visible state: identity, type,
// CFG edges (fixed for the duration of a solve), and bit-vectors. GEN/KILL
// are supplied by the caller before Run; IN/OUT are written by the solver.
type BlockProps struct {
	ID    BlockID
	Type  BlockType
	Preds []BlockID
	Succs []BlockID

	Gen, Kill *bitset.BitSet
	In, Out   *bitset.BitSet
}

// Meet combines the bit-vectors of a block's relevant neighbors (OUT of
// preds in forward mode, IN of succs in backward mode) into a single
// vector. Standard meets: Intersection (dominators, anticipated,
// will-be-available, postponable, faint) and Union (used).
type Meet func(inputs []*bitset.BitSet, domainSize uint) *bitset.BitSet

// Transfer computes a block's new OUT (forward) or new IN (backward) from
// its current state (In/Out/Gen/Kill, whichever the direction has already
// populated this round) and any auxiliary tables the analysis closes over.
type Transfer func(b *BlockProps) *bitset.BitSet

// Solver runs the fixpoint iteration described in the package doc comment.
type Solver struct {
	direction  Direction
	domainSize uint
	blocks     map[BlockID]*BlockProps
	order      []BlockID // forward: post-order; backward: reverse post-order
	meet       Meet
	transfer   Transfer
	boundary   *bitset.BitSet
	init       *bitset.BitSet
}

// NewSolver constructs a Solver. blocks must include every block of the
// function, each with Preds/Succs already populated; entry is the
// function's entry block, used as the DFS root for traversal-order
// computation. boundary and init are applied during Run's initialization
// phase exactly as described in the package doc comment.
func NewSolver(direction Direction, domainSize uint, blocks []*BlockProps, entry BlockID, meet Meet, transfer Transfer, boundary, init *bitset.BitSet) *Solver {
	byID := make(map[BlockID]*BlockProps, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}
	s := &Solver{
		direction:  direction,
		domainSize: domainSize,
		blocks:     byID,
		meet:       meet,
		transfer:   transfer,
		boundary:   boundary,
		init:       init,
	}
	s.order = computeOrder(byID, entry, direction)
	return s
}

// computeOrder runs a single DFS from entry over successor edges and
// returns the block IDs in post-order (forward) or reverse post-order
// (backward), per the package doc comment's "same DFS tree" rule.
// Unreachable blocks (no path from entry) are appended afterward in
// iteration order over blocks, so every block still gets initialized and
// solved even though reachability-based ordering doesn't cover them.
func computeOrder(blocks map[BlockID]*BlockProps, entry BlockID, direction Direction) []BlockID {
	visited := make(map[BlockID]bool, len(blocks))
	var postOrder []BlockID

	var visit func(id BlockID)
	visit = func(id BlockID) {
		if visited[id] {
			return
		}
		visited[id] = true
		b, ok := blocks[id]
		if !ok {
			return
		}
		for _, succ := range b.Succs {
			visit(succ)
		}
		postOrder = append(postOrder, id)
	}
	visit(entry)

	// Deterministic fallback for blocks the DFS never reached: collect and
	// sort by ID rather than ranging the map directly, whose iteration
	// order Go randomizes.
	var unreached []BlockID
	for id := range blocks {
		if !visited[id] {
			unreached = append(unreached, id)
		}
	}
	sort.Slice(unreached, func(i, j int) bool { return unreached[i] < unreached[j] })
	for _, id := range unreached {
		visited[id] = true
		postOrder = append(postOrder, id)
	}

	if direction == Forward {
		return postOrder
	}
	reversed := make([]BlockID, len(postOrder))
	for i, id := range postOrder {
		reversed[len(postOrder)-1-i] = id
	}
	return reversed
}

// Run iterates rounds to a fixpoint and returns the round count (the
// number of full passes over the traversal order, including the final
// confirming pass that found no change).
func (s *Solver) Run() int {
	s.initialize()

	rounds := 0
	for {
		rounds++
		changed := false
		for _, id := range s.order {
			b := s.blocks[id]
			if s.step(b) {
				changed = true
			}
		}
		if !changed {
			return rounds
		}
	}
}

func (s *Solver) initialize() {
	for _, b := range s.blocks {
		switch s.direction {
		case Forward:
			b.Out = s.init.Clone()
			b.In = bitset.New(s.domainSize)
		case Backward:
			b.In = s.init.Clone()
			b.Out = bitset.New(s.domainSize)
		}
	}
	switch s.direction {
	case Forward:
		for _, b := range s.blocks {
			if b.Type == Entry {
				b.In = s.boundary.Clone()
			}
		}
	case Backward:
		for _, b := range s.blocks {
			if b.Type == Exit {
				b.Out = s.boundary.Clone()
			}
		}
	}
}

// step advances one block by one round and reports whether its OUT
// changed, which is what the solver's convergence check tracks regardless
// of direction.
func (s *Solver) step(b *BlockProps) bool {
	prevOut := b.Out.Clone()

	switch s.direction {
	case Forward:
		if len(b.Preds) > 0 {
			inputs := make([]*bitset.BitSet, len(b.Preds))
			for i, p := range b.Preds {
				inputs[i] = s.blocks[p].Out
			}
			b.In = s.meet(inputs, s.domainSize)
		}
		b.Out = s.transfer(b)
	case Backward:
		if len(b.Succs) > 0 {
			inputs := make([]*bitset.BitSet, len(b.Succs))
			for i, succ := range b.Succs {
				inputs[i] = s.blocks[succ].In
			}
			b.Out = s.meet(inputs, s.domainSize)
		}
		b.In = s.transfer(b)
	}

	return !prevOut.Equal(b.Out)
}

// Intersection is the standard Meet for dominators, anticipated,
// will-be-available, postponable, and faint. An empty input list (a block
// with no relevant neighbors) is handled by the solver itself, which skips
// the meet entirely — Intersection is never called with zero inputs in
// normal operation, but returns the universal set defensively since
// intersection's identity element is U.
func Intersection(inputs []*bitset.BitSet, domainSize uint) *bitset.BitSet {
	if len(inputs) == 0 {
		return bitset.All(domainSize)
	}
	result := inputs[0].Clone()
	for _, in := range inputs[1:] {
		result.InPlaceIntersection(in)
	}
	return result
}

// Union is the standard Meet for the Used pass. Its identity element is
// the empty set.
func Union(inputs []*bitset.BitSet, domainSize uint) *bitset.BitSet {
	result := bitset.New(domainSize)
	for _, in := range inputs {
		result.InPlaceUnion(in)
	}
	return result
}
