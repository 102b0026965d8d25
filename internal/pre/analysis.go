package pre

import (
	"ssaopt/internal/bitset"
	"ssaopt/internal/dataflow"
	"ssaopt/internal/ir"
)

// genKill computes a block's per-block GEN/KILL over the expression domain
// with a single forward pass (§4.4):
//  1. For each binary op I with expression e: if e is in the domain, set
//     GEN[e].
//  2. For every e' in the domain whose operand1 or operand2 identity
//     equals the value I defines, set KILL[e'] and clear GEN[e'] — "an
//     expression is killed when either of its operands is redefined in B."
func genKill(d *domain, blk *ir.BasicBlock) (gen, kill *bitset.BitSet) {
	n := d.size()
	gen = bitset.New(n)
	kill = bitset.New(n)

	for _, inst := range blk.Instructions {
		if bin, ok := inst.(*ir.BinaryInst); ok {
			if idx, ok := d.indexOf(Expression{Op: bin.Op, X: bin.X, Y: bin.Y}); ok {
				gen.Set(idx)
			}
		}
		if res := inst.Result(); res != nil {
			for _, idx := range d.usersOf[res] {
				kill.Set(idx)
				gen.Reset(idx)
			}
		}
	}
	return gen, kill
}

// analysis holds every per-block set the four-pass stack and its
// derivations produce, indexed the same way as fn.Blocks.
type analysis struct {
	fn     *ir.Function
	domain *domain
	blocks []*ir.BasicBlock
	index  map[*ir.BasicBlock]uint

	gen, kill []*bitset.BitSet

	anticipatedIn      []*bitset.BitSet
	willBeAvailableIn  []*bitset.BitSet
	earliest           []*bitset.BitSet
	postponableIn      []*bitset.BitSet
	latest             []*bitset.BitSet
	usedOut            []*bitset.BitSet
	toInsert, toReplace []*bitset.BitSet
}

// analyze runs the full PRE analysis stack over fn. fn's CFG must already
// have had critical edges split (the rewriter's preprocessing step) — this
// function does not mutate the IR.
func analyze(fn *ir.Function) *analysis {
	d := buildDomain(fn)
	n := d.size()

	blocks := fn.Blocks
	index := make(map[*ir.BasicBlock]uint, len(blocks))
	for i, b := range blocks {
		index[b] = uint(i)
	}

	a := &analysis{fn: fn, domain: d, blocks: blocks, index: index}
	if n == 0 {
		return a
	}

	gen := make([]*bitset.BitSet, len(blocks))
	kill := make([]*bitset.BitSet, len(blocks))
	for i, blk := range blocks {
		gen[i], kill[i] = genKill(d, blk)
	}
	a.gen, a.kill = gen, kill

	preds := blockIDLists(index, blocks, func(b *ir.BasicBlock) []*ir.BasicBlock { return b.Preds })
	succs := blockIDLists(index, blocks, func(b *ir.BasicBlock) []*ir.BasicBlock { return b.Succs })
	entryID := dataflow.BlockID(index[fn.Entry])

	// 1. Anticipated (backward): boundary ∅ at exit, init U, meet = ∩.
	//    IN = (OUT ∩ ¬KILL) ∪ GEN.
	anticipated := solveBackward(n, blocks, preds, succs, entryID, gen, kill,
		dataflow.Intersection, bitset.New(n), bitset.All(n),
		func(i int, out *bitset.BitSet) *bitset.BitSet {
			return out.Difference(kill[i]).Union(gen[i])
		})
	a.anticipatedIn = anticipated

	// 2. WillBeAvailable (forward): boundary ∅ at entry, init U.
	//    OUT = (IN ∪ Anticipated.IN(B)) ∩ ¬KILL.
	willBeAvailable := solveForward(n, blocks, preds, succs, entryID, gen, kill,
		bitset.New(n), bitset.All(n),
		func(i int, in *bitset.BitSet) *bitset.BitSet {
			return in.Union(anticipated[i]).Difference(kill[i])
		})
	a.willBeAvailableIn = forwardIn(n, blocks, preds, willBeAvailable, bitset.New(n))

	// 3. Earliest(B) = Anticipated.IN(B) ∩ ¬WillBeAvailable.IN(B).
	earliest := make([]*bitset.BitSet, len(blocks))
	for i := range blocks {
		earliest[i] = anticipated[i].Difference(a.willBeAvailableIn[i])
	}
	a.earliest = earliest

	// 4. Postponable (forward): boundary ∅ at entry, init U.
	//    OUT = (IN ∪ Earliest(B)) ∩ ¬GEN.
	postponable := solveForward(n, blocks, preds, succs, entryID, gen, kill,
		bitset.New(n), bitset.All(n),
		func(i int, in *bitset.BitSet) *bitset.BitSet {
			return in.Union(earliest[i]).Difference(gen[i])
		})
	a.postponableIn = forwardIn(n, blocks, preds, postponable, bitset.New(n))

	// 5. Latest(B) = (Earliest(B) ∪ Postponable.IN(B)) ∩
	//    (GEN(B) ∪ ¬⋂_{S∈succ(B)} (Earliest(S) ∪ Postponable.IN(S))).
	latest := make([]*bitset.BitSet, len(blocks))
	for i := range blocks {
		lhs := earliest[i].Union(a.postponableIn[i])
		var succInter *bitset.BitSet
		for _, sid := range succs[i] {
			s := int(sid)
			avail := earliest[s].Union(a.postponableIn[s])
			if succInter == nil {
				succInter = avail
			} else {
				succInter = succInter.Intersection(avail)
			}
		}
		if succInter == nil {
			succInter = bitset.All(n) // empty ⋂ over successors: no successor can veto
		}
		rhs := gen[i].Union(succInter.Complement())
		latest[i] = lhs.Intersection(rhs)
	}
	a.latest = latest

	// 6. Used (backward): boundary ∅, init ∅, meet = ∪.
	//    IN = (OUT ∪ GEN) ∩ ¬Latest(B).
	used := solveBackward(n, blocks, preds, succs, entryID, gen, kill,
		dataflow.Union, bitset.New(n), bitset.New(n),
		func(i int, out *bitset.BitSet) *bitset.BitSet {
			return out.Union(gen[i]).Difference(latest[i])
		})
	a.usedOut = backwardOut(n, blocks, succs, used, bitset.New(n))

	toInsert := make([]*bitset.BitSet, len(blocks))
	toReplace := make([]*bitset.BitSet, len(blocks))
	for i := range blocks {
		toInsert[i] = a.usedOut[i].Intersection(latest[i])
		toReplace[i] = a.usedOut[i].Union(latest[i].Complement()).Intersection(gen[i])
	}
	a.toInsert, a.toReplace = toInsert, toReplace

	return a
}

// solveBackward runs a backward dataflow.Solver whose transfer only needs
// this block's own OUT (the meet result), and returns IN per block index.
func solveBackward(n uint, blocks []*ir.BasicBlock, preds, succs [][]dataflow.BlockID, entry dataflow.BlockID,
	gen, kill []*bitset.BitSet, meet dataflow.Meet, boundary, init *bitset.BitSet,
	transfer func(i int, out *bitset.BitSet) *bitset.BitSet) []*bitset.BitSet {

	props := newProps(blocks, preds, succs, entry, gen, kill)
	solver := dataflow.NewSolver(dataflow.Backward, n, props, entry, meet,
		func(b *dataflow.BlockProps) *bitset.BitSet { return transfer(int(b.ID), b.Out) },
		boundary, init)
	solver.Run()
	out := make([]*bitset.BitSet, len(blocks))
	for i, p := range props {
		out[i] = p.In
	}
	return out
}

// solveForward runs a forward dataflow.Solver whose transfer only needs
// this block's own IN (the meet result), and returns OUT per block index.
func solveForward(n uint, blocks []*ir.BasicBlock, preds, succs [][]dataflow.BlockID, entry dataflow.BlockID,
	gen, kill []*bitset.BitSet, boundary, init *bitset.BitSet,
	transfer func(i int, in *bitset.BitSet) *bitset.BitSet) []*bitset.BitSet {

	props := newProps(blocks, preds, succs, entry, gen, kill)
	solver := dataflow.NewSolver(dataflow.Forward, n, props, entry, dataflow.Intersection,
		func(b *dataflow.BlockProps) *bitset.BitSet { return transfer(int(b.ID), b.In) },
		boundary, init)
	solver.Run()
	out := make([]*bitset.BitSet, len(blocks))
	for i, p := range props {
		out[i] = p.Out
	}
	return out
}

// forwardIn recomputes each block's IN (the meet of its predecessors' OUT)
// from a forward solve's final OUT vector, since the exported analysis
// needs WillBeAvailable.IN / Postponable.IN, not OUT.
func forwardIn(n uint, blocks []*ir.BasicBlock, preds [][]dataflow.BlockID, out []*bitset.BitSet, boundary *bitset.BitSet) []*bitset.BitSet {
	in := make([]*bitset.BitSet, len(blocks))
	for i := range blocks {
		if len(preds[i]) == 0 {
			in[i] = boundary.Clone()
			continue
		}
		inputs := make([]*bitset.BitSet, len(preds[i]))
		for j, p := range preds[i] {
			inputs[j] = out[p]
		}
		in[i] = dataflow.Intersection(inputs, n)
	}
	return in
}

// backwardOut recomputes each block's OUT (the meet of its successors' IN)
// from a backward solve's final IN vector, since ToInsert/ToReplace need
// Used.OUT, not Used.IN.
func backwardOut(n uint, blocks []*ir.BasicBlock, succs [][]dataflow.BlockID, in []*bitset.BitSet, boundary *bitset.BitSet) []*bitset.BitSet {
	out := make([]*bitset.BitSet, len(blocks))
	for i := range blocks {
		if len(succs[i]) == 0 {
			out[i] = boundary.Clone()
			continue
		}
		inputs := make([]*bitset.BitSet, len(succs[i]))
		for j, s := range succs[i] {
			inputs[j] = in[s]
		}
		out[i] = dataflow.Union(inputs, n)
	}
	return out
}

func newProps(blocks []*ir.BasicBlock, preds, succs [][]dataflow.BlockID, entry dataflow.BlockID, gen, kill []*bitset.BitSet) []*dataflow.BlockProps {
	props := make([]*dataflow.BlockProps, len(blocks))
	for i, blk := range blocks {
		typ := dataflow.Regular
		if dataflow.BlockID(i) == entry {
			typ = dataflow.Entry
		}
		if isExitBlock(blk) {
			typ = dataflow.Exit
		}
		props[i] = &dataflow.BlockProps{
			ID:    dataflow.BlockID(i),
			Type:  typ,
			Preds: preds[i],
			Succs: succs[i],
			Gen:   gen[i],
			Kill:  kill[i],
		}
	}
	return props
}

func isExitBlock(b *ir.BasicBlock) bool {
	_, ok := b.Terminator().(*ir.RetTerm)
	return ok
}

func blockIDLists(index map[*ir.BasicBlock]uint, blocks []*ir.BasicBlock, get func(*ir.BasicBlock) []*ir.BasicBlock) [][]dataflow.BlockID {
	out := make([][]dataflow.BlockID, len(blocks))
	for i, b := range blocks {
		neighbors := get(b)
		ids := make([]dataflow.BlockID, len(neighbors))
		for j, nb := range neighbors {
			ids[j] = dataflow.BlockID(index[nb])
		}
		out[i] = ids
	}
	return out
}
