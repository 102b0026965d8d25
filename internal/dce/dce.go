// Package dce implements Faint-Variable Dead-Code Elimination (§4.3): a
// backward dataflow analysis over non-live-regardless instructions that
// removes instructions whose values influence only other faint
// computations.
//
// Liveness filter. An instruction is live-regardless (never a removal
// candidate) if it is a terminator, a debug intrinsic, a landing-pad
// instruction, or has observable side effects. The domain contains only
// non-live-regardless instructions.
//
// GEN/KILL (per block, traversed in reverse). For each instruction I:
//  1. If any operand is defined by a φ node, mark every incoming value of
//     that φ (that is a domain instruction) as KILLed.
//  2. If I is in the domain and not already KILLed in this block, mark I
//     as GENerated.
//  3. For each operand of I that is a domain instruction, mark it KILLed.
//
// An instruction is faint at a block's entry iff its bit is set in IN(B)
// after the backward fixpoint (meet = intersection, transfer = (OUT −
// KILL) ∪ GEN, boundary = init = U — grounded on
// original_source/DCE/src/deadCodeElimination.cpp's
// DeadCodeEliminationAnalysis, which uses exactly this transfer/meet/
// boundary combination).
//
// Deletion policy. An instruction is erased only if it currently has no
// remaining uses; if uses remain at deletion time, it is skipped (another
// iteration or another pass would address it). On deletion, every
// remaining use is replaced with an undefined value of the same type (a
// no-op when there are none, kept for symmetry with the spec text) and the
// instruction is removed from its parent block.
package dce

import (
	"fmt"

	"ssaopt/internal/bitset"
	"ssaopt/internal/dataflow"
	"ssaopt/internal/diagnostics"
	"ssaopt/internal/ir"
)

// domain maps non-live-regardless instructions to stable bit indices,
// scanning the whole function once.
type domain struct {
	insts []ir.Instruction
	index map[ir.Instruction]uint
}

func buildDomain(fn *ir.Function) *domain {
	d := &domain{index: make(map[ir.Instruction]uint)}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Instructions {
			if isLiveRegardless(inst) {
				continue
			}
			d.index[inst] = uint(len(d.insts))
			d.insts = append(d.insts, inst)
		}
	}
	return d
}

func (d *domain) size() uint { return uint(len(d.insts)) }

func (d *domain) indexOf(inst ir.Instruction) (uint, bool) {
	if inst == nil {
		return 0, false
	}
	i, ok := d.index[inst]
	return i, ok
}

func isLiveRegardless(inst ir.Instruction) bool {
	return inst.IsTerminator() || inst.IsDebug() || inst.IsLandingPad() || inst.HasSideEffects()
}

// genKill computes a block's GEN/KILL bitsets per the reverse per-
// instruction walk described in the package doc comment.
func genKill(d *domain, blk *ir.BasicBlock) (gen, kill *bitset.BitSet) {
	n := d.size()
	gen = bitset.New(n)
	kill = bitset.New(n)

	for idx := len(blk.Instructions) - 1; idx >= 0; idx-- {
		inst := blk.Instructions[idx]

		for _, operand := range inst.Operands() {
			if operand == nil || operand.Def == nil {
				continue
			}
			if phi, ok := operand.Def.(*ir.PhiInst); ok {
				for _, edge := range phi.Incoming {
					if edge.Value == nil {
						continue
					}
					if i, ok := d.indexOf(edge.Value.Def); ok {
						kill.Set(i)
					}
				}
			}
		}

		if i, ok := d.indexOf(inst); ok && !kill.Test(i) {
			gen.Set(i)
		}

		for _, operand := range inst.Operands() {
			if operand == nil {
				continue
			}
			if i, ok := d.indexOf(operand.Def); ok {
				kill.Set(i)
			}
		}
	}
	return gen, kill
}

// Run performs the faint-variable backward analysis and deletion pass over
// fn, returning whether the IR was modified and a diagnostic Report. It
// never panics or returns a Go error — per §7, malformed input degrades to
// "no change," not a crash.
func Run(fn *ir.Function) (bool, *diagnostics.Report) {
	report := diagnostics.NewReport("faint-dce")
	d := buildDomain(fn)
	n := d.size()

	if n == 0 {
		return false, report
	}

	index := make(map[*ir.BasicBlock]uint, len(fn.Blocks))
	for i, b := range fn.Blocks {
		index[b] = uint(i)
	}

	props := make([]*dataflow.BlockProps, len(fn.Blocks))
	for i, blk := range fn.Blocks {
		gen, kill := genKill(d, blk)
		typ := dataflow.Regular
		if blk == fn.Entry {
			typ = dataflow.Entry
		}
		if isExitBlock(blk) {
			typ = dataflow.Exit
		}
		props[i] = &dataflow.BlockProps{
			ID:    dataflow.BlockID(i),
			Type:  typ,
			Preds: blockIDs(index, blk.Preds),
			Succs: blockIDs(index, blk.Succs),
			Gen:   gen,
			Kill:  kill,
		}
	}

	transfer := func(b *dataflow.BlockProps) *bitset.BitSet {
		return b.Out.Difference(b.Kill).Union(b.Gen)
	}

	solver := dataflow.NewSolver(dataflow.Backward, n, props, dataflow.BlockID(index[fn.Entry]),
		dataflow.Intersection, transfer, bitset.All(n), bitset.All(n))
	solver.Run()

	builder := ir.NewBuilder(fn)
	changed := false

	for i, blk := range fn.Blocks {
		faintIn := props[i].In
		for idx := len(blk.Instructions) - 1; idx >= 0; idx-- {
			inst := blk.Instructions[idx]
			di, ok := d.indexOf(inst)
			if !ok || !faintIn.Test(di) {
				continue
			}
			res := inst.Result()
			if res != nil && res.HasUses() {
				report.Warn(diagnostics.CodeUseAfterRemoveSkipped, ref(inst),
					"skipped: %d use(s) remain at deletion time", len(res.Uses))
				continue
			}
			if res != nil {
				undef := builder.Undefined(res.Typ)
				ir.ReplaceAllUses(res, undef)
			}
			builder.Erase(inst)
			report.Info(diagnostics.CodeInstructionDeleted, ref(inst), "removed faint instruction")
			changed = true
		}
	}

	return changed, report
}

func isExitBlock(b *ir.BasicBlock) bool {
	_, ok := b.Terminator().(*ir.RetTerm)
	return ok
}

func blockIDs(index map[*ir.BasicBlock]uint, blocks []*ir.BasicBlock) []dataflow.BlockID {
	ids := make([]dataflow.BlockID, len(blocks))
	for i, b := range blocks {
		ids[i] = dataflow.BlockID(index[b])
	}
	return ids
}

func ref(inst ir.Instruction) string {
	return fmt.Sprintf("inst %s", inst.String())
}

// Pass adapts Run to ir.OptimizationPass for use in an OptimizationPipeline.
type Pass struct{}

func (Pass) Name() string        { return "faint-dce" }
func (Pass) Description() string { return "removes instructions whose values are never observably used" }
func (Pass) Apply(fn *ir.Function) bool {
	changed, _ := Run(fn)
	return changed
}
