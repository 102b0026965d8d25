// Package licm implements Loop-Invariant Code Motion (§4.8), the
// "lightweight companion" pass: within a loop with a preheader, it finds
// BinaryInst/PhiInst instructions whose every operand is a constant,
// defined outside the loop, or itself already identified as invariant, and
// hoists each one (in discovery order) to just before the preheader's
// terminator.
//
// Grounded on original_source/LICM/src/licm.cpp's LICM::runOnLoop: a single
// forward scan over the loop's blocks (getLoopInstructions collects the set
// of candidate-typed instructions defined in the loop; then
// populateLoopInvariantInstructions walks the same blocks once more,
// checking each candidate's operands against that set plus the
// invariant-instructions vector built so far) rather than an iterate-to-
// fixpoint solver — transitive invariants are discovered because an
// operand's defining instruction, if also invariant, is always visited and
// appended earlier in the same linear pass.
//
// Two quirks of the source are reproduced here deliberately, not fixed,
// since no REDESIGN FLAG in the distilled spec calls them out:
//
//  1. "Operand defined outside the loop" is checked by testing membership
//     in the set of candidate-typed (BinaryInst/PhiInst) instructions
//     defined in the loop, not by testing block membership directly. An
//     operand defined inside the loop by a non-candidate instruction (a
//     LoadInst, say) is therefore never in that set and is treated the
//     same as a genuinely-outside-the-loop operand — a load result can be
//     (wrongly) accepted as if it were loop-invariant. ReadsMemory/
//     HasSideEffects/IsLandingPad still gate the candidate instruction
//     itself; they just don't propagate to its operands' provenance.
//  2. A φ instruction that turns out invariant is hoisted exactly like a
//     BinaryInst: moved bodily into the preheader. This only matters for a
//     φ whose every incoming value is itself invariant (a real but
//     unusual case — the ordinary induction-variable φ at a loop header
//     never qualifies, since its loop-carried operand is never itself
//     invariant); the pass does not special-case φ placement beyond that.
package licm

import (
	"fmt"
	"sort"

	"ssaopt/internal/diagnostics"
	"ssaopt/internal/dominators"
	"ssaopt/internal/ir"
	"ssaopt/internal/loopinfo"
)

// Run hoists loop-invariant instructions out of every eligible loop in fn.
func Run(fn *ir.Function) (bool, *diagnostics.Report) {
	doms := dominators.Analyze(fn)
	info := loopinfo.Analyze(fn, doms)
	return RunWithInfo(fn, info)
}

// RunWithInfo hoists using an already-computed loopinfo.Info, so a driver
// that runs Landing-Pad rotation first (§4.9) can share one loop-info
// computation across both passes instead of paying for it twice.
func RunWithInfo(fn *ir.Function, info *loopinfo.Info) (bool, *diagnostics.Report) {
	report := diagnostics.NewReport("licm")
	builder := ir.NewBuilder(fn)
	changed := false

	for _, loop := range innermostFirst(info.Loops) {
		if hoistLoop(fn, builder, report, loop) {
			changed = true
		}
	}

	return changed, report
}

// innermostFirst returns loops sorted by descending nesting depth, so an
// inner loop's invariants are hoisted into its own preheader before an
// outer loop's pass might hoist that same preheader's contents further out.
func innermostFirst(loops []*loopinfo.Loop) []*loopinfo.Loop {
	sorted := append([]*loopinfo.Loop(nil), loops...)
	sort.SliceStable(sorted, func(i, j int) bool { return depth(sorted[i]) > depth(sorted[j]) })
	return sorted
}

func depth(l *loopinfo.Loop) int {
	d := 0
	for p := l.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

func hoistLoop(fn *ir.Function, b *ir.Builder, report *diagnostics.Report, loop *loopinfo.Loop) bool {
	if loop.Preheader == nil {
		report.Err(diagnostics.CodeMalformedPrecondition, ref(loop),
			"loop at header %s has no preheader; skipped", loop.Header.Name)
		return false
	}

	loopDefined := candidateSet(fn, loop)
	invariant := make(map[ir.Instruction]bool)
	var order []ir.Instruction

	for _, blk := range fn.Blocks {
		if !loop.Contains(blk) {
			continue
		}
		for _, inst := range blk.Instructions {
			if !isCandidate(inst) {
				continue
			}
			if isInvariantInstruction(inst, loopDefined, invariant) {
				invariant[inst] = true
				order = append(order, inst)
			}
		}
	}

	if len(order) == 0 {
		return false
	}

	term := loop.Preheader.Terminator()
	for _, inst := range order {
		b.MoveInstructionBefore(inst, term)
		report.Info(diagnostics.CodeLoopHoisted, ref(loop),
			"hoisted %s into preheader %s", inst, loop.Preheader.Name)
	}
	return true
}

// candidateSet is the set of BinaryInst/PhiInst instructions defined
// somewhere in loop's body.
func candidateSet(fn *ir.Function, loop *loopinfo.Loop) map[ir.Instruction]bool {
	set := make(map[ir.Instruction]bool)
	for _, blk := range fn.Blocks {
		if !loop.Contains(blk) {
			continue
		}
		for _, inst := range blk.Instructions {
			if isCandidate(inst) {
				set[inst] = true
			}
		}
	}
	return set
}

func isCandidate(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.BinaryInst, *ir.PhiInst:
		return true
	default:
		return false
	}
}

// isInvariantInstruction reports whether inst qualifies as loop-invariant:
// speculatively safe, no memory read, not a landing pad, and every operand
// is a constant, not defined by a candidate instruction inside the loop, or
// already in invariant.
func isInvariantInstruction(inst ir.Instruction, loopDefined, invariant map[ir.Instruction]bool) bool {
	if !speculativelySafe(inst) || inst.ReadsMemory() || inst.IsLandingPad() {
		return false
	}

	for _, operand := range inst.Operands() {
		if operand == nil {
			continue
		}
		if _, isConst := operand.Def.(*ir.ConstInst); isConst {
			continue
		}
		if !loopDefined[operand.Def] {
			continue
		}
		if !invariant[operand.Def] {
			return false
		}
	}
	return true
}

// speculativelySafe reports whether inst can be executed unconditionally
// without risking a trap it would not have taken in its original position.
// Division is the only candidate opcode that can trap (divide by zero); a φ
// selects among already-computed values and is always safe.
func speculativelySafe(inst ir.Instruction) bool {
	bin, ok := inst.(*ir.BinaryInst)
	if !ok {
		return true
	}
	return bin.Op != ir.Div
}

func ref(loop *loopinfo.Loop) string {
	return fmt.Sprintf("loop header %s", loop.Header.Name)
}

// Pass adapts Run to ir.OptimizationPass for use in an OptimizationPipeline.
type Pass struct{}

func (Pass) Name() string        { return "loop-invariant-code-motion" }
func (Pass) Description() string { return "hoists loop-invariant binary and phi instructions into the preheader" }
func (Pass) Apply(fn *ir.Function) bool {
	changed, _ := Run(fn)
	return changed
}
