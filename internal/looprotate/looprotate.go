// Package looprotate implements Landing-Pad / Loop Rotation (§4.7): it
// rewrites a `while`-shaped natural loop (test in the header, body
// reached only by taking the branch) into a rotated `do-while` shape with
// a landing pad guarding entry, so later passes (PRE, LICM) see a loop
// whose only entry test lives in the preheader and whose body has a
// single, unconditional entry point.
//
// Grounded directly on original_source/LICM/src/landing-pad.cpp's
// LandingPadTransform, which runs this transform as three subroutines
// over a loop with a preheader:
//
//  1. Split the preheader immediately before its terminator, producing a
//     new landing-pad block that inherits the preheader's old edge into
//     the header. Register the landing pad in the parent loop, if any,
//     so an enclosing loop's own LICM can later target it too (LLVM's
//     LoopPass manager visits loops innermost-first for the same reason;
//     Run here sorts loops the same way).
//  2. Clone the header's non-φ instructions into the latch, in order,
//     retargeting the cloned terminator's in-loop successor to the
//     header (continuing the loop now re-enters through the header
//     rather than jumping straight into the body) and rewriting operands
//     that reference another cloned instruction to use the clone.
//  3. Splice (move, not clone) the header's non-φ instructions into the
//     preheader, rewriting any reference to a header φ within the
//     spliced code to that φ's incoming value from the landing-pad edge
//     (incoming[0], by the convention the source documents), retarget
//     the spliced terminator's in-loop successor to the landing pad, and
//     leave the header holding only its φs plus a fresh unconditional
//     jump to the original body target.
//  4. Split the loop-exit block at its first instruction to introduce a
//     `.commonexit` block: the original exit block keeps its name,
//     identity and (now two) predecessors — latch and preheader — and
//     becomes the block a new exit-φ is created in for every header φ,
//     unifying the latch-reached and preheader-reached definitions.
//     Only uses of the header φ *outside* the loop are rewired to the
//     new φ (updatePhiUsesOutsideLoop); uses inside the loop, including
//     the clone built in step 2, keep referencing the header φ directly.
//
// The source retargets a cloned branch's loop-continuation operand by a
// fixed operand index (setOperand(2, ...)), assuming a canonical
// true-branch-continues-loop polarity. This package's ir.BrTerm does not
// canonicalize which side is "true" versus "continues the loop", so the
// loop-continuation successor is instead identified generically by loop
// body membership (loopinfo.Loop.Contains) — a deliberate adaptation, not
// a deviation.
package looprotate

import (
	"fmt"
	"sort"

	"ssaopt/internal/diagnostics"
	"ssaopt/internal/dominators"
	"ssaopt/internal/ir"
	"ssaopt/internal/loopinfo"
)

// Run rotates every eligible natural loop of fn. Loops are processed
// innermost-first (matching the ordering LLVM's LoopPass manager uses, so
// an inner loop's landing pad and common-exit blocks are registered into
// its Parent's body before that outer loop is itself rotated).
func Run(fn *ir.Function) (bool, *diagnostics.Report) {
	doms := dominators.Analyze(fn)
	info := loopinfo.Analyze(fn, doms)
	return RunWithInfo(fn, info)
}

// RunWithInfo rotates every eligible loop in info, an already-computed
// loopinfo.Info for fn. Exposed separately from Run so a driver that has
// already computed loop info for LICM (§4.8) does not pay for it twice.
func RunWithInfo(fn *ir.Function, info *loopinfo.Info) (bool, *diagnostics.Report) {
	report := diagnostics.NewReport("looprotate")
	builder := ir.NewBuilder(fn)
	changed := false

	for _, loop := range innermostFirst(info.Loops) {
		if rotateLoop(builder, report, loop) {
			changed = true
		}
	}

	return changed, report
}

// innermostFirst returns loops sorted by descending nesting depth.
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

func rotateLoop(b *ir.Builder, report *diagnostics.Report, loop *loopinfo.Loop) bool {
	if loop.Preheader == nil || loop.Latch == nil || loop.Exit == nil {
		report.Err(diagnostics.CodeMalformedPrecondition, ref(loop),
			"loop at header %s is missing a preheader, latch, or exit; skipped", loop.Header.Name)
		return false
	}
	if _, ok := loop.Header.Terminator().(*ir.BrTerm); !ok {
		report.Err(diagnostics.CodeMalformedPrecondition, ref(loop),
			"loop at header %s does not end in a conditional exit test; skipped", loop.Header.Name)
		return false
	}

	preheader := loop.Preheader
	latch := loop.Latch
	exit := loop.Exit

	landingPad := b.SplitBlockAtTerminator(preheader, preheader.Name+".landingpad")
	registerInParent(loop, landingPad)

	moveCondFromHeaderToLatch(b, loop, latch)
	moveCondFromHeaderToPreheader(b, loop, preheader, landingPad)
	joinPreheaderAndLatchAtExit(b, loop, preheader, latch, exit)

	report.Info(diagnostics.CodeLoopRotated, ref(loop), "rotated loop at header %s", loop.Header.Name)
	return true
}

// registerInParent adds blk to the parent loop's body, mirroring
// Loop::addBasicBlockToLoop in the source: a landing pad or common-exit
// block created while rotating an inner loop still sits inside any
// enclosing loop's body, and the enclosing loop's own LICM pass needs to
// see it as a hoist target.
func registerInParent(loop *loopinfo.Loop, blk *ir.BasicBlock) {
	if loop.Parent != nil {
		loop.Parent.Blocks = append(loop.Parent.Blocks, blk)
	}
}

// moveCondFromHeaderToLatch is step 2: clone the header's non-φ
// instructions into the latch, retarget the clone's in-loop successor to
// the header, and rewrite inter-clone operand references.
func moveCondFromHeaderToLatch(b *ir.Builder, loop *loopinfo.Loop, latch *ir.BasicBlock) {
	header := loop.Header
	if term := latch.Terminator(); term != nil {
		b.Erase(term)
	}

	cloneOf := make(map[ir.Instruction]ir.Instruction)
	originals := append([]ir.Instruction(nil), header.Instructions[header.FirstNonPhi():]...)
	for _, inst := range originals {
		name := ""
		if res := inst.Result(); res != nil {
			name = fmt.Sprintf("%s.%s", latch.Name, res.Name)
		}
		cloneOf[inst] = b.CloneInstruction(latch, inst, name)
	}

	if clone, ok := cloneOf[header.Terminator()]; ok {
		retargetLoopSuccessor(clone, loop, header)
	}

	for _, clone := range cloneOf {
		rewriteOperandsToClones(clone, cloneOf)
	}

	syncSuccessors(b, latch)
}

// moveCondFromHeaderToPreheader is step 3: splice the header's non-φ
// instructions into the preheader, resolve header-φ references to their
// landing-pad-edge incoming value, retarget the spliced terminator's
// in-loop successor to the landing pad, and leave the header with only
// its φs and a fresh jump to the original body target.
func moveCondFromHeaderToPreheader(b *ir.Builder, loop *loopinfo.Loop, preheader, landingPad *ir.BasicBlock) {
	header := loop.Header
	if term := preheader.Terminator(); term != nil {
		b.Erase(term)
	}

	moved := append([]ir.Instruction(nil), header.Instructions[header.FirstNonPhi():]...)
	for _, inst := range moved {
		b.MoveInstruction(inst, preheader)
	}

	for _, phi := range header.Phis() {
		if len(phi.Incoming) == 0 {
			continue
		}
		incoming := phi.Incoming[0].Value
		for _, inst := range moved {
			replaceOperandValue(inst, phi.Result(), incoming)
		}
	}

	var bodyTarget *ir.BasicBlock
	if term := preheader.Terminator(); term != nil {
		bodyTarget = retargetLoopSuccessor(term, loop, landingPad)
	}
	syncSuccessors(b, preheader)

	for _, s := range append([]*ir.BasicBlock(nil), header.Succs...) {
		b.RemoveEdge(header, s)
	}
	b.SetJump(header, bodyTarget)
}

// joinPreheaderAndLatchAtExit is step 4: split the loop-exit block at its
// first instruction (the original object keeps its name, identity, and —
// after rotation — its two real predecessors, latch and preheader) and
// create, for every header φ, a unifying φ in that original-identity
// block. Only uses of the header φ outside the loop body are rewired to
// the new φ.
func joinPreheaderAndLatchAtExit(b *ir.Builder, loop *loopinfo.Loop, preheader, latch, loopExit *ir.BasicBlock) {
	commonExit := b.SplitBlockAtFirstInstruction(loopExit, loopExit.Name+".commonexit")
	registerInParent(loop, commonExit)

	header := loop.Header
	for _, phi := range header.Phis() {
		if len(phi.Incoming) == 0 {
			continue
		}
		phiAtExit := b.NewPhi(loopExit, fmt.Sprintf("%s.exit.%s", loopExit.Name, phi.Result().Name), phi.Result().Typ)
		b.AddIncoming(phiAtExit, latch, phi.Result())
		b.AddIncoming(phiAtExit, preheader, phi.Incoming[0].Value)

		for _, use := range append([]*ir.Use(nil), phi.Result().Uses...) {
			if use.User == phiAtExit {
				continue
			}
			if userBlk := use.User.Block(); userBlk != nil && loop.Contains(userBlk) {
				continue
			}
			ir.ReplaceOperand(use.User, use.Index, phiAtExit.Result())
		}
	}
}

// retargetLoopSuccessor rewrites whichever of term's successors lies
// inside loop's body to instead point at to, and returns the original
// (pre-rewrite) target. Non-branch terminators are left untouched.
func retargetLoopSuccessor(term ir.Instruction, loop *loopinfo.Loop, to *ir.BasicBlock) *ir.BasicBlock {
	br, ok := term.(*ir.BrTerm)
	if !ok {
		return nil
	}
	switch {
	case loop.Contains(br.TrueBlk):
		original := br.TrueBlk
		br.TrueBlk = to
		return original
	case loop.Contains(br.FalseBlk):
		original := br.FalseBlk
		br.FalseBlk = to
		return original
	}
	return nil
}

// rewriteOperandsToClones rewrites every operand of inst that references
// an original instruction's result, where that original has an entry in
// cloneOf, to reference the clone's result instead.
func rewriteOperandsToClones(inst ir.Instruction, cloneOf map[ir.Instruction]ir.Instruction) {
	for idx, operand := range inst.Operands() {
		if operand == nil || operand.Def == nil {
			continue
		}
		if clone, ok := cloneOf[operand.Def]; ok {
			ir.ReplaceOperand(inst, idx, clone.Result())
		}
	}
}

// replaceOperandValue rewrites every operand of inst equal to old to new.
func replaceOperandValue(inst ir.Instruction, old, new *ir.Value) {
	for idx, operand := range inst.Operands() {
		if operand == old {
			ir.ReplaceOperand(inst, idx, new)
		}
	}
}

// syncSuccessors reconciles blk.Succs/Preds with blk's current
// terminator: every edge blk currently records is removed, then an edge
// is added for each of the terminator's actual successors. Used after a
// subroutine mutates a terminator's target fields directly (which do not
// themselves touch Preds/Succs bookkeeping, per the ir package's own
// convention).
func syncSuccessors(b *ir.Builder, blk *ir.BasicBlock) {
	for _, s := range append([]*ir.BasicBlock(nil), blk.Succs...) {
		b.RemoveEdge(blk, s)
	}
	term, ok := blk.Terminator().(ir.Terminator)
	if !ok {
		return
	}
	for _, s := range term.Successors() {
		if s != nil {
			b.AddEdge(blk, s)
		}
	}
}

func ref(loop *loopinfo.Loop) string {
	return fmt.Sprintf("loop header %s", loop.Header.Name)
}

// Pass adapts Run to ir.OptimizationPass for use in an OptimizationPipeline.
type Pass struct{}

func (Pass) Name() string        { return "landing-pad-loop-rotation" }
func (Pass) Description() string { return "rotates while-shaped loops into landing-pad/do-while form" }
func (Pass) Apply(fn *ir.Function) bool {
	changed, _ := Run(fn)
	return changed
}
