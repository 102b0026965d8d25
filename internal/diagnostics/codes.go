package diagnostics

// Stable diagnostic codes, grouped by the error kinds §7 of SPEC_FULL.md
// names, following the documented-range convention of kanso's own
// internal/errors/codes.go (there: E0001-E0099 semantic, E0100-E0199
// parser, etc; here: one short prefix per pass family since there is no
// shared numeric error space across an entire language frontend).
const (
	// CodeMalformedPrecondition: a pass's structural precondition (e.g.
	// Landing-Pad's preheader/header/latch/exit requirement) was not met.
	// The pass reports and returns "no change"; it never mutates.
	CodeMalformedPrecondition = "E-GEN-001"

	// CodeUseAfterRemoveSkipped: an instruction queued for deletion by
	// faint-variable DCE still had uses at deletion time and was skipped.
	CodeUseAfterRemoveSkipped = "E-DCE-001"

	// CodeInstructionDeleted: an instruction was actually erased by DCE.
	CodeInstructionDeleted = "E-DCE-002"

	// CodeNonConvergence: reserved for a solver that stops at a defensive
	// iteration bound without reaching a fixpoint — not expected under
	// monotone transfer functions on a finite lattice, treated as a bug.
	// dataflow.Solver has no such bound (it iterates until no OUT changes),
	// so no pass in this repository emits this code.
	CodeNonConvergence = "E-SLV-001"

	// CodeExpressionInserted / CodeExpressionReplaced: PRE rewriter events.
	CodeExpressionInserted = "E-PRE-002"
	CodeExpressionReplaced = "E-PRE-003"

	// CodeLoopRotated / CodeLoopHoisted: Landing-Pad / LICM events.
	CodeLoopRotated = "E-LPD-001"
	CodeLoopHoisted = "E-LCM-001"

	// CodePassFired: the CLI driver's own record of which pass modified a
	// function on which round of OptimizationPipeline.Run, distinct from
	// any individual pass's own diagnostics.
	CodePassFired = "E-CLI-001"
)
