// Package diagnostics is the ambient reporting layer every pass in this
// repository uses instead of returning bare errors or printing directly.
// It mirrors the shape of kanso's CompilerError/ErrorReporter pair
// (internal/errors/{codes,reporter}.go in the teacher repository) but is
// scoped to compiler-internal pass diagnostics: there is no source file or
// line to caret into here, only blocks and instructions, so Entry carries
// a block/instruction reference instead of an ast.Position.
package diagnostics

import "fmt"

// Severity mirrors kanso's ErrorLevel (Error/Warning/Note/Help).
type Severity int

const (
	Info Severity = iota
	Note
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one diagnostic record. Code follows kanso's codes.go convention
// of a stable, documented string code per error family.
type Entry struct {
	Severity Severity
	Pass     string
	Code     string
	Message  string
	// Ref names the block or instruction the diagnostic is about, for
	// display only (e.g. "block latch", "inst t3 = add x, y").
	Ref string
}

func (e Entry) String() string {
	if e.Ref != "" {
		return fmt.Sprintf("[%s] %s (%s): %s — %s", e.Pass, e.Severity, e.Code, e.Ref, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", e.Pass, e.Severity, e.Code, e.Message)
}

// Report is the additive, non-fatal diagnostic sidecar every pass produces
// alongside its authoritative "changed" boolean (§7 of SPEC_FULL.md).
type Report struct {
	Pass    string
	Entries []Entry
}

// NewReport returns an empty Report scoped to passName.
func NewReport(passName string) *Report {
	return &Report{Pass: passName}
}

func (r *Report) add(sev Severity, code, ref, format string, args ...any) {
	r.Entries = append(r.Entries, Entry{
		Severity: sev,
		Pass:     r.Pass,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Ref:      ref,
	})
}

// Info records an informational entry (e.g. "deleted instruction t3").
func (r *Report) Info(code, ref, format string, args ...any) {
	r.add(Info, code, ref, format, args...)
}

// Notef records a note-level entry.
func (r *Report) Notef(code, ref, format string, args ...any) {
	r.add(Note, code, ref, format, args...)
}

// Warn records a warning (e.g. an instruction that was queued for deletion
// but skipped because uses still remained).
func (r *Report) Warn(code, ref, format string, args ...any) {
	r.add(Warning, code, ref, format, args...)
}

// Err records an error-level entry (malformed precondition, non-convergence).
// It is not a Go error and does not abort the pass — §7 is explicit that
// "no exceptions cross the pass boundary."
func (r *Report) Err(code, ref, format string, args ...any) {
	r.add(Error, code, ref, format, args...)
}

// HasErrors reports whether any Error-severity entry was recorded.
func (r *Report) HasErrors() bool {
	for _, e := range r.Entries {
		if e.Severity == Error {
			return true
		}
	}
	return false
}

// Merge appends other's entries to r, for passes that run sub-passes (PRE
// running its four solver passes, for instance) and want one combined
// Report back to the caller.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Entries = append(r.Entries, other.Entries...)
}
