// Package irtext is a textual serialization for ir.Program, grounded in the
// LLVM-.ll-style dumps kanso's own printer produces and parsed with
// github.com/alecthomas/participle/v2. It exists for round-trippable test
// fixtures and for ssaopt's -ir-file flag.
//
// It is not the same format ir.Printer writes. That printer is a
// human-readable trace of a pass's before/after state: a PhiInst, CallInst,
// ConstInst, and LoadInst print without their result's type, since a reader
// already has the surrounding function in view. Reconstructing a Program
// from text needs that type written down, so irtext defines its own
// grammar (see grammar.go) — LLVM-.ll-flavored in the same spirit, but a
// genuine matched print/parse pair rather than a reuse of the diagnostic
// dump.
package irtext

import (
	"fmt"

	"ssaopt/internal/ir"
)

// Parse reads text in irtext's grammar and builds the Program it describes.
func Parse(text string) (*ir.Program, error) {
	f, err := textParser.ParseString("", text)
	if err != nil {
		return nil, err
	}
	return build(f)
}

// ParseFunction parses text as a single function, for tests and callers
// that don't need a whole Program.
func ParseFunction(text string) (*ir.Function, error) {
	program, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if len(program.Functions) != 1 {
		return nil, fmt.Errorf("irtext: expected exactly one function, got %d", len(program.Functions))
	}
	return program.Functions[0], nil
}
