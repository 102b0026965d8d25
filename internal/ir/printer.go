package ir

import (
	"fmt"
	"strings"
)

// Printer renders a Program as readable, LLVM-.ll-flavored text. It keeps
// the indent/writeLine/write helper shape kanso's own printer uses.
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter returns an empty Printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// Print renders program and returns the accumulated text.
func Print(program *Program) string {
	p := NewPrinter()
	p.printProgram(program)
	return p.output.String()
}

// PrintFunction renders a single function, for pass diagnostics that dump
// before/after IR without a surrounding Program.
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	p.output.WriteString(strings.Repeat("  ", p.indent))
}

func (p *Printer) writeLine(format string, args ...any) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printProgram(program *Program) {
	for i, fn := range program.Functions {
		if i > 0 {
			p.output.WriteString("\n")
		}
		p.printFunction(fn)
	}
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, v := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", v.Name, v.Typ)
	}
	p.writeLine("func %s(%s) {", fn.Name, strings.Join(params, ", "))
	p.indent++
	for _, blk := range fn.Blocks {
		p.printBlock(blk)
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printBlock(blk *BasicBlock) {
	preds := make([]string, len(blk.Preds))
	for i, pr := range blk.Preds {
		preds[i] = pr.Name
	}
	if len(preds) > 0 {
		p.writeLine("%s:  ; preds = %s", blk.Name, strings.Join(preds, ", "))
	} else {
		p.writeLine("%s:", blk.Name)
	}
	p.indent++
	for _, inst := range blk.Instructions {
		p.writeLine("%s", inst.String())
	}
	p.indent--
}
