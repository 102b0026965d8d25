package irtext

import (
	"fmt"
	"strings"

	"ssaopt/internal/ir"
)

// Printer renders a Program in irtext's own grammar, reusing the
// indent/writeLine shape of ir.Printer (internal/ir/printer.go).
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter returns an empty Printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// Print renders program in irtext's grammar.
func Print(program *ir.Program) string {
	p := NewPrinter()
	for i, fn := range program.Functions {
		if i > 0 {
			p.output.WriteString("\n")
		}
		p.printFunction(fn)
	}
	return p.output.String()
}

// PrintFunction renders a single function.
func PrintFunction(fn *ir.Function) string {
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

func (p *Printer) printFunction(fn *ir.Function) {
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

func (p *Printer) printBlock(blk *ir.BasicBlock) {
	p.writeLine("%s:", blk.Name)
	p.indent++
	for _, inst := range blk.Instructions {
		p.writeLine("%s", printInstruction(inst))
	}
	p.indent--
}

// printInstruction renders inst in irtext's grammar, which unlike
// ir.Printer's diagnostic dump always spells out each result's type so the
// line can be re-parsed without context from its uses.
func printInstruction(inst ir.Instruction) string {
	switch v := inst.(type) {
	case *ir.PhiInst:
		edges := make([]string, len(v.Incoming))
		for i, e := range v.Incoming {
			edges[i] = fmt.Sprintf("[%s, %s]", e.Value.Name, e.Pred.Name)
		}
		return fmt.Sprintf("%s = phi %s %s", v.Result().Name, v.Result().Typ, strings.Join(edges, " "))

	case *ir.BinaryInst:
		return fmt.Sprintf("%s = %s %s, %s", v.Result().Name, string(v.Op), v.X.Name, v.Y.Name)

	case *ir.CallInst:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = a.Name
		}
		if res := v.Result(); res != nil {
			return fmt.Sprintf("%s = %s call %s(%s)", res.Name, res.Typ, v.Callee, strings.Join(args, " "))
		}
		return fmt.Sprintf("call %s(%s)", v.Callee, strings.Join(args, " "))

	case *ir.ConstInst:
		return fmt.Sprintf("%s = const %s %d", v.Result().Name, v.Result().Typ, v.Imm)

	case *ir.LoadInst:
		return fmt.Sprintf("%s = load %s %s", v.Result().Name, v.Result().Typ, v.Addr.Name)

	case *ir.StoreInst:
		return fmt.Sprintf("store %s, %s", v.Value.Name, v.Addr.Name)

	case *ir.DebugInst:
		return fmt.Sprintf("dbg %q", v.Note)

	case *ir.LandingPadInst:
		return "landingpad"

	case *ir.RetTerm:
		if v.Value == nil {
			return "ret"
		}
		return fmt.Sprintf("ret %s", v.Value.Name)

	case *ir.JumpTerm:
		return fmt.Sprintf("jmp %s", v.Target.Name)

	case *ir.BrTerm:
		return fmt.Sprintf("br %s, %s, %s", v.Cond.Name, v.TrueBlk.Name, v.FalseBlk.Name)
	}
	panic(fmt.Sprintf("irtext: unhandled instruction type %T", inst))
}
