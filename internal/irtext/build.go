package irtext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ssaopt/internal/ir"
)

var intTypePattern = regexp.MustCompile(`^i([0-9]+)$`)

func parseType(s string) (ir.Type, error) {
	switch s {
	case "bool":
		return ir.BoolType{}, nil
	case "ptr":
		return ir.PtrType{}, nil
	}
	if m := intTypePattern.FindStringSubmatch(s); m != nil {
		bits, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("malformed integer type %q", s)
		}
		return ir.IntType{Bits: bits}, nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}

func comparisonOp(op ir.BinaryOp) bool {
	switch op {
	case ir.Lt, ir.Le, ir.Eq:
		return true
	default:
		return false
	}
}

// build turns a parsed fileText into a Program, resolving every name
// reference against the IR it constructs along the way.
func build(f *fileText) (*ir.Program, error) {
	program := &ir.Program{}
	for _, ft := range f.Functions {
		fn, err := buildFunction(ft)
		if err != nil {
			return nil, err
		}
		program.Functions = append(program.Functions, fn)
	}
	return program, nil
}

// buildFunction constructs fn in three passes so that a phi's back-edge can
// name a value defined later in program order, the one place this format
// allows a forward reference (ir.BasicBlock.Phis assumes every block's phis
// lead its instruction list, the same invariant this relies on):
//
//  1. materialize every phi's result, so any later pass can resolve it;
//  2. build every non-phi instruction in textual order, resolving operands
//     against parameters, already-built instructions, and step 1's phis;
//  3. wire each phi's incoming edges, now that every value in the function
//     — including ones built in step 2, after the phi itself — exists.
func buildFunction(f *funcText) (*ir.Function, error) {
	fn := ir.NewFunction(f.Name)
	b := ir.NewBuilder(fn)

	values := make(map[string]*ir.Value)
	for _, p := range f.Params {
		typ, err := parseType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("function %s: param %s: %w", f.Name, p.Name, err)
		}
		values[p.Name] = b.Param(p.Name, typ)
	}

	blocks := make(map[string]*ir.BasicBlock, len(f.Blocks))
	for _, bt := range f.Blocks {
		blocks[bt.Name] = b.Block(bt.Name)
	}

	phiOf := make(map[*phiText]*ir.PhiInst)
	for _, bt := range f.Blocks {
		blk := blocks[bt.Name]
		for _, line := range bt.Lines {
			if line.Phi == nil {
				continue
			}
			typ, err := parseType(line.Phi.Type)
			if err != nil {
				return nil, fmt.Errorf("function %s: phi %s: %w", f.Name, line.Phi.Result, err)
			}
			phi := b.NewPhi(blk, line.Phi.Result, typ)
			values[line.Phi.Result] = phi.Result()
			phiOf[line.Phi] = phi
		}
	}

	for _, bt := range f.Blocks {
		blk := blocks[bt.Name]
		for _, line := range bt.Lines {
			if err := buildLine(b, blk, blocks, values, line); err != nil {
				return nil, fmt.Errorf("function %s, block %s: %w", f.Name, bt.Name, err)
			}
		}
	}

	for _, bt := range f.Blocks {
		for _, line := range bt.Lines {
			if line.Phi == nil {
				continue
			}
			phi := phiOf[line.Phi]
			for _, e := range line.Phi.Edges {
				pred, ok := blocks[e.Pred]
				if !ok {
					return nil, fmt.Errorf("function %s: phi %s: unknown predecessor block %q", f.Name, line.Phi.Result, e.Pred)
				}
				v, err := lookup(values, e.Value)
				if err != nil {
					return nil, fmt.Errorf("function %s: phi %s: %w", f.Name, line.Phi.Result, err)
				}
				b.AddIncoming(phi, pred, v)
			}
		}
	}

	return fn, nil
}

func lookup(values map[string]*ir.Value, name string) (*ir.Value, error) {
	v, ok := values[name]
	if !ok {
		return nil, fmt.Errorf("undefined value %q", name)
	}
	return v, nil
}

func buildLine(b *ir.Builder, blk *ir.BasicBlock, blocks map[string]*ir.BasicBlock, values map[string]*ir.Value, line *lineText) error {
	switch {
	case line.Phi != nil:
		return nil // materialized in pass 1, wired in pass 3

	case line.Binary != nil:
		t := line.Binary
		x, err := lookup(values, t.X)
		if err != nil {
			return err
		}
		y, err := lookup(values, t.Y)
		if err != nil {
			return err
		}
		op := ir.BinaryOp(t.Op)
		typ := x.Typ
		if comparisonOp(op) {
			typ = ir.BoolType{}
		}
		inst := b.NewBinary(blk, t.Result, op, x, y, typ)
		values[t.Result] = inst.Result()
		return nil

	case line.Call != nil:
		t := line.Call
		args := make([]*ir.Value, len(t.Args))
		for i, name := range t.Args {
			v, err := lookup(values, name)
			if err != nil {
				return err
			}
			args[i] = v
		}
		if t.Prefix != nil {
			typ, err := parseType(t.Prefix.Type)
			if err != nil {
				return err
			}
			inst := b.NewCall(blk, t.Prefix.Result, t.Callee, args, typ)
			values[t.Prefix.Result] = inst.Result()
		} else {
			b.NewCall(blk, "", t.Callee, args, nil)
		}
		return nil

	case line.Const != nil:
		t := line.Const
		typ, err := parseType(t.Type)
		if err != nil {
			return err
		}
		inst := b.NewConst(blk, t.Result, t.Imm, typ)
		values[t.Result] = inst.Result()
		return nil

	case line.Load != nil:
		t := line.Load
		typ, err := parseType(t.Type)
		if err != nil {
			return err
		}
		addr, err := lookup(values, t.Addr)
		if err != nil {
			return err
		}
		inst := b.NewLoad(blk, t.Result, addr, typ)
		values[t.Result] = inst.Result()
		return nil

	case line.Store != nil:
		t := line.Store
		val, err := lookup(values, t.Value)
		if err != nil {
			return err
		}
		addr, err := lookup(values, t.Addr)
		if err != nil {
			return err
		}
		b.NewStore(blk, addr, val)
		return nil

	case line.Debug != nil:
		b.Append(blk, &ir.DebugInst{Note: strings.Trim(line.Debug.Note, `"`)})
		return nil

	case line.LandingPad != nil:
		b.Append(blk, &ir.LandingPadInst{})
		return nil

	case line.Ret != nil:
		if line.Ret.Value == "" {
			b.SetRet(blk, nil)
			return nil
		}
		v, err := lookup(values, line.Ret.Value)
		if err != nil {
			return err
		}
		b.SetRet(blk, v)
		return nil

	case line.Jmp != nil:
		target, ok := blocks[line.Jmp.Target]
		if !ok {
			return fmt.Errorf("unknown block %q", line.Jmp.Target)
		}
		b.SetJump(blk, target)
		return nil

	case line.Br != nil:
		t := line.Br
		cond, err := lookup(values, t.Cond)
		if err != nil {
			return err
		}
		trueBlk, ok := blocks[t.True]
		if !ok {
			return fmt.Errorf("unknown block %q", t.True)
		}
		falseBlk, ok := blocks[t.False]
		if !ok {
			return fmt.Errorf("unknown block %q", t.False)
		}
		b.SetBr(blk, cond, trueBlk, falseBlk)
		return nil
	}

	return fmt.Errorf("empty instruction line")
}
