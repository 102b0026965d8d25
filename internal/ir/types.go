// Package ir implements the IR Host: a small, generic Static Single
// Assignment intermediate representation of Functions, BasicBlocks, and
// Instructions. The dataflow core treats this package as an external
// collaborator — it never constructs IR of its own — but no host is
// supplied to this repository, so this package stands in for one.
package ir

import "fmt"

// Type is the (deliberately minimal) value-type lattice of the IR. The
// dataflow core never inspects types beyond passing them through
// Undefined, so only enough structure to distinguish incompatible values
// is modeled.
type Type interface {
	String() string
}

// IntType is a fixed-width integer type.
type IntType struct{ Bits int }

func (t IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

// BoolType is a single-bit boolean type.
type BoolType struct{}

func (BoolType) String() string { return "bool" }

// PtrType is an opaque pointer type, used by Load/Store.
type PtrType struct{}

func (PtrType) String() string { return "ptr" }

// Value is an SSA value: either the result of an Instruction, a Function
// parameter, or an undefined placeholder produced by Builder.Undefined.
type Value struct {
	ID   int
	Name string
	Typ  Type

	// Def is the instruction that defines this value, nil for parameters
	// and undefined placeholders.
	Def Instruction

	// Uses is the live list of operand slots that reference this value.
	// It is maintained exclusively through linkUse/unlinkUse so that
	// ReplaceAllUses and instruction mutation never drift out of sync
	// with the operand fields they describe.
	Uses []*Use
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	return v.Name
}

// HasUses reports whether any instruction still references this value.
func (v *Value) HasUses() bool { return len(v.Uses) > 0 }

// Use records that instruction User references Value at operand index
// Index. A Use is a stable handle: instructions look up their own operand
// list by index, so Index is always valid for the lifetime of the Use.
type Use struct {
	Value *Value
	User  Instruction
	Index int
}

// Instruction is anything that can appear in a BasicBlock's instruction
// list, terminators included.
type Instruction interface {
	ID() int
	Result() *Value // nil for instructions with no result (Store, Ret, Br, Jump, Debug)
	Operands() []*Value
	SetOperand(i int, v *Value)
	Block() *BasicBlock
	setBlock(b *BasicBlock)

	IsTerminator() bool
	IsPhi() bool
	IsDebug() bool
	IsLandingPad() bool
	// HasSideEffects reports whether the instruction must never be treated
	// as dead, faint, or speculatively hoistable — calls and stores, for
	// instance.
	HasSideEffects() bool
	// ReadsMemory reports whether the instruction observes memory state,
	// which disqualifies it from LICM hoisting even when its operands are
	// loop-invariant.
	ReadsMemory() bool

	Clone() Instruction
	String() string
}

// Terminator is a terminator Instruction; it also exposes its successors.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

// base is embedded by every instruction and carries bookkeeping shared by
// all of them: id, owning block, and (if any) the result Value.
type base struct {
	id  int
	blk *BasicBlock
	res *Value
}

func (b *base) ID() int                 { return b.id }
func (b *base) Result() *Value          { return b.res }
func (b *base) Block() *BasicBlock      { return b.blk }
func (b *base) setBlock(bb *BasicBlock) { b.blk = bb }

func (b *base) IsTerminator() bool   { return false }
func (b *base) IsPhi() bool          { return false }
func (b *base) IsDebug() bool        { return false }
func (b *base) IsLandingPad() bool   { return false }
func (b *base) HasSideEffects() bool { return false }
func (b *base) ReadsMemory() bool    { return false }

// BinaryOp enumerates the opcodes BinaryInst supports. These are the
// canonical Expression atoms for the PRE expression layer.
type BinaryOp string

const (
	Add BinaryOp = "add"
	Sub BinaryOp = "sub"
	Mul BinaryOp = "mul"
	Div BinaryOp = "div"
	And BinaryOp = "and"
	Or  BinaryOp = "or"
	Xor BinaryOp = "xor"
	Lt  BinaryOp = "lt"
	Le  BinaryOp = "le"
	Eq  BinaryOp = "eq"
)

// BinaryInst computes Op(X, Y). It is pure: no side effects, no memory
// reads, eligible for PRE/LICM/faint-DCE.
type BinaryInst struct {
	base
	Op   BinaryOp
	X, Y *Value
}

func (i *BinaryInst) Operands() []*Value { return []*Value{i.X, i.Y} }

func (i *BinaryInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.X = v
	case 1:
		i.Y = v
	default:
		panic("ir: BinaryInst operand index out of range")
	}
}

func (i *BinaryInst) Clone() Instruction {
	return &BinaryInst{Op: i.Op, X: i.X, Y: i.Y}
}

func (i *BinaryInst) String() string {
	return fmt.Sprintf("%s = %s %s, %s", i.res, i.Op, i.X, i.Y)
}

// PhiEdge is one incoming edge of a PhiInst.
type PhiEdge struct {
	Pred  *BasicBlock
	Value *Value
}

// PhiInst selects a value based on the predecessor control arrived from.
type PhiInst struct {
	base
	Incoming []PhiEdge
}

func (i *PhiInst) IsPhi() bool { return true }

func (i *PhiInst) Operands() []*Value {
	ops := make([]*Value, len(i.Incoming))
	for idx, e := range i.Incoming {
		ops[idx] = e.Value
	}
	return ops
}

func (i *PhiInst) SetOperand(idx int, v *Value) {
	i.Incoming[idx].Value = v
}

// IncomingFrom returns the value the phi takes on control arriving from
// pred, and whether pred is one of its edges.
func (i *PhiInst) IncomingFrom(pred *BasicBlock) (*Value, bool) {
	for _, e := range i.Incoming {
		if e.Pred == pred {
			return e.Value, true
		}
	}
	return nil, false
}

func (i *PhiInst) Clone() Instruction {
	edges := make([]PhiEdge, len(i.Incoming))
	copy(edges, i.Incoming)
	return &PhiInst{Incoming: edges}
}

func (i *PhiInst) String() string {
	s := fmt.Sprintf("%s = phi", i.res)
	for _, e := range i.Incoming {
		s += fmt.Sprintf(" [%s, %s]", e.Value, e.Pred.Name)
	}
	return s
}

// CallInst calls Callee with Args. Calls are always treated as
// side-effecting: an unknown-body call may do anything, so it is
// live-regardless for faint DCE and never a PRE/LICM candidate.
type CallInst struct {
	base
	Callee string
	Args   []*Value
}

func (i *CallInst) HasSideEffects() bool { return true }
func (i *CallInst) Operands() []*Value   { return i.Args }

func (i *CallInst) SetOperand(idx int, v *Value) { i.Args[idx] = v }

func (i *CallInst) Clone() Instruction {
	args := make([]*Value, len(i.Args))
	copy(args, i.Args)
	return &CallInst{Callee: i.Callee, Args: args}
}

func (i *CallInst) String() string {
	if i.res != nil {
		return fmt.Sprintf("%s = call %s(%v)", i.res, i.Callee, i.Args)
	}
	return fmt.Sprintf("call %s(%v)", i.Callee, i.Args)
}

// ConstInst materializes a constant integer value. Pure.
type ConstInst struct {
	base
	Imm int64
}

func (i *ConstInst) Operands() []*Value           { return nil }
func (i *ConstInst) SetOperand(idx int, v *Value) { panic("ir: ConstInst has no operands") }
func (i *ConstInst) Clone() Instruction           { return &ConstInst{Imm: i.Imm} }
func (i *ConstInst) String() string               { return fmt.Sprintf("%s = const %d", i.res, i.Imm) }

// LoadInst reads memory through Addr. Side-effect-free but ReadsMemory, so
// it is disqualified from LICM and PRE (which target pure expressions only
// — see the distilled spec's Non-goals: memory-modifying expression PRE is
// explicitly out of scope) while remaining faint-DCE eligible if unused.
type LoadInst struct {
	base
	Addr *Value
}

func (i *LoadInst) ReadsMemory() bool            { return true }
func (i *LoadInst) Operands() []*Value           { return []*Value{i.Addr} }
func (i *LoadInst) SetOperand(idx int, v *Value) { i.Addr = v }
func (i *LoadInst) Clone() Instruction           { return &LoadInst{Addr: i.Addr} }
func (i *LoadInst) String() string               { return fmt.Sprintf("%s = load %s", i.res, i.Addr) }

// StoreInst writes Value to memory through Addr. Always side-effecting.
type StoreInst struct {
	base
	Addr, Value *Value
}

func (i *StoreInst) HasSideEffects() bool { return true }
func (i *StoreInst) Operands() []*Value   { return []*Value{i.Addr, i.Value} }

func (i *StoreInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.Addr = v
	case 1:
		i.Value = v
	default:
		panic("ir: StoreInst operand index out of range")
	}
}

func (i *StoreInst) Clone() Instruction { return &StoreInst{Addr: i.Addr, Value: i.Value} }
func (i *StoreInst) String() string     { return fmt.Sprintf("store %s, %s", i.Value, i.Addr) }

// DebugInst is a debug intrinsic: never removable, carries no value.
type DebugInst struct {
	base
	Note string
}

func (i *DebugInst) IsDebug() bool                { return true }
func (i *DebugInst) Operands() []*Value           { return nil }
func (i *DebugInst) SetOperand(idx int, v *Value) { panic("ir: DebugInst has no operands") }
func (i *DebugInst) Clone() Instruction           { return &DebugInst{Note: i.Note} }
func (i *DebugInst) String() string               { return fmt.Sprintf("dbg %q", i.Note) }

// LandingPadInst marks an (exception) landing-pad instruction: never
// removable, never hoistable. Distinct from the Landing-Pad loop-rotation
// block (§4.7), which is an ordinary BasicBlock and carries no such
// instruction itself.
type LandingPadInst struct {
	base
}

func (i *LandingPadInst) IsLandingPad() bool     { return true }
func (i *LandingPadInst) HasSideEffects() bool   { return true }
func (i *LandingPadInst) Operands() []*Value     { return nil }
func (i *LandingPadInst) SetOperand(int, *Value) { panic("ir: LandingPadInst has no operands") }
func (i *LandingPadInst) Clone() Instruction      { return &LandingPadInst{} }
func (i *LandingPadInst) String() string          { return "landingpad" }

// RetTerm returns Value (nil for void returns) and ends the function.
type RetTerm struct {
	base
	Value *Value
}

func (i *RetTerm) IsTerminator() bool { return true }
func (i *RetTerm) Operands() []*Value {
	if i.Value == nil {
		return nil
	}
	return []*Value{i.Value}
}
func (i *RetTerm) SetOperand(idx int, v *Value) {
	if idx != 0 {
		panic("ir: RetTerm operand index out of range")
	}
	i.Value = v
}
func (i *RetTerm) Successors() []*BasicBlock { return nil }
func (i *RetTerm) Clone() Instruction        { return &RetTerm{Value: i.Value} }
func (i *RetTerm) String() string {
	if i.Value == nil {
		return "ret"
	}
	return fmt.Sprintf("ret %s", i.Value)
}

// JumpTerm is an unconditional branch to Target.
type JumpTerm struct {
	base
	Target *BasicBlock
}

func (i *JumpTerm) IsTerminator() bool        { return true }
func (i *JumpTerm) Operands() []*Value        { return nil }
func (i *JumpTerm) SetOperand(int, *Value)    { panic("ir: JumpTerm has no operands") }
func (i *JumpTerm) Successors() []*BasicBlock { return []*BasicBlock{i.Target} }
func (i *JumpTerm) Clone() Instruction        { return &JumpTerm{Target: i.Target} }
func (i *JumpTerm) String() string            { return fmt.Sprintf("jmp %s", i.Target.Name) }

// BrTerm branches to TrueBlk if Cond holds, else FalseBlk.
type BrTerm struct {
	base
	Cond               *Value
	TrueBlk, FalseBlk *BasicBlock
}

func (i *BrTerm) IsTerminator() bool { return true }
func (i *BrTerm) Operands() []*Value { return []*Value{i.Cond} }
func (i *BrTerm) SetOperand(idx int, v *Value) {
	if idx != 0 {
		panic("ir: BrTerm operand index out of range")
	}
	i.Cond = v
}
func (i *BrTerm) Successors() []*BasicBlock { return []*BasicBlock{i.TrueBlk, i.FalseBlk} }
func (i *BrTerm) Clone() Instruction {
	return &BrTerm{Cond: i.Cond, TrueBlk: i.TrueBlk, FalseBlk: i.FalseBlk}
}
func (i *BrTerm) String() string {
	return fmt.Sprintf("br %s, %s, %s", i.Cond, i.TrueBlk.Name, i.FalseBlk.Name)
}

// BasicBlock is a straight-line sequence of Instructions ending in exactly
// one Terminator (once the function is fully built).
type BasicBlock struct {
	ID           int
	Name         string
	Func         *Function
	Instructions []Instruction
	Preds        []*BasicBlock
	Succs        []*BasicBlock
}

// Terminator returns the block's terminator, or nil if the block is not
// yet terminated.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Phis returns the leading run of φ instructions.
func (b *BasicBlock) Phis() []*PhiInst {
	var phis []*PhiInst
	for _, inst := range b.Instructions {
		if p, ok := inst.(*PhiInst); ok {
			phis = append(phis, p)
			continue
		}
		break
	}
	return phis
}

// FirstNonPhi returns the index of the first non-φ instruction (len(Instructions)
// if the block is all φs).
func (b *BasicBlock) FirstNonPhi() int {
	for idx, inst := range b.Instructions {
		if !inst.IsPhi() {
			return idx
		}
	}
	return len(b.Instructions)
}

func (b *BasicBlock) String() string { return b.Name }

// Function is a CFG of BasicBlocks with a single Entry.
type Function struct {
	Name   string
	Params []*Value
	Blocks []*BasicBlock
	Entry  *BasicBlock

	nextValueID int
	nextBlockID int
	nextInstID  int
}

// Program is a collection of Functions, the IR Host's top-level unit.
type Program struct {
	Functions []*Function
}
