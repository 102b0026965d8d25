package ir

import "fmt"

// Builder constructs and mutates Functions. It assigns every value, block,
// and instruction a monotonically increasing ID scoped to the owning
// Function, mirroring the counter-based construction state kanso's own IR
// builder keeps (valueCounter/blockCounter/instCounter).
type Builder struct {
	fn           *Function
	undefCounter int
}

// NewFunction starts a new, empty Function named name.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// NewBuilder returns a Builder that appends to fn.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// Param declares a new function parameter and returns its Value.
func (b *Builder) Param(name string, typ Type) *Value {
	v := b.newValue(name, typ)
	b.fn.Params = append(b.fn.Params, v)
	return v
}

// Block creates and appends a new, empty BasicBlock.
func (b *Builder) Block(name string) *BasicBlock {
	blk := &BasicBlock{ID: b.fn.nextBlockID, Name: name, Func: b.fn}
	b.fn.nextBlockID++
	b.fn.Blocks = append(b.fn.Blocks, blk)
	if b.fn.Entry == nil {
		b.fn.Entry = blk
	}
	return blk
}

// AddEdge records a CFG edge from -> to, updating both blocks' Preds/Succs.
// It does not touch terminator instructions; callers set those separately
// so that the edge list and the terminator's Successors() stay in sync by
// construction.
func (b *Builder) AddEdge(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func (b *Builder) newValue(name string, typ Type) *Value {
	v := &Value{ID: b.fn.nextValueID, Name: name, Typ: typ}
	b.fn.nextValueID++
	return v
}

func (b *Builder) nextInstID() int {
	id := b.fn.nextInstID
	b.fn.nextInstID++
	return id
}

// linkUse records that user references v at operand index idx.
func linkUse(v *Value, user Instruction, idx int) {
	if v == nil {
		return
	}
	v.Uses = append(v.Uses, &Use{Value: v, User: user, Index: idx})
}

// unlinkUse removes the (user, idx) use from v's use list.
func unlinkUse(v *Value, user Instruction, idx int) {
	if v == nil {
		return
	}
	for i, u := range v.Uses {
		if u.User == user && u.Index == idx {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

// linkAllOperands links every operand of inst for use-list bookkeeping.
// Called once, right after an instruction is constructed with its operand
// fields already populated.
func linkAllOperands(inst Instruction) {
	for idx, v := range inst.Operands() {
		linkUse(v, inst, idx)
	}
}

// Append appends inst (already fully constructed, with operand fields
// populated) to blk, links its operand uses, and assigns it an ID.
func (b *Builder) Append(blk *BasicBlock, inst Instruction) {
	assignID(inst, b.nextInstID())
	inst.setBlock(blk)
	linkAllOperands(inst)
	blk.Instructions = append(blk.Instructions, inst)
}

// InsertBefore inserts inst immediately before mark in mark's block.
func (b *Builder) InsertBefore(mark Instruction, inst Instruction) {
	blk := mark.Block()
	assignID(inst, b.nextInstID())
	inst.setBlock(blk)
	linkAllOperands(inst)
	for i, existing := range blk.Instructions {
		if existing == mark {
			blk.Instructions = append(blk.Instructions, nil)
			copy(blk.Instructions[i+1:], blk.Instructions[i:])
			blk.Instructions[i] = inst
			return
		}
	}
	panic("ir: InsertBefore: mark not found in its own block")
}

// InsertAtFirstInsertionPoint inserts inst at the first non-φ position of
// blk (i.e. after leading φ instructions, before everything else,
// including the terminator if blk is otherwise empty of non-φ code).
func (b *Builder) InsertAtFirstInsertionPoint(blk *BasicBlock, inst Instruction) {
	idx := blk.FirstNonPhi()
	assignID(inst, b.nextInstID())
	inst.setBlock(blk)
	linkAllOperands(inst)
	blk.Instructions = append(blk.Instructions, nil)
	copy(blk.Instructions[idx+1:], blk.Instructions[idx:])
	blk.Instructions[idx] = inst
}

// Erase removes inst from its block and unlinks its operand uses. It does
// not check for remaining uses of inst's own result — callers (DCE, PRE)
// are responsible for that policy decision.
func (b *Builder) Erase(inst Instruction) {
	blk := inst.Block()
	if blk == nil {
		return
	}
	for idx, v := range inst.Operands() {
		unlinkUse(v, inst, idx)
	}
	for i, existing := range blk.Instructions {
		if existing == inst {
			blk.Instructions = append(blk.Instructions[:i], blk.Instructions[i+1:]...)
			break
		}
	}
	inst.setBlock(nil)
}

// ReplaceAllUses rewrites every use of old to point at replacement,
// including replacement's own use bookkeeping, then clears old's use list.
func ReplaceAllUses(old, replacement *Value) {
	if old == replacement {
		return
	}
	uses := old.Uses
	old.Uses = nil
	for _, u := range uses {
		u.User.SetOperand(u.Index, replacement)
		u.Value = replacement
		replacement.Uses = append(replacement.Uses, u)
	}
}

// ReplaceOperand replaces operand idx of inst (wherever its current value
// is) with replacement, maintaining use-list bookkeeping on both sides.
func ReplaceOperand(inst Instruction, idx int, replacement *Value) {
	ops := inst.Operands()
	if idx < 0 || idx >= len(ops) {
		panic("ir: ReplaceOperand index out of range")
	}
	old := ops[idx]
	unlinkUse(old, inst, idx)
	inst.SetOperand(idx, replacement)
	linkUse(replacement, inst, idx)
}

// Undefined returns a fresh placeholder Value of the given type, standing
// in for an instruction's result after it has been erased. It has no
// defining instruction and is never itself a use of anything.
func (b *Builder) Undefined(typ Type) *Value {
	n := b.undefCounter
	b.undefCounter++
	return b.newValue(fmt.Sprintf("undef.%d", n), typ)
}

// NewBinary constructs and appends a BinaryInst at the end of blk (before
// its terminator, if any).
func (b *Builder) NewBinary(blk *BasicBlock, name string, op BinaryOp, x, y *Value, typ Type) *BinaryInst {
	res := b.newValue(name, typ)
	inst := &BinaryInst{base: base{res: res}, Op: op, X: x, Y: y}
	res.Def = inst
	b.insertBeforeTerminator(blk, inst)
	return inst
}

// NewBinaryAtFirstInsertionPoint constructs a BinaryInst like NewBinary but
// inserts it at blk's first insertion point (after leading φs) rather than
// before the terminator. The Lazy Code Motion insertion phase (§4.6)
// materializes Optimal Computation Points there, not at the end of the
// block.
func (b *Builder) NewBinaryAtFirstInsertionPoint(blk *BasicBlock, name string, op BinaryOp, x, y *Value, typ Type) *BinaryInst {
	res := b.newValue(name, typ)
	inst := &BinaryInst{base: base{res: res}, Op: op, X: x, Y: y}
	res.Def = inst
	b.InsertAtFirstInsertionPoint(blk, inst)
	return inst
}

// NewCall constructs and appends a CallInst.
func (b *Builder) NewCall(blk *BasicBlock, name string, callee string, args []*Value, typ Type) *CallInst {
	var res *Value
	if typ != nil {
		res = b.newValue(name, typ)
	}
	inst := &CallInst{base: base{res: res}, Callee: callee, Args: args}
	if res != nil {
		res.Def = inst
	}
	b.insertBeforeTerminator(blk, inst)
	return inst
}

// NewConst constructs and appends a ConstInst.
func (b *Builder) NewConst(blk *BasicBlock, name string, imm int64, typ Type) *ConstInst {
	res := b.newValue(name, typ)
	inst := &ConstInst{base: base{res: res}, Imm: imm}
	res.Def = inst
	b.insertBeforeTerminator(blk, inst)
	return inst
}

// NewLoad constructs and appends a LoadInst.
func (b *Builder) NewLoad(blk *BasicBlock, name string, addr *Value, typ Type) *LoadInst {
	res := b.newValue(name, typ)
	inst := &LoadInst{base: base{res: res}, Addr: addr}
	res.Def = inst
	b.insertBeforeTerminator(blk, inst)
	return inst
}

// NewStore constructs and appends a StoreInst.
func (b *Builder) NewStore(blk *BasicBlock, addr, value *Value) *StoreInst {
	inst := &StoreInst{Addr: addr, Value: value}
	b.insertBeforeTerminator(blk, inst)
	return inst
}

// NewPhi constructs and appends (at the first non-φ position) a new
// PhiInst with no incoming edges yet; callers add edges with AddIncoming.
func (b *Builder) NewPhi(blk *BasicBlock, name string, typ Type) *PhiInst {
	res := b.newValue(name, typ)
	inst := &PhiInst{base: base{res: res}}
	res.Def = inst
	assignID(inst, b.nextInstID())
	inst.setBlock(blk)
	idx := len(blk.Phis())
	blk.Instructions = append(blk.Instructions, nil)
	copy(blk.Instructions[idx+1:], blk.Instructions[idx:])
	blk.Instructions[idx] = inst
	return inst
}

// AddIncoming adds an incoming edge to a PhiInst, linking the use.
func (b *Builder) AddIncoming(phi *PhiInst, pred *BasicBlock, v *Value) {
	idx := len(phi.Incoming)
	phi.Incoming = append(phi.Incoming, PhiEdge{Pred: pred, Value: v})
	linkUse(v, phi, idx)
}

// SetRet sets blk's terminator to a RetTerm.
func (b *Builder) SetRet(blk *BasicBlock, v *Value) *RetTerm {
	inst := &RetTerm{Value: v}
	b.Append(blk, inst)
	return inst
}

// SetJump sets blk's terminator to an unconditional jump and records the
// CFG edge.
func (b *Builder) SetJump(blk, target *BasicBlock) *JumpTerm {
	inst := &JumpTerm{Target: target}
	b.Append(blk, inst)
	b.AddEdge(blk, target)
	return inst
}

// SetBr sets blk's terminator to a conditional branch and records both CFG
// edges.
func (b *Builder) SetBr(blk *BasicBlock, cond *Value, trueBlk, falseBlk *BasicBlock) *BrTerm {
	inst := &BrTerm{Cond: cond, TrueBlk: trueBlk, FalseBlk: falseBlk}
	b.Append(blk, inst)
	b.AddEdge(blk, trueBlk)
	b.AddEdge(blk, falseBlk)
	return inst
}

func (b *Builder) insertBeforeTerminator(blk *BasicBlock, inst Instruction) {
	if term := blk.Terminator(); term != nil {
		b.InsertBefore(term, inst)
		return
	}
	b.Append(blk, inst)
}

// assignID stamps inst's ID field via type switch, since base is not
// exported for direct embedding access outside the package.
func assignID(inst Instruction, id int) {
	type idSetter interface{ setID(int) }
	if s, ok := inst.(idSetter); ok {
		s.setID(id)
		return
	}
	panic(fmt.Sprintf("ir: instruction %T does not support ID assignment", inst))
}

func (b *base) setID(id int) { b.id = id }

// assignResult stamps inst's result Value, mirroring assignID. Instructions
// with no result (StoreInst and the terminators) silently keep none.
func assignResult(inst Instruction, v *Value) {
	type resultSetter interface{ setResult(*Value) }
	if s, ok := inst.(resultSetter); ok {
		s.setResult(v)
	}
}

func (b *base) setResult(v *Value) { b.res = v }

// CloneInstruction clones inst (via its own Clone method, which copies
// operand fields but not identity) into blk, assigning it a fresh ID and,
// when inst has a result, a fresh named Value of the same type. This is
// Landing-Pad's header->latch instruction clone (§4.7 step 2): the clone
// gets linked into blk's use-list bookkeeping exactly like any other
// freshly-built instruction, leaving the original untouched.
func (b *Builder) CloneInstruction(blk *BasicBlock, inst Instruction, name string) Instruction {
	clone := inst.Clone()
	if orig := inst.Result(); orig != nil {
		res := b.newValue(name, orig.Typ)
		assignResult(clone, res)
		res.Def = clone
	}
	assignID(clone, b.nextInstID())
	clone.setBlock(blk)
	linkAllOperands(clone)
	blk.Instructions = append(blk.Instructions, clone)
	return clone
}

// MoveInstruction relocates inst from its current block's instruction list
// to the end of to's, without touching use-list bookkeeping or inst's ID.
// This is Landing-Pad's header->preheader splice (§4.7 step 3).
func (b *Builder) MoveInstruction(inst Instruction, to *BasicBlock) {
	if from := inst.Block(); from != nil {
		for i, existing := range from.Instructions {
			if existing == inst {
				from.Instructions = append(from.Instructions[:i], from.Instructions[i+1:]...)
				break
			}
		}
	}
	inst.setBlock(to)
	to.Instructions = append(to.Instructions, inst)
}

// MoveInstructionBefore relocates inst from its current block's instruction
// list to immediately before mark in mark's block, without touching
// use-list bookkeeping or inst's ID. This is LICM's hoist (§4.8): the
// invariant instruction already has its operand uses linked correctly, so
// unlike InsertBefore this never re-links them or assigns a fresh ID — it
// only moves the instruction, the way CloneInstruction and MoveInstruction
// are move/clone-only rather than build-from-scratch primitives.
func (b *Builder) MoveInstructionBefore(inst Instruction, mark Instruction) {
	if from := inst.Block(); from != nil {
		for i, existing := range from.Instructions {
			if existing == inst {
				from.Instructions = append(from.Instructions[:i], from.Instructions[i+1:]...)
				break
			}
		}
	}
	to := mark.Block()
	inst.setBlock(to)
	for i, existing := range to.Instructions {
		if existing == mark {
			to.Instructions = append(to.Instructions, nil)
			copy(to.Instructions[i+1:], to.Instructions[i:])
			to.Instructions[i] = inst
			return
		}
	}
	panic("ir: MoveInstructionBefore: mark not found in its own block")
}
