package ir

// ReplaceSuccessor rewrites term's successor old to new wherever it
// appears (a conditional branch may need only one side rewritten, an
// unconditional jump only has one slot). It does not touch Preds/Succs
// bookkeeping; callers use it together with the Builder edge helpers.
func ReplaceSuccessor(term Instruction, old, new *BasicBlock) {
	switch t := term.(type) {
	case *JumpTerm:
		if t.Target == old {
			t.Target = new
		}
	case *BrTerm:
		if t.TrueBlk == old {
			t.TrueBlk = new
		}
		if t.FalseBlk == old {
			t.FalseBlk = new
		}
	}
}

// removeBlockFromSlice removes the first occurrence of blk from slice.
func removeBlockFromSlice(slice []*BasicBlock, blk *BasicBlock) []*BasicBlock {
	for i, b := range slice {
		if b == blk {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}

// RemoveEdge removes the from->to edge from both blocks' Preds/Succs
// lists. It does not touch the terminator.
func (b *Builder) RemoveEdge(from, to *BasicBlock) {
	from.Succs = removeBlockFromSlice(from.Succs, to)
	to.Preds = removeBlockFromSlice(to.Preds, from)
}

// SplitEdge splits the from->to edge by inserting a new, empty
// intermediate block between them: from now jumps to the new block, which
// jumps unconditionally to to. Every φ in to that had from as an incoming
// predecessor is rewritten to receive its value from the new block
// instead, preserving the value. Returns the new block.
//
// This is the critical-edge-splitting preprocessing step the Lazy Code
// Motion Rewriter requires (§4.6): it runs once per edge, never once per
// predecessor pair, so it never creates a block for an edge that has
// already been split (the open question in spec §9).
func (b *Builder) SplitEdge(from, to *BasicBlock) *BasicBlock {
	mid := b.Block(from.Name + "." + to.Name + ".split")

	term := from.Terminator()
	ReplaceSuccessor(term, to, mid)
	b.RemoveEdge(from, to)
	b.AddEdge(from, mid)

	for _, phi := range to.Phis() {
		for i, e := range phi.Incoming {
			if e.Pred == from {
				phi.Incoming[i].Pred = mid
			}
		}
	}

	b.SetJump(mid, to)
	return mid
}

// SplitBlockBefore inserts a new, empty block in front of blk: the new
// block inherits blk's current predecessors and falls straight through to
// blk. blk keeps its name and every one of its instructions; the new block
// is returned. φ edges in blk still name the old predecessors. §4.7 step
// 1's landing-pad split is SplitBlockAtTerminator, not this function.
func (b *Builder) SplitBlockBefore(blk *BasicBlock, newName string) *BasicBlock {
	head := &BasicBlock{ID: b.fn.nextBlockID, Name: newName, Func: b.fn}
	b.fn.nextBlockID++

	// Insert head into the block list right before blk so iteration order
	// stays a reasonable approximation of program order.
	idx := blockIndex(b.fn, blk)
	b.fn.Blocks = append(b.fn.Blocks, nil)
	copy(b.fn.Blocks[idx+1:], b.fn.Blocks[idx:])
	b.fn.Blocks[idx] = head

	head.Preds = blk.Preds
	blk.Preds = nil
	for _, p := range head.Preds {
		term := p.Terminator()
		ReplaceSuccessor(term, blk, head)
		p.Succs = replaceBlockInSlice(p.Succs, blk, head)
	}

	b.SetJump(head, blk)
	if b.fn.Entry == blk {
		b.fn.Entry = head
	}
	return head
}

// SplitBlockAtFirstInstruction splits blk at its first instruction,
// producing a new block (the "later half", named laterName) that takes
// over every instruction and successor edge; blk itself (the "earlier
// half") keeps its original name and predecessors and becomes a
// standalone jump to the later half. This mirrors §4.7 step 4a's "common
// exit" split: the loop-exit block's identity and its real predecessors
// (latch and preheader, after rotation) stay on blk so external references
// to it keep working, and only the block's former body moves into the new
// later block — the `.commonexit`-naming discipline of
// original_source/LICM/src/landing-pad.cpp's `splitBasicBlock` call, whose
// new-block argument names the piece that moves, not the piece that stays.
func (b *Builder) SplitBlockAtFirstInstruction(blk *BasicBlock, laterName string) *BasicBlock {
	return b.splitBlockAt(blk, 0, laterName)
}

// SplitBlockAtTerminator splits off just blk's terminator into a new
// later block, leaving every other instruction (and blk's identity,
// name, and predecessors) untouched. This is §4.7 step 1's landing-pad
// split: `preHeader->splitBasicBlock(preHeader->getTerminator(), name)` in
// original_source/LICM/src/landing-pad.cpp moves only the terminator (and
// the edge it represents) into the new block, leaving the preheader's own
// identity — and any LICM-hoisted invariants already sitting in it — in
// place.
func (b *Builder) SplitBlockAtTerminator(blk *BasicBlock, laterName string) *BasicBlock {
	term := blk.Terminator()
	if term == nil {
		panic("ir: SplitBlockAtTerminator: block has no terminator")
	}
	return b.splitBlockAt(blk, len(blk.Instructions)-1, laterName)
}

// splitBlockAt moves blk.Instructions[at:] (and blk's outgoing edges) into
// a new block named laterName, inserted immediately after blk; blk keeps
// its identity, name, and predecessors, and gets a fresh unconditional
// jump to the new block.
func (b *Builder) splitBlockAt(blk *BasicBlock, at int, laterName string) *BasicBlock {
	// Copy blk.Instructions[at:] rather than reslice it: blk.Instructions
	// is truncated to [:at] below and then appended to via SetJump, which
	// would otherwise silently overwrite later's aliased backing array.
	movedInstructions := append([]Instruction(nil), blk.Instructions[at:]...)
	later := &BasicBlock{ID: b.fn.nextBlockID, Name: laterName, Func: b.fn, Instructions: movedInstructions, Succs: blk.Succs}
	b.fn.nextBlockID++
	for _, inst := range later.Instructions {
		inst.setBlock(later)
	}
	for _, s := range later.Succs {
		s.Preds = replaceBlockInSlice(s.Preds, blk, later)
	}

	blk.Instructions = blk.Instructions[:at]
	blk.Succs = nil

	idx := blockIndex(b.fn, blk)
	b.fn.Blocks = append(b.fn.Blocks, nil)
	copy(b.fn.Blocks[idx+2:], b.fn.Blocks[idx+1:])
	b.fn.Blocks[idx+1] = later

	b.SetJump(blk, later)
	return later
}

func replaceBlockInSlice(slice []*BasicBlock, old, new *BasicBlock) []*BasicBlock {
	for i, b := range slice {
		if b == old {
			slice[i] = new
		}
	}
	return slice
}

func blockIndex(fn *Function, blk *BasicBlock) int {
	for i, b := range fn.Blocks {
		if b == blk {
			return i
		}
	}
	panic("ir: block not found in function")
}
