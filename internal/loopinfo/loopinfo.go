// Package loopinfo computes natural-loop structure — header, latch,
// preheader, exit, and parent loop — over a Function's CFG, layered on top
// of the Dominators analysis (package dominators) the way a production
// compiler's LoopInfo pass sits above a DominatorTree pass. Neither
// Landing-Pad/Loop-Rotation (§4.7) nor LICM (§4.8) computes dominance or
// loop membership itself; both consume this package's Info.
//
// The distilled spec leaves loop-info construction to an "IR Host"; this
// package is that part of the Host (see SPEC_FULL.md §0), kept separate
// from package ir so that ir itself stays dominance-unaware and usable by
// passes (PRE, DCE) that have no notion of loops at all.
//
// A back edge is any edge L->H where H dominates L. A loop header can have
// more than one back edge (an irreducible-looking multi-latch loop); §4.7's
// precondition requires exactly one, so Loop.Latch is nil whenever the
// header has more than one, and Landing-Pad's precondition check (not this
// package) is what turns that into a skip.
package loopinfo

import (
	"ssaopt/internal/dominators"
	"ssaopt/internal/ir"
)

// Loop is one natural loop. Preheader is nil unless the header has a
// single predecessor outside the loop whose only successor is the header;
// Latch is nil unless the header has a single back edge; Exit is nil unless
// the loop has a single exit block. Landing-Pad (§4.7) needs all three;
// LICM (§4.8) needs only Preheader. Callers that require a field must
// check for nil rather than panic, per §7's "malformed precondition:
// report and skip" rule.
type Loop struct {
	Header    *ir.BasicBlock
	Latch     *ir.BasicBlock
	Preheader *ir.BasicBlock
	Exit      *ir.BasicBlock
	Parent    *Loop

	// Blocks is every block in the loop body, header and latch(es)
	// included, in no particular order.
	Blocks []*ir.BasicBlock
}

// Contains reports whether blk is part of the loop's body.
func (l *Loop) Contains(blk *ir.BasicBlock) bool {
	for _, b := range l.Blocks {
		if b == blk {
			return true
		}
	}
	return false
}

// Info is the per-function result: every natural loop found, indexed by
// header.
type Info struct {
	Loops  []*Loop
	header map[*ir.BasicBlock]*Loop
}

// ForHeader returns the loop whose header is h, or nil if h is not a loop
// header.
func (i *Info) ForHeader(h *ir.BasicBlock) *Loop { return i.header[h] }

// Analyze computes loop info for fn from a precomputed Dominators result.
func Analyze(fn *ir.Function, doms *dominators.Result) *Info {
	info := &Info{header: make(map[*ir.BasicBlock]*Loop)}

	// Discover back edges in block order so loop discovery (and so the
	// resulting Loops slice) is deterministic.
	var headersInOrder []*ir.BasicBlock
	latchesOf := make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, l := range fn.Blocks {
		for _, h := range l.Succs {
			if !doms.Dominates(h, l) {
				continue
			}
			if _, seen := latchesOf[h]; !seen {
				headersInOrder = append(headersInOrder, h)
			}
			latchesOf[h] = append(latchesOf[h], l)
		}
	}

	for _, h := range headersInOrder {
		latches := latchesOf[h]
		body := naturalLoopBody(h, latches)

		loop := &Loop{Header: h, Blocks: body}
		if len(latches) == 1 {
			loop.Latch = latches[0]
		}
		loop.Preheader = findPreheader(h, body)
		loop.Exit = findExit(body)

		info.Loops = append(info.Loops, loop)
		info.header[h] = loop
	}

	assignParents(info.Loops)
	return info
}

// naturalLoopBody computes {header} ∪ every block that can reach a latch
// without passing through header, the standard natural-loop construction.
func naturalLoopBody(header *ir.BasicBlock, latches []*ir.BasicBlock) []*ir.BasicBlock {
	in := map[*ir.BasicBlock]bool{header: true}
	var worklist []*ir.BasicBlock
	for _, l := range latches {
		if !in[l] {
			in[l] = true
			worklist = append(worklist, l)
		}
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, p := range n.Preds {
			if !in[p] {
				in[p] = true
				worklist = append(worklist, p)
			}
		}
	}
	body := make([]*ir.BasicBlock, 0, len(in))
	for b := range in {
		body = append(body, b)
	}
	return body
}

// findPreheader returns header's unique predecessor outside the loop body,
// provided that predecessor's only successor is header — otherwise
// inserting code before its terminator would also run on paths that never
// enter the loop.
func findPreheader(header *ir.BasicBlock, body []*ir.BasicBlock) *ir.BasicBlock {
	inBody := toSet(body)
	var outside []*ir.BasicBlock
	for _, p := range header.Preds {
		if !inBody[p] {
			outside = append(outside, p)
		}
	}
	if len(outside) != 1 {
		return nil
	}
	cand := outside[0]
	if len(cand.Succs) != 1 {
		return nil
	}
	return cand
}

// findExit returns the loop's unique exit block: a successor, of some
// block in the body, that is itself outside the body, or nil when there is
// not exactly one. Landing-Pad (§4.7) requires it to be unique.
func findExit(body []*ir.BasicBlock) *ir.BasicBlock {
	inBody := toSet(body)
	var exits []*ir.BasicBlock
	seen := make(map[*ir.BasicBlock]bool)
	for _, b := range body {
		for _, s := range b.Succs {
			if inBody[s] || seen[s] {
				continue
			}
			seen[s] = true
			exits = append(exits, s)
		}
	}
	if len(exits) != 1 {
		return nil
	}
	return exits[0]
}

// assignParents sets each loop's Parent to the smallest enclosing loop
// whose body contains this loop's header, other than itself.
func assignParents(loops []*Loop) {
	for _, inner := range loops {
		var parent *Loop
		for _, outer := range loops {
			if outer == inner {
				continue
			}
			if !outer.Contains(inner.Header) {
				continue
			}
			if parent == nil || len(outer.Blocks) < len(parent.Blocks) {
				parent = outer
			}
		}
		inner.Parent = parent
	}
}

func toSet(blocks []*ir.BasicBlock) map[*ir.BasicBlock]bool {
	set := make(map[*ir.BasicBlock]bool, len(blocks))
	for _, b := range blocks {
		set[b] = true
	}
	return set
}
