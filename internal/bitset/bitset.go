// Package bitset implements the BitSet domain primitive: a fixed-width bit
// vector supporting union, intersection, complement, equality, and indexed
// test/set/reset. Width is immutable after construction and every operation
// between two BitSets requires equal widths — the owning analysis is
// responsible for giving every vector the same domain cardinality.
//
// The package is a thin, width-safe layer over github.com/bits-and-blooms/bitset,
// which stores bits in machine words and over-allocates to word boundaries;
// this wrapper masks every result back down to the declared width so that
// Complement and NextSet never see the padding bits.
package bitset

import (
	bbs "github.com/bits-and-blooms/bitset"
)

// BitSet is a fixed-length bit sequence of width N.
type BitSet struct {
	n    uint
	bits *bbs.BitSet
}

// New returns an empty BitSet of the given width.
func New(n uint) *BitSet {
	return &BitSet{n: n, bits: bbs.New(n)}
}

// All returns a BitSet of the given width with every bit set — the universal
// set U referenced throughout the dataflow spec as an initial condition.
func All(n uint) *BitSet {
	b := New(n)
	for i := uint(0); i < n; i++ {
		b.bits.Set(i)
	}
	return b
}

// Len reports the domain width.
func (b *BitSet) Len() uint {
	return b.n
}

// Set sets bit i and returns the receiver for chaining.
func (b *BitSet) Set(i uint) *BitSet {
	b.checkIndex(i)
	b.bits.Set(i)
	return b
}

// Reset clears bit i and returns the receiver for chaining.
func (b *BitSet) Reset(i uint) *BitSet {
	b.checkIndex(i)
	b.bits.Clear(i)
	return b
}

// Test reports whether bit i is set.
func (b *BitSet) Test(i uint) bool {
	b.checkIndex(i)
	return b.bits.Test(i)
}

// Clone returns an independent copy.
func (b *BitSet) Clone() *BitSet {
	return &BitSet{n: b.n, bits: b.bits.Clone()}
}

// Complement returns the bitwise complement within the declared width.
func (b *BitSet) Complement() *BitSet {
	out := b.bits.Clone().Complement()
	out.InPlaceIntersection(mask(b.n))
	return &BitSet{n: b.n, bits: out}
}

// Union returns the bitwise OR of b and o.
func (b *BitSet) Union(o *BitSet) *BitSet {
	b.checkWidth(o)
	return &BitSet{n: b.n, bits: b.bits.Union(o.bits)}
}

// Intersection returns the bitwise AND of b and o.
func (b *BitSet) Intersection(o *BitSet) *BitSet {
	b.checkWidth(o)
	return &BitSet{n: b.n, bits: b.bits.Intersection(o.bits)}
}

// Difference returns b with every bit of o cleared (b &^ o).
func (b *BitSet) Difference(o *BitSet) *BitSet {
	b.checkWidth(o)
	return &BitSet{n: b.n, bits: b.bits.Difference(o.bits)}
}

// InPlaceUnion ORs o into b.
func (b *BitSet) InPlaceUnion(o *BitSet) {
	b.checkWidth(o)
	b.bits.InPlaceUnion(o.bits)
}

// InPlaceIntersection ANDs o into b.
func (b *BitSet) InPlaceIntersection(o *BitSet) {
	b.checkWidth(o)
	b.bits.InPlaceIntersection(o.bits)
}

// Equal reports whether b and o have the same width and the same bits set.
func (b *BitSet) Equal(o *BitSet) bool {
	if o == nil {
		return false
	}
	return b.n == o.n && b.bits.Equal(o.bits)
}

// IsEmpty reports whether no bit is set.
func (b *BitSet) IsEmpty() bool {
	return b.bits.None()
}

// NextSet returns the next set bit at or after i, and whether one exists.
func (b *BitSet) NextSet(i uint) (uint, bool) {
	return b.bits.NextSet(i)
}

// Each iterates every set bit in ascending order.
func (b *BitSet) Each(fn func(i uint)) {
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		fn(i)
	}
}

func (b *BitSet) checkIndex(i uint) {
	if i >= b.n {
		panic("bitset: index out of range for domain width")
	}
}

func (b *BitSet) checkWidth(o *BitSet) {
	if b.n != o.n {
		panic("bitset: width mismatch between operands")
	}
}

func mask(n uint) *bbs.BitSet {
	m := bbs.New(n)
	for i := uint(0); i < n; i++ {
		m.Set(i)
	}
	return m
}
