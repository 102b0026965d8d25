package bitset

import "testing"

func TestSetResetTest(t *testing.T) {
	b := New(8)
	if b.Test(3) {
		t.Fatal("expected bit 3 to start clear")
	}
	b.Set(3)
	if !b.Test(3) {
		t.Fatal("expected bit 3 to be set")
	}
	b.Reset(3)
	if b.Test(3) {
		t.Fatal("expected bit 3 to be cleared")
	}
}

func TestAllAndComplement(t *testing.T) {
	u := All(5)
	for i := uint(0); i < 5; i++ {
		if !u.Test(i) {
			t.Fatalf("expected bit %d set in universal set", i)
		}
	}
	empty := u.Complement()
	if !empty.IsEmpty() {
		t.Fatal("expected complement of universal set to be empty")
	}
}

func TestUnionIntersectionDifference(t *testing.T) {
	a := New(4).Set(0).Set(1)
	b := New(4).Set(1).Set(2)

	u := a.Union(b)
	for i, want := range []bool{true, true, true, false} {
		if u.Test(uint(i)) != want {
			t.Fatalf("union bit %d: got %v want %v", i, u.Test(uint(i)), want)
		}
	}

	i2 := a.Intersection(b)
	if !i2.Test(1) || i2.Test(0) || i2.Test(2) {
		t.Fatalf("intersection wrong: %v", i2)
	}

	d := a.Difference(b)
	if !d.Test(0) || d.Test(1) {
		t.Fatalf("difference wrong: %v", d)
	}
}

func TestInPlaceOps(t *testing.T) {
	a := New(4).Set(0)
	b := New(4).Set(1)
	a.InPlaceUnion(b)
	if !a.Test(0) || !a.Test(1) {
		t.Fatal("expected in-place union to set both bits")
	}
	a.InPlaceIntersection(New(4).Set(1))
	if a.Test(0) || !a.Test(1) {
		t.Fatal("expected in-place intersection to keep only bit 1")
	}
}

func TestEqual(t *testing.T) {
	a := New(4).Set(2)
	b := New(4).Set(2)
	if !a.Equal(b) {
		t.Fatal("expected equal bitsets to compare equal")
	}
	b.Set(3)
	if a.Equal(b) {
		t.Fatal("expected differing bitsets to compare unequal")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New(4).Set(0)
	clone := a.Clone()
	clone.Set(1)
	if a.Test(1) {
		t.Fatal("expected clone mutation not to affect original")
	}
}

func TestEach(t *testing.T) {
	a := New(8).Set(1).Set(4).Set(7)
	var got []uint
	a.Each(func(i uint) { got = append(got, i) })
	want := []uint{1, 4, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range index")
		}
	}()
	New(4).Set(10)
}
