package iteratable

import "testing"

func TestAddDedup(t *testing.T) {
	s := NewSet[int](0)
	if !s.Add(1) {
		t.Fatal("expected first Add to report new")
	}
	if s.Add(1) {
		t.Fatal("expected second Add of same value to report duplicate")
	}
	if s.Size() != 1 {
		t.Fatalf("expected size 1, got %d", s.Size())
	}
}

func TestWorkQueueIteration(t *testing.T) {
	s := NewSet[int](0)
	s.Add(1)
	s.Add(2)
	seen := []int{}
	s.IterateOnce()
	for s.Next() {
		v := s.Item()
		seen = append(seen, v)
		if v == 1 {
			s.Add(3) // appended at tail; must still be visited
		}
	}
	want := []int{1, 2, 3}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("got %v, want %v", seen, want)
		}
	}
}

func TestRemoveDuringIteration(t *testing.T) {
	s := NewSet[int](0)
	s.Add(1)
	s.Add(2)
	s.Add(3)
	var seen []int
	s.IterateOnce()
	for s.Next() {
		v := s.Item()
		if v == 2 {
			s.Remove(v)
			continue
		}
		seen = append(seen, v)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Fatalf("expected [1 3], got %v", seen)
	}
}

func TestUnionMutatesReceiver(t *testing.T) {
	a := NewSet[int](0)
	a.Add(1)
	b := NewSet[int](0)
	b.Add(2)
	ret := a.Union(b)
	if ret != a {
		t.Fatal("expected Union to return the receiver")
	}
	if a.Size() != 2 || !a.Contains(2) {
		t.Fatalf("expected a to contain {1,2}, got %v", a.Values())
	}
}

func TestDifferenceNonDestructive(t *testing.T) {
	a := NewSet[int](0)
	a.Add(1)
	a.Add(2)
	b := NewSet[int](0)
	b.Add(2)
	d := a.Difference(b)
	if d.Size() != 1 || !d.Contains(1) {
		t.Fatalf("expected difference {1}, got %v", d.Values())
	}
	if a.Size() != 2 {
		t.Fatalf("expected a unmodified, got %v", a.Values())
	}
}

func TestEquals(t *testing.T) {
	a := NewSet[int](0)
	a.Add(1)
	a.Add(2)
	b := NewSet[int](0)
	b.Add(2)
	b.Add(1)
	if !a.Equals(b) {
		t.Fatal("expected sets with same elements in different order to be equal")
	}
}

func TestSort(t *testing.T) {
	s := NewSet[int](0)
	s.Add(3)
	s.Add(1)
	s.Add(2)
	s.Sort(func(a, b int) bool { return a < b })
	got := s.Values()
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
