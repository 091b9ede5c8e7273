package arena

import "testing"

func TestAllocAcrossSlabs(t *testing.T) {
	p := NewPool[int](4, 0)
	for i := 0; i < 10; i++ {
		v, ok := p.Alloc()
		if !ok {
			t.Fatalf("unexpected alloc failure at %d", i)
		}
		*v = i
	}
	if p.Count() != 10 {
		t.Fatalf("expected count 10, got %d", p.Count())
	}
	if len(p.slabs) != 3 {
		t.Fatalf("expected 3 slabs of 4, got %d", len(p.slabs))
	}
}

func TestAllocCeilingReportsNoMemory(t *testing.T) {
	p := NewPool[int](4, 2)
	if _, ok := p.Alloc(); !ok {
		t.Fatal("expected first alloc to succeed")
	}
	if _, ok := p.Alloc(); !ok {
		t.Fatal("expected second alloc to succeed")
	}
	if _, ok := p.Alloc(); ok {
		t.Fatal("expected third alloc to report exhaustion")
	}
}

func TestResetReclaimsCapacity(t *testing.T) {
	p := NewPool[int](4, 2)
	p.Alloc()
	p.Alloc()
	p.Reset()
	if p.Count() != 0 {
		t.Fatalf("expected count 0 after Reset, got %d", p.Count())
	}
	if _, ok := p.Alloc(); !ok {
		t.Fatal("expected alloc to succeed again after Reset")
	}
}

func TestSharedPoolAlloc(t *testing.T) {
	s := NewSharedPool[int](4, 0)
	v, ok := s.Alloc()
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	*v = 42
	if s.pool.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.pool.Count())
	}
}
