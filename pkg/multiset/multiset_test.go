package multiset

import "testing"

func TestIncGet(t *testing.T) {
	s := New()
	if s.Get(42) != 0 {
		t.Fatalf("expected 0 for absent hash")
	}
	s.Inc(42)
	s.Inc(42)
	if got := s.Get(42); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
}

func TestDecReturnsPriorCount(t *testing.T) {
	s := New()
	if got := s.Dec(7); got != 0 {
		t.Fatalf("Dec() on absent hash = %d, want 0", got)
	}
	s.Inc(7)
	s.Inc(7)
	s.Inc(7)
	if got := s.Dec(7); got != 3 {
		t.Fatalf("Dec() = %d, want prior count 3", got)
	}
	if got := s.Get(7); got != 2 {
		t.Fatalf("Get() after Dec = %d, want 2", got)
	}
}

func TestDecRemovesEntryAtZero(t *testing.T) {
	s := New()
	s.Inc(1)
	if got := s.Dec(1); got != 1 {
		t.Fatalf("Dec() = %d, want 1", got)
	}
	if s.Len() != 0 {
		t.Fatalf("expected entry removed once count reaches 0, Len()=%d", s.Len())
	}
	if s.Get(1) != 0 {
		t.Fatalf("Get() after exhausting entry = %d, want 0", s.Get(1))
	}
}

func TestMultipleHashesIndependent(t *testing.T) {
	s := New()
	s.Inc(1)
	s.Inc(2)
	s.Inc(2)
	if s.Get(1) != 1 || s.Get(2) != 2 {
		t.Fatalf("hashes interfered: Get(1)=%d Get(2)=%d", s.Get(1), s.Get(2))
	}
	s.Dec(2)
	if s.Get(1) != 1 || s.Get(2) != 1 {
		t.Fatalf("Dec(2) affected unrelated hash: Get(1)=%d Get(2)=%d", s.Get(1), s.Get(2))
	}
}
