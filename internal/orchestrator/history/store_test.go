package history

import (
	"fmt"
	"sync"
	"testing"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore(10)
	s.Add("first page", "aa")
	s.Add("second page", "bb")

	got := s.Recent(0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "second page" || got[1].Text != "first page" {
		t.Errorf("order = %q, %q; want newest first", got[0].Text, got[1].Text)
	}
	if got[0].Fingerprint != "bb" || got[0].At.IsZero() {
		t.Errorf("entry = %+v", got[0])
	}
}

func TestStoreEviction(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(fmt.Sprintf("page %d", i), "")
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	got := s.Recent(0)
	if got[0].Text != "page 4" || got[2].Text != "page 2" {
		t.Errorf("entries = %+v", got)
	}
}

func TestStoreRecentLimit(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 5; i++ {
		s.Add(fmt.Sprintf("page %d", i), "")
	}

	got := s.Recent(2)
	if len(got) != 2 || got[0].Text != "page 4" {
		t.Errorf("Recent(2) = %+v", got)
	}
	if len(s.Recent(50)) != 5 {
		t.Error("Recent beyond size should return all")
	}
}

func TestStoreMinimumSize(t *testing.T) {
	s := NewStore(0)
	s.Add("a", "")
	s.Add("b", "")
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStoreConcurrent(t *testing.T) {
	s := NewStore(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(fmt.Sprintf("page %d", i), "")
			_ = s.Recent(5)
		}(i)
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Errorf("Len = %d, want 20", s.Len())
	}
}
