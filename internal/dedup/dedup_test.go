package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSet_ShouldProcess(t *testing.T) {
	t.Parallel()

	s := New()
	if !s.ShouldProcess("176543W") {
		t.Fatal("first sighting must be admitted")
	}
	if s.ShouldProcess("176543W") {
		t.Error("second sighting must be rejected")
	}
	if s.ShouldProcess("") {
		t.Error("empty identity must be rejected")
	}
	if !s.Seen("176543W") || s.Seen("other") {
		t.Error("Seen reports wrong membership")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSet_ConcurrentCallersOneWinner(t *testing.T) {
	t.Parallel()

	s := New()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.ShouldProcess("https://www.apec.fr/detail-offre/1") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Errorf("winners = %d, want 1", got)
	}
}
