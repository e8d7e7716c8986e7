package harvest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/jobharvest/internal/model"
)

func TestSession_ReserveNeverExceedsDesired(t *testing.T) {
	t.Parallel()

	s := newSession("run", model.SearchCriteria{DesiredCount: 10}, time.Now())
	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Reserve() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 10 || !s.Full() {
		t.Errorf("granted = %d, Full() = %v", granted.Load(), s.Full())
	}
	s.Release()
	if s.Full() || s.Reserved() != 9 {
		t.Errorf("after Release: Reserved() = %d", s.Reserved())
	}
}

func TestSession_Summary(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newSession("run", model.SearchCriteria{DesiredCount: 4}, start)
	s.addPage(model.ChannelAPI)
	s.addSaved(model.ChannelAPI)
	s.addSaved(model.ChannelAPI)
	s.addError(model.ChannelAPI)

	sum := s.summary(start.Add(time.Second))
	if sum.RecordsSaved != 2 || sum.PagesProcessed != 1 || sum.Errors != 1 || sum.Elapsed != time.Second {
		t.Errorf("summary = %+v", sum)
	}
	if _, ok := sum.Channels[model.ChannelHTML]; ok {
		t.Error("idle channel should be omitted")
	}
	if got := sum.Channels[model.ChannelAPI]; got != (model.ChannelStats{Pages: 1, Records: 2, Errors: 1}) {
		t.Errorf("api stats = %+v", got)
	}
	if s.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2", s.Remaining())
	}
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	if a == "" || a == b || len(a) != 36 {
		t.Errorf("NewRunID() = %q, %q", a, b)
	}
}
