package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	l := New(3)
	var current, peak atomic.Int32
	futures := make([]*Future, 0, 10)

	for range 10 {
		futures = append(futures, l.Submit(context.Background(), func(context.Context) error {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return nil
		}))
	}

	for _, f := range futures {
		if err := f.Wait(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
	if l.Running() != 0 || l.Pending() != 0 {
		t.Errorf("running=%d pending=%d after completion", l.Running(), l.Pending())
	}
}

func TestLimiter_FIFOStartOrder(t *testing.T) {
	t.Parallel()

	l := New(1)
	gate := make(chan struct{})
	var mu sync.Mutex
	var order []int

	first := l.Submit(context.Background(), func(context.Context) error {
		<-gate
		return nil
	})

	futures := make([]*Future, 0, 5)
	for i := range 5 {
		futures = append(futures, l.Submit(context.Background(), func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	close(gate)

	if err := first.Wait(); err != nil {
		t.Fatal(err)
	}
	for _, f := range futures {
		if err := f.Wait(); err != nil {
			t.Fatal(err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("start order = %v, want ascending", order)
		}
	}
}

func TestLimiter_FailuresAndPanicsReleaseSlots(t *testing.T) {
	t.Parallel()

	l := New(2)
	boom := errors.New("boom")

	errs := []error{
		l.Run(context.Background(), func(context.Context) error { return boom }),
		l.Run(context.Background(), func(context.Context) error { panic("bad parser") }),
		l.Run(context.Background(), func(context.Context) error { return boom }),
	}
	if !errors.Is(errs[0], boom) || !errors.Is(errs[2], boom) {
		t.Errorf("task errors not propagated: %v", errs)
	}
	if errs[1] == nil {
		t.Error("panic must surface as an error")
	}

	// Both slots must be usable again.
	done := make(chan struct{}, 2)
	for range 2 {
		l.Submit(context.Background(), func(context.Context) error {
			done <- struct{}{}
			return nil
		})
	}
	for range 2 {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("slot leaked")
		}
	}
}

func TestLimiter_CancelledTaskDoesNotRun(t *testing.T) {
	t.Parallel()

	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := l.Run(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("task ran with a cancelled context")
	}
}

func TestNew_MinimumCapacity(t *testing.T) {
	t.Parallel()

	if got := New(0).Capacity(); got != 1 {
		t.Errorf("Capacity() = %d, want 1", got)
	}
}
