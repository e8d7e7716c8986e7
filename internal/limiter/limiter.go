// Package limiter bounds how many tasks run at once.
//
// Submissions beyond the capacity wait in a FIFO queue and start, in
// submission order, as soon as a running task returns. A slot is released
// exactly once per task, even when the task fails or panics.
package limiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is the unit of work run by a Limiter.
type Task func(ctx context.Context) error

// Future is the pending result of a submitted task.
type Future struct {
	done chan struct{}
	err  error
}

// Done is closed when the task has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task completes and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

type job struct {
	ctx    context.Context
	task   Task
	future *Future
}

// Limiter runs at most Capacity tasks concurrently.
type Limiter struct {
	capacity int
	sem      *semaphore.Weighted

	mu      sync.Mutex
	queue   []job
	running int
}

// New returns a Limiter with n slots. Values below 1 mean 1.
func New(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{
		capacity: n,
		sem:      semaphore.NewWeighted(int64(n)),
	}
}

// Capacity returns the fixed slot count.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Submit queues task and returns immediately. The task receives ctx.
func (l *Limiter) Submit(ctx context.Context, task Task) *Future {
	f := &Future{done: make(chan struct{})}

	l.mu.Lock()
	l.queue = append(l.queue, job{ctx: ctx, task: task, future: f})
	l.dispatchLocked()
	l.mu.Unlock()

	return f
}

// Run submits task and waits for it.
func (l *Limiter) Run(ctx context.Context, task Task) error {
	return l.Submit(ctx, task).Wait()
}

// Pending returns the number of queued tasks that have not started.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Running returns the number of tasks that hold a slot.
func (l *Limiter) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// dispatchLocked starts queued jobs while slots are free. l.mu must be held.
func (l *Limiter) dispatchLocked() {
	for len(l.queue) > 0 && l.sem.TryAcquire(1) {
		j := l.queue[0]
		l.queue[0] = job{}
		l.queue = l.queue[1:]
		l.running++
		go l.run(j)
	}
}

func (l *Limiter) run(j job) {
	var err error
	defer func() {
		l.mu.Lock()
		l.running--
		l.sem.Release(1)
		l.dispatchLocked()
		l.mu.Unlock()
		j.future.complete(err)
	}()

	if cerr := j.ctx.Err(); cerr != nil {
		err = cerr
		return
	}
	err = invoke(j.ctx, j.task)
}

func invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
