package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// Class is the verdict of a Classifier.
type Class int

const (
	// Retryable failures are attempted again while attempts remain.
	Retryable Class = iota
	// Fatal failures stop the executor immediately.
	Fatal
)

// String returns the class name.
func (c Class) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "retryable"
}

// Classifier decides whether a failure is worth another attempt.
type Classifier func(err error) Class

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ErrExhausted matches every *ExhaustedError with errors.Is.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

// Error implements error.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes the last failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is makes errors.Is(err, ErrExhausted) hold.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// DefaultClassifier treats 404 and 410 responses and caller cancellation as
// fatal. Every other failure is retryable, including timeouts, connection
// errors and other non-2xx statuses.
func DefaultClassifier(err error) Class {
	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusNotFound, http.StatusGone:
			return Fatal
		}
	}
	return Retryable
}

// Policy is the retry configuration of one call site.
type Policy struct {
	// MaxAttempts counts the first attempt. Values below 1 mean 1.
	MaxAttempts int
	// Base is the backoff unit: attempt n sleeps Base*2^n plus up to Base of jitter.
	Base time.Duration
	// MaxDelay caps a single sleep. Zero means no cap.
	MaxDelay time.Duration
}

// Default call-site policies.
var (
	SearchPolicy       = Policy{MaxAttempts: 3, Base: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
	DetailPolicy       = Policy{MaxAttempts: 2, Base: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
	AutocompletePolicy = Policy{MaxAttempts: 2, Base: 250 * time.Millisecond, MaxDelay: 5 * time.Second}
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor applies a Policy and a Classifier to operations. It holds no
// per-call state and is safe for concurrent use.
type Executor struct {
	name     string
	policy   Policy
	classify Classifier
	sleep    Sleeper
	jitter   func(max time.Duration) time.Duration
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c Classifier) Option {
	return func(e *Executor) {
		if c != nil {
			e.classify = c
		}
	}
}

// WithSleeper replaces the context-aware timer sleep.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithJitter replaces the uniform jitter source.
func WithJitter(j func(max time.Duration) time.Duration) Option {
	return func(e *Executor) {
		if j != nil {
			e.jitter = j
		}
	}
}

// WithLogger sets the logger used for retry debug records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Executor for the named call site.
func New(name string, policy Policy, opts ...Option) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	e := &Executor{
		name:     name,
		policy:   policy,
		classify: DefaultClassifier,
		sleep:    sleepContext,
		jitter:   uniformJitter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs op until it succeeds, fails fatally or runs out of attempts.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var last error

	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err

		if e.classify(err) == Fatal {
			return zero, err
		}
		if attempt == e.policy.MaxAttempts-1 {
			break
		}

		delay := e.backoff(attempt)
		e.logger.Debug("retrying",
			"site", e.name,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: e.policy.MaxAttempts, Last: last}
}

// Run is Do for operations without a result.
func (e *Executor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func (e *Executor) backoff(attempt int) time.Duration {
	d := e.policy.Base << attempt
	if e.policy.Base > 0 {
		d += e.jitter(e.policy.Base)
	}
	if e.policy.MaxDelay > 0 && d > e.policy.MaxDelay {
		d = e.policy.MaxDelay
	}
	return d
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
