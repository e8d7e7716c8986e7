package transport

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces requests by a fixed delay plus up to jitterRatio of it.
// A zero delay disables pacing.
type pacer struct {
	delay       time.Duration
	jitterRatio float64
	limiter     *rate.Limiter
}

func newPacer(delay time.Duration, jitterRatio float64) *pacer {
	p := &pacer{delay: delay, jitterRatio: jitterRatio}
	if delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return p
}

func (p *pacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	extra := time.Duration(float64(p.delay) * p.jitterRatio)
	if extra <= 0 {
		return nil
	}
	timer := time.NewTimer(rand.N(extra))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
