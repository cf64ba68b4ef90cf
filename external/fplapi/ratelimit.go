package fplapi

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// requestPacer serializes upstream calls behind two constraints: a sliding
// window of at most limit requests per window, and a minimum spacing between
// consecutive requests. Spacing is jittered by ±25% so the service never
// phase-locks with the upstream's own throttling.
type requestPacer struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	minInterval time.Duration
	stamps      []time.Time
	lastAt      time.Time
	now         func() time.Time
	jitter      func() float64
}

func newRequestPacer(limit int, minInterval time.Duration) *requestPacer {
	if limit < 1 {
		limit = 1
	}
	if minInterval < 0 {
		minInterval = 0
	}
	return &requestPacer{
		limit:       limit,
		window:      time.Minute,
		minInterval: minInterval,
		now:         time.Now,
		jitter:      rand.Float64,
	}
}

// Wait blocks until the caller may issue the next request, then records it.
func (p *requestPacer) Wait(ctx context.Context) error {
	for {
		delay := p.reserve()
		if delay <= 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *requestPacer) reserve() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.prune(now)

	var delay time.Duration
	if len(p.stamps) >= p.limit {
		oldest := p.stamps[len(p.stamps)-p.limit]
		if wait := oldest.Add(p.window).Sub(now); wait > delay {
			delay = wait
		}
	}
	if p.minInterval > 0 && !p.lastAt.IsZero() {
		spacing := jitterDuration(p.minInterval, p.jitter())
		if wait := p.lastAt.Add(spacing).Sub(now); wait > delay {
			delay = wait
		}
	}

	if delay > 0 {
		return delay
	}

	p.stamps = append(p.stamps, now)
	p.lastAt = now
	return 0
}

func (p *requestPacer) prune(now time.Time) {
	cutoff := now.Add(-p.window)
	keep := 0
	for _, stamp := range p.stamps {
		if stamp.After(cutoff) {
			break
		}
		keep++
	}
	if keep > 0 {
		p.stamps = append(p.stamps[:0], p.stamps[keep:]...)
	}
}

// jitterDuration scales d by a factor in [0.75, 1.25) driven by roll in [0, 1).
func jitterDuration(d time.Duration, roll float64) time.Duration {
	factor := 0.75 + roll*0.5
	return time.Duration(float64(d) * factor)
}
