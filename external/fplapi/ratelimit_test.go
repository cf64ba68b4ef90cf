package fplapi

import (
	"testing"
	"time"
)

func TestRequestPacer_SlidingWindow(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)
	pacer := newRequestPacer(3, 0)
	pacer.now = func() time.Time { return current }
	pacer.jitter = func() float64 { return 0.5 }

	for i := 0; i < 3; i++ {
		if delay := pacer.reserve(); delay != 0 {
			t.Fatalf("request %d should pass immediately, delay=%s", i+1, delay)
		}
		current = current.Add(time.Second)
	}

	delay := pacer.reserve()
	if delay <= 0 {
		t.Fatalf("fourth request inside the window must be delayed")
	}
	// Oldest stamp was 3s ago; the window frees up 57s from now.
	if want := 57 * time.Second; delay != want {
		t.Fatalf("unexpected delay: got=%s want=%s", delay, want)
	}

	current = current.Add(delay)
	if delay := pacer.reserve(); delay != 0 {
		t.Fatalf("request after window expiry should pass, delay=%s", delay)
	}
}

func TestRequestPacer_MinSpacingJitterBounds(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)
	for name, roll := range map[string]float64{"low": 0.0, "mid": 0.5, "high": 0.999} {
		pacer := newRequestPacer(100, 2*time.Second)
		pacer.now = func() time.Time { return current }
		pacer.jitter = func() float64 { return roll }

		if delay := pacer.reserve(); delay != 0 {
			t.Fatalf("%s: first request should pass, delay=%s", name, delay)
		}
		delay := pacer.reserve()
		if delay < 1500*time.Millisecond || delay > 2500*time.Millisecond {
			t.Fatalf("%s: spacing delay outside ±25%% band: %s", name, delay)
		}
	}
}

func TestJitterDuration(t *testing.T) {
	t.Parallel()

	base := 8 * time.Second
	if got := jitterDuration(base, 0); got != 6*time.Second {
		t.Fatalf("roll=0 should give 75%%: %s", got)
	}
	if got := jitterDuration(base, 0.5); got != 8*time.Second {
		t.Fatalf("roll=0.5 should give 100%%: %s", got)
	}
	if got := jitterDuration(base, 1); got != 10*time.Second {
		t.Fatalf("roll=1 should give 125%%: %s", got)
	}
}
