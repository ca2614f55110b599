package ratelimit

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kjstillabower/travel-planner/internal/observability"
)

// DefaultWindow is the sliding window length used when none is configured.
const DefaultWindow = 60 * time.Second

// Limiter bounds outbound calls to at most N admissions in any trailing window.
// It never rejects a call; it only delays it. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time // admission start times, kept sorted ascending

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Limiter admitting callsPerWindow calls per window.
// callsPerWindow <= 0 disables limiting; window <= 0 uses DefaultWindow.
func New(callsPerWindow int, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:  callsPerWindow,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Admit records a call arriving at now and returns how long the caller must wait
// before proceeding. The call is recorded at now+delay so that subsequent
// callers see the slot as taken from the moment it is actually used.
func (l *Limiter) Admit(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.admitLocked(now)
}

func (l *Limiter) admitLocked(now time.Time) time.Duration {
	if l.limit <= 0 {
		return 0
	}
	l.pruneLocked(now)

	var delay time.Duration
	if n := len(l.calls); n >= l.limit {
		// The N-th latest start must leave the window before this one enters.
		// Every start after the pivot is then one of at most N-1 others in any
		// window around the new start, including reservations still in the future.
		pivot := l.calls[n-l.limit]
		delay = pivot.Add(l.window).Sub(now)
		if delay < 0 {
			delay = 0
		}
	}
	l.insertLocked(now.Add(delay))
	return delay
}

// insertLocked adds start keeping calls sorted. A released reservation can leave
// later reservations queued, so the new start is not always the latest.
func (l *Limiter) insertLocked(start time.Time) {
	i := sort.Search(len(l.calls), func(i int) bool { return l.calls[i].After(start) })
	l.calls = slices.Insert(l.calls, i, start)
}

// pruneLocked drops admissions older than the window. Must be called with mu held.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(l.calls) && !l.calls[i].After(cutoff); i++ {
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// Wait blocks, if necessary, so that no more than N calls start in any trailing window.
// Returns ctx.Err() if ctx is done before the delay elapses; the reserved slot is released.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	now := l.now()
	delay := l.admitLocked(now)
	slot := now.Add(delay)
	l.mu.Unlock()

	if delay <= 0 {
		observability.RateLimiterAdmissionsTotal.WithLabelValues("immediate").Inc()
		return nil
	}
	observability.RateLimiterAdmissionsTotal.WithLabelValues("delayed").Inc()
	observability.RateLimiterWaitSeconds.Observe(delay.Seconds())
	if err := l.sleep(ctx, delay); err != nil {
		l.release(slot)
		return err
	}
	return nil
}

// release removes a reserved admission that was never used.
func (l *Limiter) release(slot time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := sort.Search(len(l.calls), func(i int) bool { return !l.calls[i].Before(slot) })
	if i < len(l.calls) && l.calls[i].Equal(slot) {
		l.calls = slices.Delete(l.calls, i, i+1)
	}
}

// InWindow returns the number of admissions in the trailing window ending now,
// including reservations still waiting to start.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return len(l.calls)
}

// Limit returns the configured number of calls per window.
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
