package providers

import (
	"context"
	"sync"
	"time"
)

// throttle spaces consecutive requests by a fixed delay. It is safe for
// concurrent use.
type throttle struct {
	mu    sync.Mutex
	delay time.Duration
	next  time.Time
}

func (t *throttle) wait(ctx context.Context) error {
	if t.delay <= 0 {
		return nil
	}

	t.mu.Lock()
	now := time.Now()
	start := t.next
	if start.Before(now) {
		start = now
	}
	t.next = start.Add(t.delay)
	t.mu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
