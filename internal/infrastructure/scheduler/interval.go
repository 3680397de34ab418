package scheduler

import (
	"context"
	"sync"
	"time"

	"DataPaperIndex/internal/ports"
)

const defaultInterval = 24 * time.Hour

// IntervalScheduler runs a job immediately and then on every tick.
type IntervalScheduler struct {
	interval time.Duration
	location *time.Location

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; tick times are reported in loc.
func NewIntervalScheduler(interval time.Duration, loc *time.Location) *IntervalScheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if loc == nil {
		loc = time.UTC
	}
	return &IntervalScheduler{interval: interval, location: loc}
}

// Start launches the ticking goroutine. Calling Start twice is a no-op.
// Jobs never overlap: a tick that arrives during a run is dropped by the ticker.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		job(time.Now().In(s.location))
		for {
			select {
			case t := <-ticker.C:
				job(t.In(s.location))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker and waits for a running job to return or ctx to expire.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
