package schedule

import (
	"context"
	"sync"
	"time"

	"komoditas/internal/logger"
)

// Dispatcher starts a run of one source. It should not block for the
// duration of the run.
type Dispatcher interface {
	Dispatch(ctx context.Context, sourceID string) error
}

type DispatchFunc func(ctx context.Context, sourceID string) error

func (f DispatchFunc) Dispatch(ctx context.Context, sourceID string) error { return f(ctx, sourceID) }

// Scheduler polls the table on a fixed tick and hands due sources to the dispatcher.
type Scheduler struct {
	table      *Table
	dispatcher Dispatcher
	tick       time.Duration
	now        func() time.Time
	log        *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(table *Table, d Dispatcher, tick time.Duration, now func() time.Time) *Scheduler {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{table: table, dispatcher: d, tick: tick, now: now, log: logger.New("Scheduler")}
}

// Tick dispatches every due source once and returns how many were handed off.
func (s *Scheduler) Tick(ctx context.Context) int {
	n := 0
	for _, id := range s.table.Due(s.now()) {
		if err := s.dispatcher.Dispatch(ctx, id); err != nil {
			s.log.LogErrorf("Failed to dispatch %s: %v", id, err)
			continue
		}
		s.log.Info().Str("source", id).Msg("Scheduled run dispatched")
		n++
	}
	return n
}

// Start runs the loop until Stop is called or ctx ends. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	for _, sc := range s.table.List() {
		if sc.Enabled && sc.NextRun != nil {
			s.log.LogInfof("Scheduled %s (%s), next run %s", sc.SourceID, sc.CronExpression, sc.NextRun.Format(time.RFC3339))
		}
	}

	go func(done chan struct{}) {
		defer close(done)
		t := time.NewTicker(s.tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Tick(ctx)
			}
		}
	}(s.done)
}

// Stop ends the loop and waits for the current tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.LogInfo("Scheduler stopped")
}
