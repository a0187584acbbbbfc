package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"komoditas/internal/logger"
)

var (
	ErrNotFound      = errors.New("job not found")
	ErrAlreadyClosed = errors.New("job already finished")
)

// maxRetained bounds the in-memory history; the oldest finished jobs go first.
const maxRetained = 1000

// Mirror is where job snapshots are copied for readers in other processes.
type Mirror interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Ledger records every run and guarantees at most one unfinished job per source.
type Ledger struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	order  []string
	active map[string]string
	mirror Mirror
	now    func() time.Time
	log    *logger.Logger
}

// NewLedger creates an empty ledger. mirror may be nil.
func NewLedger(mirror Mirror, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		jobs:   map[string]*Job{},
		active: map[string]string{},
		mirror: mirror,
		now:    now,
		log:    logger.New("JobLedger"),
	}
}

func NewID(sourceID string) string { return sourceID + "_" + uuid.NewString() }

// Begin opens a pending job for sourceID. When the source already has an
// unfinished job, that job is returned with created=false.
func (l *Ledger) Begin(ctx context.Context, sourceID string) (j Job, created bool) {
	l.mu.Lock()
	if id, ok := l.active[sourceID]; ok {
		j = l.jobs[id].clone()
		l.mu.Unlock()
		return j, false
	}
	nj := &Job{ID: NewID(sourceID), SourceID: sourceID, Status: StatusPending}
	l.jobs[nj.ID] = nj
	l.order = append(l.order, nj.ID)
	l.active[sourceID] = nj.ID
	l.prune()
	j = nj.clone()
	l.mu.Unlock()

	l.store(ctx, j)
	return j, true
}

// Start moves a pending job to running and stamps its start time.
func (l *Ledger) Start(ctx context.Context, id string) (Job, error) {
	return l.update(ctx, id, func(j *Job) {
		t := l.now()
		j.Status = StatusRunning
		j.StartTime = &t
	})
}

func (l *Ledger) Complete(ctx context.Context, id string, records int) (Job, error) {
	return l.update(ctx, id, func(j *Job) {
		l.finish(j, StatusCompleted)
		j.RecordsProcessed = records
	})
}

func (l *Ledger) Fail(ctx context.Context, id string, cause error) (Job, error) {
	return l.update(ctx, id, func(j *Job) {
		l.finish(j, StatusFailed)
		if cause != nil {
			j.Error = cause.Error()
		}
	})
}

func (l *Ledger) finish(j *Job, s Status) {
	t := l.now()
	if j.StartTime == nil {
		j.StartTime = &t
	}
	j.Status = s
	j.EndTime = &t
	j.DurationMs = t.Sub(*j.StartTime).Milliseconds()
	if l.active[j.SourceID] == j.ID {
		delete(l.active, j.SourceID)
	}
}

func (l *Ledger) update(ctx context.Context, id string, fn func(*Job)) (Job, error) {
	l.mu.Lock()
	j, ok := l.jobs[id]
	if !ok {
		l.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status.Terminal() {
		out := j.clone()
		l.mu.Unlock()
		return out, fmt.Errorf("%w: %s", ErrAlreadyClosed, id)
	}
	fn(j)
	out := j.clone()
	l.mu.Unlock()

	l.store(ctx, out)
	return out, nil
}

// Get returns a job from memory or, failing that, from the mirror.
func (l *Ledger) Get(ctx context.Context, id string) (Job, error) {
	l.mu.Lock()
	j, ok := l.jobs[id]
	if ok {
		out := j.clone()
		l.mu.Unlock()
		return out, nil
	}
	l.mu.Unlock()

	if l.mirror != nil {
		if b, err := l.mirror.Get(ctx, key(id)); err == nil {
			var out Job
			if err := json.Unmarshal(b, &out); err == nil {
				return out, nil
			}
		}
	}
	return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Active returns the unfinished job of sourceID, if any.
func (l *Ledger) Active(sourceID string) (Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.active[sourceID]
	if !ok {
		return Job{}, false
	}
	return l.jobs[id].clone(), true
}

// List returns every retained job in creation order.
func (l *Ledger) List() []Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Job, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.jobs[id].clone())
	}
	return out
}

// prune drops the oldest finished jobs beyond maxRetained. Caller holds mu.
func (l *Ledger) prune() {
	if len(l.order) <= maxRetained {
		return
	}
	kept := l.order[:0]
	excess := len(l.order) - maxRetained
	for _, id := range l.order {
		if excess > 0 && l.jobs[id].Status.Terminal() {
			delete(l.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	l.order = kept
}

func (l *Ledger) store(ctx context.Context, j Job) {
	if l.mirror == nil {
		return
	}
	b, err := json.Marshal(j)
	if err != nil {
		return
	}
	if err := l.mirror.Set(ctx, key(j.ID), b, ttl(j.Status)); err != nil {
		l.log.LogWarnf("Failed to mirror job %s: %v", j.ID, err)
	}
}

func key(id string) string { return "job:" + id }

func ttl(s Status) time.Duration {
	if s.Terminal() {
		return time.Hour
	}
	return 10 * time.Minute
}
