// Package schedule keeps the cron table of the fetchers and the loop that fires them.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrUnknownSource = errors.New("no schedule for source")
	ErrInvalidCron   = errors.New("invalid cron expression")
)

const DefaultTimezone = "Asia/Jakarta"

type Schedule struct {
	SourceID       string     `json:"sourceId"`
	CronExpression string     `json:"cronExpression"`
	Enabled        bool       `json:"enabled"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	NextRun        *time.Time `json:"nextRun,omitempty"`
}

// Defaults are the built-in schedules of the three sources.
func Defaults() []Schedule {
	return []Schedule{
		{SourceID: "panel-harga", CronExpression: "0 */6 * * *", Enabled: true},
		{SourceID: "bmkg-weather", CronExpression: "0 */3 * * *", Enabled: true},
		{SourceID: "bps-statistics", CronExpression: "0 0 */2 * *", Enabled: true},
	}
}

// Next returns the first activation of expr strictly after from, evaluated
// in loc. The result keeps loc.
func Next(expr string, from time.Time, loc *time.Location) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	next := sched.Next(from.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w %q: never fires", ErrInvalidCron, expr)
	}
	return next, nil
}

func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}
	return nil
}

// Table holds one schedule per source.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Schedule
	loc     *time.Location
}

func NewTable(loc *time.Location) *Table {
	if loc == nil {
		loc = time.UTC
	}
	return &Table{entries: map[string]*Schedule{}, loc: loc}
}

func (t *Table) Location() *time.Location { return t.loc }

// Put adds or replaces the schedule of s.SourceID and computes its next run from now.
func (t *Table) Put(s Schedule, now time.Time) error {
	if s.SourceID == "" {
		return errors.New("schedule: source id is required")
	}
	if err := Validate(s.CronExpression); err != nil {
		return err
	}
	s.NextRun = nil
	if s.Enabled {
		next, err := Next(s.CronExpression, now, t.loc)
		if err != nil {
			return err
		}
		s.NextRun = &next
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.entries[s.SourceID]; ok && s.LastRun == nil {
		s.LastRun = prev.LastRun
	}
	cp := s
	t.entries[s.SourceID] = &cp
	return nil
}

// Update changes expression and enabled flag of an existing schedule. An
// empty expr keeps the current one.
func (t *Table) Update(sourceID, expr string, enabled bool, now time.Time) (Schedule, error) {
	t.mu.Lock()
	cur, ok := t.entries[sourceID]
	if !ok {
		t.mu.Unlock()
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	s := *cur
	t.mu.Unlock()

	if expr != "" {
		s.CronExpression = expr
	}
	s.Enabled = enabled
	if err := t.Put(s, now); err != nil {
		return Schedule{}, err
	}
	out, _ := t.Get(sourceID)
	return out, nil
}

func (t *Table) Get(sourceID string) (Schedule, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[sourceID]
	if !ok {
		return Schedule{}, false
	}
	return copySchedule(s), true
}

// List returns the schedules sorted by source id.
func (t *Table) List() []Schedule {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Schedule, 0, len(t.entries))
	for _, s := range t.entries {
		out = append(out, copySchedule(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// MarkRun records a finished run at `at` and moves NextRun past it.
func (t *Table) MarkRun(sourceID string, at time.Time) (Schedule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[sourceID]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	last := at
	s.LastRun = &last
	if s.Enabled {
		next, err := Next(s.CronExpression, at, t.loc)
		if err != nil {
			return copySchedule(s), err
		}
		s.NextRun = &next
	}
	return copySchedule(s), nil
}

// Due returns the enabled sources whose NextRun is not after now and
// advances their NextRun so a slow run is not fired twice.
func (t *Table) Due(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []string
	for id, s := range t.entries {
		if !s.Enabled || s.NextRun == nil || s.NextRun.After(now) {
			continue
		}
		due = append(due, id)
		if next, err := Next(s.CronExpression, now, t.loc); err == nil {
			s.NextRun = &next
		}
	}
	sort.Strings(due)
	return due
}

func copySchedule(s *Schedule) Schedule {
	out := *s
	if s.LastRun != nil {
		t := *s.LastRun
		out.LastRun = &t
	}
	if s.NextRun != nil {
		t := *s.NextRun
		out.NextRun = &t
	}
	return out
}
