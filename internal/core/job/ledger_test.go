package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"komoditas/internal/core/scraper/scrapertest"
)

func fixedNow(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	now := start
	return func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}, func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	now, advance := fixedNow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	l := NewLedger(nil, now)

	j, created := l.Begin(ctx, "bmkg-weather")
	if !created || j.Status != StatusPending {
		t.Fatalf("expected new pending job, got %+v created=%v", j, created)
	}
	if !strings.HasPrefix(j.ID, "bmkg-weather_") {
		t.Errorf("unexpected id %s", j.ID)
	}

	if _, err := l.Start(ctx, j.ID); err != nil {
		t.Fatal(err)
	}
	advance(1500 * time.Millisecond)
	done, err := l.Complete(ctx, j.ID, 6)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || done.RecordsProcessed != 6 || done.DurationMs != 1500 {
		t.Errorf("unexpected completed job %+v", done)
	}
	if done.EndTime == nil || done.StartTime == nil {
		t.Fatal("expected start and end times")
	}

	if _, err := l.Fail(ctx, j.ID, errors.New("late")); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
	if _, ok := l.Active("bmkg-weather"); ok {
		t.Error("finished job still active")
	}
}

func TestBeginReturnsUnfinishedJob(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	ids := map[string]bool{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, ok := l.Begin(ctx, "panel-harga")
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[j.ID] = true
		}()
	}
	wg.Wait()

	if created != 1 || len(ids) != 1 {
		t.Fatalf("expected exactly one job, created=%d ids=%d", created, len(ids))
	}
	if got := len(l.List()); got != 1 {
		t.Errorf("expected one ledger entry, got %d", got)
	}

	for id := range ids {
		if _, err := l.Fail(ctx, id, errors.New("upstream down")); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := l.Begin(ctx, "panel-harga"); !ok {
		t.Error("expected a new job once the previous one failed")
	}
}

func TestMirror(t *testing.T) {
	ctx := context.Background()
	cache := scrapertest.NewMemoryCache()
	l := NewLedger(cache, nil)

	j, _ := l.Begin(ctx, "bps-statistics")
	if ok, _ := cache.Exists(ctx, "job:"+j.ID); !ok {
		t.Fatal("expected pending job mirrored")
	}

	other := NewLedger(cache, nil)
	got, err := other.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("expected job readable through the mirror: %v", err)
	}
	if got.SourceID != "bps-statistics" || got.Status != StatusPending {
		t.Errorf("unexpected mirrored job %+v", got)
	}

	if _, err := other.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMirrorFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	cache := scrapertest.NewMemoryCache()
	cache.SetFailing(true)
	l := NewLedger(cache, nil)

	j, created := l.Begin(ctx, "bmkg-weather")
	if !created {
		t.Fatal("expected job created")
	}
	if _, err := l.Fail(ctx, j.ID, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	got, err := l.Get(ctx, j.ID)
	if err != nil || got.Error != "boom" {
		t.Errorf("unexpected job %+v err=%v", got, err)
	}
}

func TestPruneKeepsUnfinished(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil, nil)
	first, _ := l.Begin(ctx, "long-running")
	for i := 0; i < maxRetained+10; i++ {
		j, _ := l.Begin(ctx, "src")
		if _, err := l.Complete(ctx, j.ID, i); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(l.List()); n > maxRetained+1 {
		t.Errorf("expected history bounded, got %d", n)
	}
	if _, err := l.Get(ctx, first.ID); err != nil {
		t.Errorf("unfinished job pruned: %v", err)
	}
}
