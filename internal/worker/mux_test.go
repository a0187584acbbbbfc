package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
)

func TestMuxRoutesByType(t *testing.T) {
	m := NewMux()
	var got []string
	m.HandleFunc("scraper:run", func(_ context.Context, task *asynq.Task) error {
		got = append(got, string(task.Payload()))
		return nil
	})
	m.HandleFunc("scraper:fail", func(context.Context, *asynq.Task) error {
		return errors.New("boom")
	})

	ctx := context.Background()
	if err := m.Mux().ProcessTask(ctx, asynq.NewTask("scraper:run", []byte("bmkg-weather"))); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "bmkg-weather" {
		t.Errorf("unexpected calls %v", got)
	}
	if err := m.Mux().ProcessTask(ctx, asynq.NewTask("scraper:fail", nil)); err == nil || err.Error() != "boom" {
		t.Errorf("expected handler error to pass through, got %v", err)
	}
	if err := m.Mux().ProcessTask(ctx, asynq.NewTask("unknown", nil)); err == nil {
		t.Error("expected error for unrouted task type")
	}
}
