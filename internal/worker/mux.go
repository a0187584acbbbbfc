package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"komoditas/internal/logger"
)

// Mux routes queued tasks to handlers and logs how each one ended.
type Mux struct {
	mux *asynq.ServeMux
	log *logger.Logger
}

func NewMux() *Mux {
	m := &Mux{mux: asynq.NewServeMux(), log: logger.New("Worker")}
	m.mux.Use(m.logTasks)
	return m
}

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

func (m *Mux) logTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		started := time.Now()
		err := next.ProcessTask(ctx, t)
		if err != nil {
			m.log.Error().Err(err).Str("type", t.Type()).Dur("took", time.Since(started)).Msg("Task failed")
			return err
		}
		m.log.LogDebugf("Task %s done in %v", t.Type(), time.Since(started))
		return nil
	})
}
