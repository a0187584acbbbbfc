package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"komoditas/internal/platform/tasks"
)

// HandleRunTask consumes scraper:run tasks. Malformed payloads and unknown
// sources are not retried; a failed run is recorded on its job and acknowledged.
func (m *Manager) HandleRunTask(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseRunTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	m.log.LogInfof("processing run task for %s", p.SourceID)

	j, err := m.RunScraper(ctx, p.SourceID)
	if err != nil {
		if errors.Is(err, ErrUnknownSource) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	m.log.LogInfof("run task for %s finished as %s (job %s)", p.SourceID, j.Status, j.ID)
	return nil
}
