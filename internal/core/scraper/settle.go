package scraper

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"komoditas/internal/logger"
)

// SubFetch is one independent part of a run, e.g. a single upstream dataset.
type SubFetch[T any] struct {
	Name string
	Fn   func(ctx context.Context) ([]T, error)
}

// Settle runs every sub-fetch concurrently and waits for all of them. Failed
// parts are logged and omitted; an error is returned only when every part failed.
// Results keep the order of subs.
func Settle[T any](ctx context.Context, log *logger.Logger, subs ...SubFetch[T]) ([]T, error) {
	parts := make([][]T, len(subs))
	errs := make([]error, len(subs))

	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					errs[i] = fmt.Errorf("panic: %v", p)
				}
			}()
			parts[i], errs[i] = sub.Fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var out []T
	var failures []error
	for i, sub := range subs {
		if errs[i] != nil {
			log.With(sub.Name).LogWarnf("Sub-fetch failed: %v", errs[i])
			failures = append(failures, fmt.Errorf("%s: %w", sub.Name, errs[i]))
			continue
		}
		log.With(sub.Name).LogDebugf("Sub-fetch returned %d records", len(parts[i]))
		out = append(out, parts[i]...)
	}

	if len(subs) > 0 && len(failures) == len(subs) {
		return nil, fmt.Errorf("all %d sub-fetches failed: %w", len(subs), errors.Join(failures...))
	}
	return out, nil
}
