// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package surrogate

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/metrics"
)

// Result reports one backend's purge outcome.
type Result struct {
	Backend  string
	Err      error
	Duration time.Duration
}

// Invalidator fans a purge out to every registered edge-cache backend.
type Invalidator struct {
	backends []Backend
}

// NewInvalidator creates an invalidator over the given backends.
func NewInvalidator(backends ...Backend) *Invalidator {
	return &Invalidator{backends: backends}
}

// Invalidate purges the tag from all backends concurrently and waits for all
// of them. Every backend is attempted even when another one fails; the
// returned error is the first failure in backend registration order, and the
// per-backend results are always returned in full.
func (inv *Invalidator) Invalidate(ctx context.Context, tag Tag) ([]Result, error) {
	results := make([]Result, len(inv.backends))

	var wg sync.WaitGroup
	for i, backend := range inv.backends {
		wg.Add(1)
		go func(i int, backend Backend) {
			defer wg.Done()
			start := time.Now()
			err := backend.Invalidate(ctx, tag)
			elapsed := time.Since(start)

			results[i] = Result{Backend: backend.Name(), Err: err, Duration: elapsed}

			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metrics.SurrogatePurges.WithLabelValues(backend.Name(), outcome).Inc()
			metrics.SurrogatePurgeDuration.WithLabelValues(backend.Name()).Observe(elapsed.Seconds())
		}(i, backend)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			return results, res.Err
		}
	}
	return results, nil
}

// InvalidateAsync runs Invalidate in the background. Purge failures are
// logged with timing context and dropped; they never reach the caller whose
// template mutation triggered the purge.
func (inv *Invalidator) InvalidateAsync(tag Tag) {
	if len(inv.backends) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		results, err := inv.Invalidate(ctx, tag)
		if err == nil {
			return
		}
		for _, res := range results {
			if res.Err == nil {
				continue
			}
			logging.Error().
				Str("backend", res.Backend).
				Strs("keys", tag.Keys()).
				Dur("elapsed", res.Duration).
				Err(res.Err).
				Msg("edge cache purge failed")
		}
	}()
}
