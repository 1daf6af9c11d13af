// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package surrogate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// VarnishConfig holds Varnish purge backend configuration.
type VarnishConfig struct {
	// URL is the Varnish HTTP purge endpoint.
	URL string

	// Timeout bounds one purge request. Default: 5s.
	Timeout time.Duration

	// PurgesPerSecond throttles purge traffic toward Varnish.
	// 0 disables throttling.
	PurgesPerSecond float64
}

// VarnishBackend purges a Varnish-style HTTP cache by sending a PURGE
// request whose Invalidation-Match header is a regex over the cached
// object's Surrogate-Key header. A circuit breaker stops hammering a dead
// Varnish, and an optional rate limiter paces purge bursts.
type VarnishBackend struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter
}

// NewVarnishBackend creates a Varnish purge backend.
func NewVarnishBackend(cfg VarnishConfig) *VarnishBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.PurgesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PurgesPerSecond), 1)
	}

	return &VarnishBackend{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		breaker: newPurgeBreaker("varnish"),
		limiter: limiter,
	}
}

// Name implements Backend.
func (b *VarnishBackend) Name() string { return "varnish" }

// Invalidate implements Backend.
func (b *VarnishBackend) Invalidate(ctx context.Context, tag Tag) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("varnish purge throttled: %w", err)
		}
	}

	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.purge(ctx, tag)
	})
	return err
}

func (b *VarnishBackend) purge(ctx context.Context, tag Tag) error {
	req, err := http.NewRequestWithContext(ctx, "PURGE", b.url, nil)
	if err != nil {
		return fmt.Errorf("build varnish purge request: %w", err)
	}
	req.Header.Set("Invalidation-Match", keyMatchExpression(tag))

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("varnish purge: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("varnish purge: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// keyMatchExpression builds the word-boundary regex matching any of the
// tag's keys inside a Surrogate-Key header value.
func keyMatchExpression(tag Tag) string {
	keys := tag.Keys()
	quoted := make([]string, len(keys))
	for i, key := range keys {
		quoted[i] = regexp.QuoteMeta(key)
	}
	return `\b(` + strings.Join(quoted, "|") + `)\b`
}

// newPurgeBreaker builds the circuit breaker shared by purge backends:
// open after 5 consecutive failures, retry after 30 seconds.
func newPurgeBreaker(name string) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
