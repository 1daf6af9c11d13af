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
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// FastlyConfig holds Fastly purge backend configuration.
type FastlyConfig struct {
	// APIKey is the Fastly API token.
	APIKey string

	// ServiceID is the Fastly service to purge.
	ServiceID string

	// BaseURL overrides the Fastly API endpoint. Default:
	// https://api.fastly.com. Tests point this at a local server.
	BaseURL string

	// Timeout bounds one purge request. Default: 5s.
	Timeout time.Duration
}

// FastlyBackend purges the Fastly CDN through its surrogate-key purge API:
// one POST /service/<id>/purge/<key> per key.
type FastlyBackend struct {
	cfg     FastlyConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// NewFastlyBackend creates a Fastly purge backend.
func NewFastlyBackend(cfg FastlyConfig) *FastlyBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.fastly.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FastlyBackend{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: newPurgeBreaker("fastly"),
	}
}

// Name implements Backend.
func (b *FastlyBackend) Name() string { return "fastly" }

// Invalidate implements Backend.
func (b *FastlyBackend) Invalidate(ctx context.Context, tag Tag) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		for _, key := range tag.Keys() {
			if err := b.purgeKey(ctx, key); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (b *FastlyBackend) purgeKey(ctx context.Context, key string) error {
	endpoint := fmt.Sprintf("%s/service/%s/purge/%s",
		b.cfg.BaseURL, url.PathEscape(b.cfg.ServiceID), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build fastly purge request: %w", err)
	}
	req.Header.Set("Fastly-Key", b.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("fastly purge %s: %w", key, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fastly purge %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}
