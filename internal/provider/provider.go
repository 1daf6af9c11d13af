// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package provider implements the map-config provider cache: lazily-computed
// map configurations keyed by (owner, template, parameterization), bounded
// by an LRU of outer owner+template buckets.
package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/tilegate/internal/template"
)

// Request carries one instantiation's cache-relevant parameters.
type Request struct {
	// DBName identifies the owner's database. Part of the cache key so that
	// owners migrated across databases never share cached providers.
	DBName string

	// AuthTokens are the caller-presented template auth tokens (nil when
	// none). Callers may present several; any single match authorizes.
	AuthTokens []string

	// Params are the placeholder values for instantiation.
	Params map[string]interface{}

	// Styles are optional per-layer cartocss overrides, keyed by decimal
	// layer index.
	Styles map[string]string

	// Format is the requested output format ("" when not tile-scoped).
	Format string

	// Layer is the requested layer selector ("" for all).
	Layer string

	// ScaleFactor is the retina scale factor; 0 is normalized to 1.
	ScaleFactor float64
}

// MapConfigProvider resolves one distinct parameterization of a named map
// into a concrete map configuration. Construction is cheap: it only captures
// the request. The heavy work (template lookup, authorization,
// instantiation) happens on the first MapConfig call and is memoized.
//
// Ordering within a resolution is fixed: the template is looked up, then
// authorization must succeed, then instantiation runs. A NotFound, an
// authorization error or an instantiation error is memoized exactly like a
// success; the provider is a pure function of its key and the template
// version it first observed, and buckets are dropped wholesale on template
// mutation.
type MapConfigProvider struct {
	store      *template.Store
	owner      string
	templateID string
	req        Request

	once sync.Once
	cfg  *template.MapConfig
	err  error
}

// NewMapConfigProvider captures a resolution request without performing it.
func NewMapConfigProvider(store *template.Store, owner, templateID string, req Request) *MapConfigProvider {
	return &MapConfigProvider{
		store:      store,
		owner:      owner,
		templateID: templateID,
		req:        req,
	}
}

// Owner returns the owning principal.
func (p *MapConfigProvider) Owner() string { return p.owner }

// TemplateID returns the template name this provider resolves.
func (p *MapConfigProvider) TemplateID() string { return p.templateID }

// Key returns the provider's full cache key.
func (p *MapConfigProvider) Key() (string, error) {
	inner, err := innerKey(p.req)
	if err != nil {
		return "", err
	}
	return outerKey(p.owner, p.templateID) + ":" + inner, nil
}

// MapConfig resolves and memoizes the map configuration.
func (p *MapConfigProvider) MapConfig(ctx context.Context) (*template.MapConfig, error) {
	p.once.Do(func() {
		p.cfg, p.err = p.resolve(ctx)
	})
	return p.cfg, p.err
}

func (p *MapConfigProvider) resolve(ctx context.Context) (*template.MapConfig, error) {
	tpl, err := p.store.Get(ctx, p.owner, p.templateID)
	if err != nil {
		return nil, err
	}

	if err := template.Authorize(tpl, p.req.AuthTokens); err != nil {
		return nil, err
	}

	return template.InstantiateWithStyles(tpl, p.req.Params, p.req.Styles)
}

// outerKey groups all parameterizations of one named map.
func outerKey(owner, templateID string) string {
	return owner + ":" + templateID
}

// innerKey derives the deterministic variant key for a request. Absent
// fields default to the empty string; a zero scale factor defaults to 1.
// Two requests producing the same key are cache-equivalent.
func innerKey(req Request) (string, error) {
	configHash, err := template.ShortFingerprint(req.Params)
	if err != nil {
		return "", fmt.Errorf("hash instantiation params: %w", err)
	}
	if len(req.Styles) > 0 {
		stylesHash, err := template.ShortFingerprint(req.Styles)
		if err != nil {
			return "", fmt.Errorf("hash style overrides: %w", err)
		}
		configHash += "-" + stylesHash
	}

	scale := req.ScaleFactor
	if scale == 0 {
		scale = 1
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%g",
		req.DBName, strings.Join(req.AuthTokens, ","), configHash, req.Format, req.Layer, scale), nil
}
