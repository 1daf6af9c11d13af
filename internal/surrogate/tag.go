// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package surrogate implements surrogate-key tagging and edge-cache
// invalidation. Responses carrying a named map are tagged with a short
// content-derived key; on template mutation every registered edge-cache
// backend is purged for that key, concurrently and best-effort.
package surrogate

import (
	"net/http"
	"strings"

	"github.com/tomtom215/tilegate/internal/template"
)

// Header is the response header carrying surrogate keys, as understood by
// Varnish-style caches and Fastly.
const Header = "Surrogate-Key"

// Tag labels a set of edge-cache entries for group invalidation.
type Tag interface {
	// Keys returns the surrogate key(s) identifying the tagged entries.
	Keys() []string
}

// NamedMapTag tags every cached response derived from one named map,
// independent of instantiation parameters. The key is namespaced "n:" and
// derived from the owner and template name, so it survives template content
// updates (the same map keeps the same key across versions).
type NamedMapTag struct {
	Owner string
	Name  string
}

// Keys implements Tag.
func (t NamedMapTag) Keys() []string {
	return []string{"n:" + template.ShortHash(t.Owner+":"+t.Name)}
}

// CustomTag is a literal list of surrogate keys.
type CustomTag []string

// Keys implements Tag.
func (t CustomTag) Keys() []string { return t }

// AddHeader appends the tag's keys to the response's Surrogate-Key header,
// space-joined and merged with any previously-set value.
func AddHeader(h http.Header, tag Tag) {
	joined := strings.Join(tag.Keys(), " ")
	if existing := h.Get(Header); existing != "" {
		joined = existing + " " + joined
	}
	h.Set(Header, joined)
}
