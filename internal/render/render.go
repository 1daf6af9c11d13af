// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package render declares the collaborator interfaces the gateway delegates
// to: the tile rendering engine and the per-user database connection
// resolver. Both are external systems; this package only fixes their
// contracts and the shared error-hygiene rules at the boundary.
package render

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/tilegate/internal/template"
)

// ErrRenderTimeout marks a rendering engine timeout. Engines report
// timeouts as opaque message text; IsTimeout matches both this sentinel and
// the conventional message pattern.
var ErrRenderTimeout = errors.New("render timed out")

// Params selects what to render from a map configuration.
type Params struct {
	Z           int
	X           int
	Y           int
	Layer       string
	Format      string
	ScaleFactor float64
}

// Tile is a rendered result: opaque bytes plus the headers the engine wants
// forwarded (content type, cache control).
type Tile struct {
	Body    []byte
	Headers http.Header
}

// Backend renders tiles and images from a finished map configuration.
// Errors propagate as opaque failures; callers must not parse them beyond
// IsTimeout.
type Backend interface {
	Render(ctx context.Context, cfg *template.MapConfig, p Params) (*Tile, error)
}

// IsTimeout reports whether err represents a rendering timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRenderTimeout) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timed out")
}
