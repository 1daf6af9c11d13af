// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package surrogate

import "context"

// Backend is one edge-cache that can purge entries by surrogate key. Purges
// are idempotent, so backends need no internal locking and callers may
// safely retry.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Invalidate purges every entry tagged with the given key(s).
	Invalidate(ctx context.Context, tag Tag) error
}
