// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package kv provides the hash-shaped key-value store abstraction backing the
// template store. The persisted layout is one hash per namespace, a field per
// entry; the template store uses namespace "map_tpl|<owner>" with the
// template name as field.
package kv

import (
	"context"
	"errors"
)

// ErrFieldNotFound is returned by HashGet when the field does not exist in
// the namespace.
var ErrFieldNotFound = errors.New("field not found")

// HashStore is a minimal hash-per-namespace key-value contract.
//
// HashSetNX is the only mutual-exclusion primitive offered: it must be atomic
// with respect to concurrent callers on the same (ns, field) pair. Callers
// build all create-if-absent semantics on top of it; there is no external
// locking layer.
type HashStore interface {
	// HashGet returns the value of field in ns, or ErrFieldNotFound.
	HashGet(ctx context.Context, ns, field string) ([]byte, error)

	// HashSet stores field=value in ns, overwriting any existing value.
	HashSet(ctx context.Context, ns, field string, value []byte) error

	// HashSetNX stores field=value only if the field is absent.
	// Returns true if the value was stored, false if the field existed.
	HashSetNX(ctx context.Context, ns, field string, value []byte) (bool, error)

	// HashDelete removes field from ns. Returns true if the field existed.
	HashDelete(ctx context.Context, ns, field string) (bool, error)

	// HashKeys lists all fields in ns, in lexicographic order.
	HashKeys(ctx context.Context, ns string) ([]string, error)

	// HashLen returns the number of fields in ns.
	HashLen(ctx context.Context, ns string) (int, error)

	// Close releases underlying resources.
	Close() error
}
