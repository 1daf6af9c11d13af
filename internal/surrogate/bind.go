// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package surrogate

import "github.com/tomtom215/tilegate/internal/template"

// BindStore subscribes the invalidator to a template store's update and
// delete events. Edge purges run asynchronously; the template mutation's own
// response never waits on them, and purge failures never roll it back.
func BindStore(inv *Invalidator, store *template.Store) {
	purge := func(owner, name string, _ *template.Template) {
		inv.InvalidateAsync(NamedMapTag{Owner: owner, Name: name})
	}
	store.Subscribe(template.EventUpdate, purge)
	store.Subscribe(template.EventDelete, purge)
}
