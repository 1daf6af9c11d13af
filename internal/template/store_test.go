// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"context"
	"sync"
	"testing"

	"github.com/tomtom215/tilegate/internal/kv"
)

// eventRecorder captures emitted store events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	event Event
	owner string
	name  string
	tpl   *Template
}

func (r *eventRecorder) handler(event Event) Handler {
	return func(owner, name string, tpl *Template) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, recordedEvent{event, owner, name, tpl})
	}
}

func (r *eventRecorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func newTestStore(t *testing.T, cfg StoreConfig) (*Store, *eventRecorder) {
	t.Helper()
	store := NewStore(kv.NewMemoryStore(), cfg)
	rec := &eventRecorder{}
	store.Subscribe(EventAdd, rec.handler(EventAdd))
	store.Subscribe(EventUpdate, rec.handler(EventUpdate))
	store.Subscribe(EventDelete, rec.handler(EventDelete))
	return store, rec
}

func TestStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t, StoreConfig{})

	name, stored, err := store.Add(ctx, "alice", validTemplate("t1"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if name != "t1" {
		t.Errorf("returned name %q", name)
	}
	if stored.Auth.Method != AuthMethodOpen {
		t.Errorf("stored template not normalized: %+v", stored.Auth)
	}

	got, err := store.Get(ctx, "alice", "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "t1" || len(got.Layergroup.Layers) != 1 {
		t.Errorf("round-tripped template differs: %+v", got)
	}

	events := rec.all()
	if len(events) != 1 || events[0].event != EventAdd || events[0].owner != "alice" {
		t.Errorf("expected one add event, got %+v", events)
	}
	if events[0].tpl == nil {
		t.Error("add event should carry the template")
	}
}

func TestStore_AddInvalidName(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t, StoreConfig{})

	_, _, err := store.Add(ctx, "alice", validTemplate("Bad Name!"))
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Error("invalid add must not emit events")
	}
	// Nothing was persisted.
	if _, err := store.Get(ctx, "alice", "Bad Name!"); !IsKind(err, KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	if _, _, err := store.Add(ctx, "alice", validTemplate("ok_name-1")); err != nil {
		t.Errorf("expected ok_name-1 to be accepted, got %v", err)
	}
}

func TestStore_AddDuplicate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, StoreConfig{})

	if _, _, err := store.Add(ctx, "alice", validTemplate("t1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, _, err := store.Add(ctx, "alice", validTemplate("t1"))
	if !IsKind(err, KindAlreadyExists) {
		t.Errorf("expected already exists, got %v", err)
	}
}

func TestStore_LimitEnforcement(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, StoreConfig{MaxUserTemplates: 1})

	if _, _, err := store.Add(ctx, "alice", validTemplate("t1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	_, _, err := store.Add(ctx, "alice", validTemplate("t2"))
	if !IsKind(err, KindLimitExceeded) {
		t.Errorf("expected limit exceeded for alice, got %v", err)
	}

	// A different owner is unaffected by alice's limit.
	if _, _, err := store.Add(ctx, "bob", validTemplate("t1")); err != nil {
		t.Errorf("expected bob's add to succeed, got %v", err)
	}
}

func TestStore_UpdateRenameForbidden(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, StoreConfig{})

	_, _, _ = store.Add(ctx, "alice", validTemplate("t1"))

	_, err := store.Update(ctx, "alice", "t1", validTemplate("t2"))
	if !IsKind(err, KindValidation) {
		t.Errorf("expected rename to be rejected, got %v", err)
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t, StoreConfig{})

	_, err := store.Update(ctx, "alice", "ghost", validTemplate("ghost"))
	if !IsKind(err, KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Error("failed update must not emit events")
	}
}

func TestStore_NoopUpdateSuppressesEvent(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t, StoreConfig{})

	_, _, _ = store.Add(ctx, "alice", validTemplate("t1"))

	// Byte-identical (post-normalization) content: no update event.
	if _, err := store.Update(ctx, "alice", "t1", validTemplate("t1")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, ev := range rec.all() {
		if ev.event == EventUpdate {
			t.Error("no-op update emitted an update event")
		}
	}

	// Any changed field: update event fires.
	changed := validTemplate("t1")
	changed.Layergroup.Layers[0].Options["sql"] = "select 42"
	if _, err := store.Update(ctx, "alice", "t1", changed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	var updates int
	for _, ev := range rec.all() {
		if ev.event == EventUpdate {
			updates++
		}
	}
	if updates != 1 {
		t.Errorf("expected exactly one update event, got %d", updates)
	}
}

func TestStore_DeleteMissing(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t, StoreConfig{})

	err := store.Delete(ctx, "alice", "missing")
	if !IsKind(err, KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Error("failed delete must not emit events")
	}
}

func TestStore_DeleteEmitsEvent(t *testing.T) {
	ctx := context.Background()
	store, rec := newTestStore(t, StoreConfig{})

	_, _, _ = store.Add(ctx, "alice", validTemplate("t1"))
	if err := store.Delete(ctx, "alice", "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	events := rec.all()
	last := events[len(events)-1]
	if last.event != EventDelete || last.name != "t1" || last.tpl != nil {
		t.Errorf("unexpected delete event %+v", last)
	}

	if _, err := store.Get(ctx, "alice", "t1"); !IsKind(err, KindNotFound) {
		t.Errorf("expected template gone, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, StoreConfig{})

	names, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty list, got %v", names)
	}

	_, _, _ = store.Add(ctx, "alice", validTemplate("zeta"))
	_, _, _ = store.Add(ctx, "alice", validTemplate("alpha"))
	_, _, _ = store.Add(ctx, "bob", validTemplate("other"))

	names, err = store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("List = %v, want [alpha zeta]", names)
	}
}
