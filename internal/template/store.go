// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tilegate/internal/kv"
	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/metrics"
)

// namespacePrefix scopes the per-owner template hash in the key-value store.
const namespacePrefix = "map_tpl|"

// Event names emitted by the store on template lifecycle transitions.
type Event string

const (
	// EventAdd fires after a template is created.
	EventAdd Event = "add"

	// EventUpdate fires after a template is updated with changed content.
	// Fingerprint-identical updates do not fire it.
	EventUpdate Event = "update"

	// EventDelete fires after a template is deleted.
	EventDelete Event = "delete"
)

// Handler receives a lifecycle event. tpl is nil for EventDelete.
type Handler func(owner, name string, tpl *Template)

// StoreConfig holds template store configuration.
type StoreConfig struct {
	// MaxUserTemplates bounds how many templates one owner may hold.
	// 0 means unlimited.
	MaxUserTemplates int
}

// Store persists named map templates, one hash per owner, field = template
// name, value = the normalized JSON document. All mutations validate first;
// an invalid template is never persisted, not even partially.
//
// Mutual exclusion for concurrent creates of the same (owner, name) comes
// solely from the key-value store's HashSetNX primitive. The limit check
// before it is advisory: two racing creates under distinct names can land an
// owner slightly over the limit, which the original system accepts too.
//
// Subscribers are plain callback lists per event name, registered by the
// composing layer at startup (provider cache, surrogate invalidation,
// cluster propagation). Events are emitted synchronously, in registration
// order, after the mutation has been persisted.
type Store struct {
	kv  kv.HashStore
	cfg StoreConfig

	mu          sync.RWMutex
	subscribers map[Event][]Handler
}

// NewStore creates a template store on the given key-value backend.
func NewStore(store kv.HashStore, cfg StoreConfig) *Store {
	return &Store{
		kv:          store,
		cfg:         cfg,
		subscribers: make(map[Event][]Handler),
	}
}

// Subscribe registers a handler for the given lifecycle event.
func (s *Store) Subscribe(event Event, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[event] = append(s.subscribers[event], handler)
}

// emit invokes all handlers registered for event, synchronously and in
// registration order.
func (s *Store) emit(event Event, owner, name string, tpl *Template) {
	s.mu.RLock()
	handlers := s.subscribers[event]
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(owner, name, tpl)
	}
}

func namespace(owner string) string {
	return namespacePrefix + owner
}

// Add validates and persists a new template for owner. It fails with
// KindLimitExceeded when the owner is at the template cap, and with
// KindAlreadyExists when the name is taken. On success it returns the
// template name and the stored (normalized) document, and emits EventAdd.
func (s *Store) Add(ctx context.Context, owner string, tpl *Template) (string, *Template, error) {
	tpl.Normalize()
	if err := Validate(tpl); err != nil {
		metrics.TemplateOperations.WithLabelValues("add", "invalid").Inc()
		return "", nil, err
	}

	ns := namespace(owner)

	if s.cfg.MaxUserTemplates > 0 {
		count, err := s.kv.HashLen(ctx, ns)
		if err != nil {
			return "", nil, fmt.Errorf("count templates for %s: %w", owner, err)
		}
		if count >= s.cfg.MaxUserTemplates {
			metrics.TemplateOperations.WithLabelValues("add", "limit_exceeded").Inc()
			return "", nil, newError(KindLimitExceeded,
				"reached limit on number of templates for user '%s' (%d)", owner, s.cfg.MaxUserTemplates)
		}
	}

	data, err := json.Marshal(tpl)
	if err != nil {
		return "", nil, fmt.Errorf("marshal template: %w", err)
	}

	created, err := s.kv.HashSetNX(ctx, ns, tpl.Name, data)
	if err != nil {
		return "", nil, fmt.Errorf("store template %s/%s: %w", owner, tpl.Name, err)
	}
	if !created {
		metrics.TemplateOperations.WithLabelValues("add", "conflict").Inc()
		return "", nil, newError(KindAlreadyExists,
			"template '%s' of user '%s' already exists", tpl.Name, owner)
	}

	metrics.TemplateOperations.WithLabelValues("add", "ok").Inc()
	logging.Ctx(ctx).Info().
		Str("owner", owner).
		Str("template", tpl.Name).
		Msg("template added")

	s.emit(EventAdd, owner, tpl.Name, tpl)
	return tpl.Name, tpl, nil
}

// Update validates and replaces the template named templateID. Renaming is
// forbidden: the new document's name must equal templateID. EventUpdate is
// emitted only when the content fingerprint actually changed, so no-op
// updates never trigger cache invalidation.
func (s *Store) Update(ctx context.Context, owner, templateID string, tpl *Template) (*Template, error) {
	tpl.Normalize()
	if err := Validate(tpl); err != nil {
		metrics.TemplateOperations.WithLabelValues("update", "invalid").Inc()
		return nil, err
	}

	if tpl.Name != templateID {
		metrics.TemplateOperations.WithLabelValues("update", "invalid").Inc()
		return nil, newError(KindValidation,
			"cannot update name of template ('%s' != '%s')", templateID, tpl.Name)
	}

	ns := namespace(owner)

	previous, err := s.Get(ctx, owner, templateID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			metrics.TemplateOperations.WithLabelValues("update", "not_found").Inc()
		}
		return nil, err
	}

	previousFP, err := Fingerprint(previous)
	if err != nil {
		return nil, err
	}
	nextFP, err := Fingerprint(tpl)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	if err := s.kv.HashSet(ctx, ns, templateID, data); err != nil {
		return nil, fmt.Errorf("store template %s/%s: %w", owner, templateID, err)
	}

	metrics.TemplateOperations.WithLabelValues("update", "ok").Inc()
	logging.Ctx(ctx).Info().
		Str("owner", owner).
		Str("template", templateID).
		Bool("changed", previousFP != nextFP).
		Msg("template updated")

	if previousFP != nextFP {
		s.emit(EventUpdate, owner, templateID, tpl)
	}
	return tpl, nil
}

// Delete removes the template named templateID. It fails with KindNotFound
// when absent; on success it emits EventDelete.
func (s *Store) Delete(ctx context.Context, owner, templateID string) error {
	existed, err := s.kv.HashDelete(ctx, namespace(owner), templateID)
	if err != nil {
		return fmt.Errorf("delete template %s/%s: %w", owner, templateID, err)
	}
	if !existed {
		metrics.TemplateOperations.WithLabelValues("delete", "not_found").Inc()
		return newError(KindNotFound, "cannot find template '%s' of user '%s'", templateID, owner)
	}

	metrics.TemplateOperations.WithLabelValues("delete", "ok").Inc()
	logging.Ctx(ctx).Info().
		Str("owner", owner).
		Str("template", templateID).
		Msg("template deleted")

	s.emit(EventDelete, owner, templateID, nil)
	return nil
}

// Get returns the stored template, or a KindNotFound error.
func (s *Store) Get(ctx context.Context, owner, templateID string) (*Template, error) {
	data, err := s.kv.HashGet(ctx, namespace(owner), templateID)
	if err != nil {
		if errors.Is(err, kv.ErrFieldNotFound) {
			return nil, newError(KindNotFound, "cannot find template '%s' of user '%s'", templateID, owner)
		}
		return nil, fmt.Errorf("load template %s/%s: %w", owner, templateID, err)
	}

	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("decode stored template %s/%s: %w", owner, templateID, err)
	}
	return &tpl, nil
}

// List returns the owner's template names in lexicographic order.
func (s *Store) List(ctx context.Context, owner string) ([]string, error) {
	names, err := s.kv.HashKeys(ctx, namespace(owner))
	if err != nil {
		return nil, fmt.Errorf("list templates for %s: %w", owner, err)
	}
	return names, nil
}
