// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package cluster propagates template lifecycle events between gateway
// instances. Each instance's map-config provider cache is purely in-process,
// so in multi-instance deployments a template mutation handled by one
// instance must reach the others; this package republishes store events over
// a Watermill pub/sub (NATS in production, an in-process channel
// in tests) and drops the matching provider-cache buckets on receipt.
package cluster

import (
	"fmt"

	"github.com/goccy/go-json"
)

// DefaultTopic is the pub/sub topic carrying template lifecycle events.
const DefaultTopic = "tilegate.templates"

// TemplateEvent is the wire form of one template mutation.
type TemplateEvent struct {
	// Kind is the lifecycle transition: "update" or "delete". Adds are not
	// propagated; a freshly-added template cannot have stale cache entries.
	Kind string `json:"kind"`

	// Origin identifies the publishing instance, so instances skip their
	// own events (local invalidation already happened synchronously).
	Origin string `json:"origin"`

	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Marshal encodes the event payload.
func (e TemplateEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal template event: %w", err)
	}
	return data, nil
}

// UnmarshalTemplateEvent decodes an event payload.
func UnmarshalTemplateEvent(data []byte) (TemplateEvent, error) {
	var event TemplateEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return TemplateEvent{}, fmt.Errorf("unmarshal template event: %w", err)
	}
	return event, nil
}
