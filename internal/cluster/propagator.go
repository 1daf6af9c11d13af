// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package cluster

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/metrics"
	"github.com/tomtom215/tilegate/internal/provider"
	"github.com/tomtom215/tilegate/internal/template"
)

// Propagator bridges the local template store and the cluster topic: it
// publishes local mutations and applies remote ones to the provider cache.
type Propagator struct {
	instanceID string
	topic      string
	publisher  message.Publisher
	subscriber message.Subscriber
	cache      *provider.Cache
}

// NewPropagator creates a propagator over an existing Watermill pub/sub
// pair. instanceID must be unique per process; empty selects a random one.
func NewPropagator(publisher message.Publisher, subscriber message.Subscriber, cache *provider.Cache, topic, instanceID string) *Propagator {
	if topic == "" {
		topic = DefaultTopic
	}
	if instanceID == "" {
		instanceID = watermill.NewUUID()
	}
	return &Propagator{
		instanceID: instanceID,
		topic:      topic,
		publisher:  publisher,
		subscriber: subscriber,
		cache:      cache,
	}
}

// BindStore subscribes the propagator to the store's update and delete
// events. Publishing is best-effort: a broker outage is logged and the local
// mutation proceeds, exactly like edge-cache purge failures.
func (p *Propagator) BindStore(store *template.Store) {
	publish := func(kind string) template.Handler {
		return func(owner, name string, _ *template.Template) {
			p.publish(TemplateEvent{Kind: kind, Origin: p.instanceID, Owner: owner, Name: name})
		}
	}
	store.Subscribe(template.EventUpdate, publish("update"))
	store.Subscribe(template.EventDelete, publish("delete"))
}

func (p *Propagator) publish(event TemplateEvent) {
	payload, err := event.Marshal()
	if err != nil {
		logging.Error().Err(err).Msg("cluster event marshal failed")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		logging.Error().
			Str("owner", event.Owner).
			Str("template", event.Name).
			Err(err).
			Msg("cluster event publish failed")
		return
	}
	metrics.ClusterEvents.WithLabelValues("published").Inc()
}

// Serve consumes the cluster topic until ctx is cancelled, applying remote
// invalidations to the local provider cache. It implements suture.Service.
func (p *Propagator) Serve(ctx context.Context) error {
	messages, err := p.subscriber.Subscribe(ctx, p.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", p.topic, err)
	}

	logging.Info().Str("topic", p.topic).Msg("cluster invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("cluster subscription closed")
			}
			p.handle(msg)
		}
	}
}

func (p *Propagator) handle(msg *message.Message) {
	// Malformed or self-originated messages are acked either way; there is
	// nothing to gain from redelivery.
	defer msg.Ack()

	event, err := UnmarshalTemplateEvent(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed cluster event")
		return
	}

	if event.Origin == p.instanceID {
		metrics.ClusterEvents.WithLabelValues("skipped_self").Inc()
		return
	}

	p.cache.Invalidate(event.Owner, event.Name)
	metrics.ClusterEvents.WithLabelValues("received").Inc()

	logging.Debug().
		Str("kind", event.Kind).
		Str("owner", event.Owner).
		Str("template", event.Name).
		Msg("applied remote template invalidation")
}
