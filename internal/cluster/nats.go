// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package cluster

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tilegate/internal/logging"
)

// NATSConfig holds the broker connection settings shared by the cluster
// publisher and subscriber.
type NATSConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	AckWaitTimeout  time.Duration
	CloseTimeout    time.Duration
	SubscriberCount int
}

// Defaults fills zero-valued fields with production defaults.
func (c *NATSConfig) Defaults() {
	if c.URL == "" {
		c.URL = natsgo.DefaultURL
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.AckWaitTimeout == 0 {
		c.AckWaitTimeout = 30 * time.Second
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = 10 * time.Second
	}
	if c.SubscriberCount == 0 {
		c.SubscriberCount = 1
	}
}

func natsOptions(cfg NATSConfig, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}

// NewNATSPublisher creates a Watermill publisher over core NATS. Invalidation
// events are fire-and-forget broadcasts, so JetStream persistence is disabled.
func NewNATSPublisher(cfg NATSConfig) (message.Publisher, error) {
	cfg.Defaults()
	logger := NewWatermillLogger()

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create cluster publisher: %w", err)
	}
	return pub, nil
}

// NewNATSSubscriber creates a Watermill subscriber over core NATS. No queue
// group is configured: every instance must observe every invalidation, so
// events broadcast rather than load-balance.
func NewNATSSubscriber(cfg NATSConfig) (message.Subscriber, error) {
	cfg.Defaults()
	logger := NewWatermillLogger()

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: cfg.SubscriberCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create cluster subscriber: %w", err)
	}
	return sub, nil
}

// watermillLogger adapts Watermill's logging interface onto zerolog so the
// broker internals share the process-wide log stream.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill.LoggerAdapter backed by zerolog.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) log(evt func() *zerolog.Event, msg string, err error, fields watermill.LogFields) {
	e := evt()
	if err != nil {
		e = e.Err(err)
	}
	for k, v := range l.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log(logging.Error, msg, err, fields)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log(logging.Info, msg, nil, fields)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log(logging.Debug, msg, nil, fields)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log(logging.Trace, msg, nil, fields)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}
