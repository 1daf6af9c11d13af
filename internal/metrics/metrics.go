// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package metrics defines the Prometheus collectors exported by Tilegate.
// All collectors are registered on the default registry via promauto and
// served from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TemplateOperations counts template store operations by outcome.
	// Operations: add, update, delete. Results: ok, invalid, conflict,
	// limit_exceeded, not_found.
	TemplateOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilegate_template_operations_total",
			Help: "Template store operations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// ProviderCacheHits counts provider cache lookups served from cache.
	ProviderCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tilegate_provider_cache_hits_total",
			Help: "Map-config provider cache hits.",
		},
	)

	// ProviderCacheMisses counts provider cache lookups that constructed a
	// new provider.
	ProviderCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tilegate_provider_cache_misses_total",
			Help: "Map-config provider cache misses.",
		},
	)

	// ProviderCacheInvalidations counts outer-bucket invalidations caused by
	// template mutations.
	ProviderCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tilegate_provider_cache_invalidations_total",
			Help: "Provider cache bucket invalidations.",
		},
	)

	// SurrogatePurges counts edge-cache purge attempts per backend.
	// Results: ok, error.
	SurrogatePurges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilegate_surrogate_purges_total",
			Help: "Edge cache purge attempts by backend and result.",
		},
		[]string{"backend", "result"},
	)

	// SurrogatePurgeDuration observes per-backend purge latency.
	SurrogatePurgeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tilegate_surrogate_purge_duration_seconds",
			Help:    "Edge cache purge latency by backend.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// HTTPRequests counts handled HTTP requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilegate_http_requests_total",
			Help: "HTTP requests by method and status code.",
		},
		[]string{"method", "status"},
	)

	// HTTPDuration observes request handling latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tilegate_http_request_duration_seconds",
			Help:    "HTTP request handling latency by method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ClusterEvents counts cluster invalidation messages by direction.
	// Directions: published, received, skipped_self.
	ClusterEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilegate_cluster_events_total",
			Help: "Cluster invalidation events by direction.",
		},
		[]string{"direction"},
	)
)
