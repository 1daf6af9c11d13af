// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package main is the entry point for the Tilegate server.
//
// Tilegate is a map-tile API gateway implementing the CARTO named-map
// template engine: owners register parameterized map templates, clients
// instantiate them into concrete map configurations, and mutations propagate
// to edge caches (surrogate-key purges) and to peer gateway instances
// (NATS-backed invalidation events).
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file, env)
//  2. Logging: zerolog, JSON or console format
//  3. Template store: Badger-backed hash KV
//  4. Provider cache: LRU of map-config providers, bound to store events
//  5. Surrogate invalidator: Varnish and/or Fastly purge backends
//  6. Cluster propagation (optional): Watermill over NATS
//  7. HTTP server: chi router under a suture supervision tree
//
// # Configuration
//
// Highest priority wins: environment variables, then config.yaml, then
// built-in defaults. See internal/config for the full key list. The
// essentials:
//
//	export HTTP_PORT=8181
//	export TEMPLATE_STORE_PATH=/data/tilegate/templates
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export VARNISH_PURGE_URLS=http://varnish:6081
//	export CLUSTER_ENABLED=true NATS_URL=nats://nats:4222
//	./tilegate
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops accepting
// connections, in-flight requests get the configured shutdown timeout, then
// the store and broker connections close.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/tilegate/internal/api"
	"github.com/tomtom215/tilegate/internal/cluster"
	"github.com/tomtom215/tilegate/internal/config"
	"github.com/tomtom215/tilegate/internal/kv"
	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/provider"
	"github.com/tomtom215/tilegate/internal/render"
	"github.com/tomtom215/tilegate/internal/supervisor"
	"github.com/tomtom215/tilegate/internal/supervisor/services"
	"github.com/tomtom215/tilegate/internal/surrogate"
	"github.com/tomtom215/tilegate/internal/template"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Bool("cluster", cfg.Cluster.Enabled).
		Msg("Starting Tilegate")

	if cfg.Security.JWTSecret == "" {
		logging.Warn().Msg("JWT_SECRET is not set: template administration trusts the X-Map-Owner header")
		logging.Warn().Msg("Run this mode only behind a front proxy that sets the header itself")
	}

	hashStore, err := kv.NewBadgerStore(kv.BadgerConfig{
		Dir:      cfg.Store.Path,
		InMemory: cfg.Store.InMemory,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open template store")
	}
	defer func() {
		if err := hashStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing template store")
		}
	}()

	store := template.NewStore(hashStore, template.StoreConfig{
		MaxUserTemplates: cfg.Templates.MaxUserTemplates,
	})

	cache := provider.NewCache(store, cfg.Provider.CacheCapacity)
	cache.BindStore()

	// Surrogate purge backends. An empty backend list still yields a working
	// invalidator; purges just become no-ops.
	var backends []surrogate.Backend
	for _, u := range cfg.Surrogate.VarnishURLs {
		backends = append(backends, surrogate.NewVarnishBackend(surrogate.VarnishConfig{
			URL:             u,
			Timeout:         cfg.Surrogate.PurgeTimeout,
			PurgesPerSecond: cfg.Surrogate.PurgeRateLimit,
		}))
	}
	if cfg.Surrogate.FastlyAPIKey != "" {
		backends = append(backends, surrogate.NewFastlyBackend(surrogate.FastlyConfig{
			APIKey:    cfg.Surrogate.FastlyAPIKey,
			ServiceID: cfg.Surrogate.FastlyService,
			BaseURL:   cfg.Surrogate.FastlyAPIURL,
			Timeout:   cfg.Surrogate.PurgeTimeout,
		}))
	}
	invalidator := surrogate.NewInvalidator(backends...)
	surrogate.BindStore(invalidator, store)
	logging.Info().Int("purge_backends", len(backends)).Msg("Surrogate invalidator ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.Cluster.Enabled {
		natsCfg := cluster.NATSConfig{
			URL:           cfg.Cluster.NATSURL,
			MaxReconnects: cfg.Cluster.MaxReconnects,
			ReconnectWait: cfg.Cluster.ReconnectWait,
		}
		publisher, err := cluster.NewNATSPublisher(natsCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create cluster publisher")
		}
		subscriber, err := cluster.NewNATSSubscriber(natsCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create cluster subscriber")
		}

		propagator := cluster.NewPropagator(publisher, subscriber, cache,
			cfg.Cluster.Topic, cfg.Cluster.InstanceID)
		propagator.BindStore(store)
		tree.AddMessagingService(propagator)
		logging.Info().Str("topic", cfg.Cluster.Topic).Msg("Cluster invalidation enabled")
	}

	resolver := render.StaticResolver{
		Host:       cfg.Render.DBHost,
		Port:       cfg.Render.DBPort,
		DBNameFmt:  cfg.Render.DBNameFmt,
		DBUserFmt:  cfg.Render.DBUserFmt,
		DBPassword: cfg.Render.DBPassword,
	}

	handler := api.NewHandler(store, cache, resolver)
	auth := api.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.TokenLifetime)
	router := api.NewRouter(handler, auth, api.RouterConfig{
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	// Shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Tilegate listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Shutdown complete")
}
