// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tilegate/config.yaml",
	"/etc/tilegate/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with every field set to its built-in default.
// These are layered first, then overridden by the config file and env vars.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8181,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Store: StoreConfig{
			Path:     "/data/tilegate/templates",
			InMemory: false,
		},
		Templates: TemplatesConfig{
			MaxUserTemplates: 1024,
		},
		Provider: ProviderConfig{
			CacheCapacity: 2000,
		},
		Surrogate: SurrogateConfig{
			VarnishURLs:    nil,
			FastlyAPIURL:   "https://api.fastly.com",
			PurgeTimeout:   10 * time.Second,
			PurgeRateLimit: 0, // unlimited
		},
		Cluster: ClusterConfig{
			Enabled:       false,
			NATSURL:       "nats://127.0.0.1:4222",
			Topic:         "tilegate.templates",
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
		},
		Render: RenderConfig{
			DBHost:    "127.0.0.1",
			DBPort:    5432,
			DBNameFmt: "%s_db",
			DBUserFmt: "%s_user",
		},
		Security: SecurityConfig{
			TokenLifetime: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values from Default
//  2. Config file: optional YAML file (first of DefaultConfigPaths, or
//     CONFIG_PATH)
//  3. Environment variables: highest priority
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists the config paths parsed as comma-separated slices
// when they arrive as env-var strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"surrogate.varnish_urls",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so arbitrary environment contents cannot
// pollute the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - TEMPLATE_STORE_PATH -> store.path
//   - VARNISH_PURGE_URLS -> surrogate.varnish_urls
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":          "server.host",
		"http_port":          "server.port",
		"http_read_timeout":  "server.read_timeout",
		"http_write_timeout": "server.write_timeout",
		"shutdown_timeout":   "server.shutdown_timeout",
		"cors_origins":       "server.cors_origins",
		"rate_limit_reqs":    "server.rate_limit_reqs",
		"rate_limit_window":  "server.rate_limit_window",

		// Store mappings
		"template_store_path":      "store.path",
		"template_store_in_memory": "store.in_memory",

		// Template engine mappings
		"max_user_templates": "templates.max_user_templates",

		// Provider cache mappings
		"provider_cache_capacity": "provider.cache_capacity",

		// Surrogate purge mappings
		"varnish_purge_urls": "surrogate.varnish_urls",
		"fastly_api_url":     "surrogate.fastly_api_url",
		"fastly_api_key":     "surrogate.fastly_api_key",
		"fastly_service_id":  "surrogate.fastly_service",
		"purge_timeout":      "surrogate.purge_timeout",
		"purge_rate_limit":   "surrogate.purge_rate_limit",

		// Cluster mappings
		"cluster_enabled":     "cluster.enabled",
		"nats_url":            "cluster.nats_url",
		"cluster_topic":       "cluster.topic",
		"cluster_instance_id": "cluster.instance_id",
		"nats_max_reconnects": "cluster.max_reconnects",
		"nats_reconnect_wait": "cluster.reconnect_wait",

		// Render database mappings
		"render_db_host":        "render.db_host",
		"render_db_port":        "render.db_port",
		"render_db_name_format": "render.db_name_format",
		"render_db_user_format": "render.db_user_format",
		"render_db_password":    "render.db_password",

		// Security mappings
		"jwt_secret":     "security.jwt_secret",
		"token_lifetime": "security.token_lifetime",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
