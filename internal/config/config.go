// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package config loads and validates the gateway configuration from layered
// sources: built-in defaults, an optional YAML file and environment
// variables, with environment taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Templates TemplatesConfig `koanf:"templates"`
	Provider  ProviderConfig  `koanf:"provider"`
	Surrogate SurrogateConfig `koanf:"surrogate"`
	Cluster   ClusterConfig   `koanf:"cluster"`
	Render    RenderConfig    `koanf:"render"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StoreConfig holds the Badger-backed persistence settings.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// TemplatesConfig holds template-engine limits. MaxUserTemplates zero means
// unlimited.
type TemplatesConfig struct {
	MaxUserTemplates int `koanf:"max_user_templates"`
}

// ProviderConfig holds the map-config provider cache settings.
type ProviderConfig struct {
	CacheCapacity int `koanf:"cache_capacity"`
}

// SurrogateConfig holds the edge-cache invalidation settings. Backends are
// independent: any combination of Varnish instances and a Fastly service may
// be configured, and an empty config disables surrogate purging entirely.
type SurrogateConfig struct {
	VarnishURLs    []string      `koanf:"varnish_urls"`
	FastlyAPIURL   string        `koanf:"fastly_api_url"`
	FastlyAPIKey   string        `koanf:"fastly_api_key"`
	FastlyService  string        `koanf:"fastly_service"`
	PurgeTimeout   time.Duration `koanf:"purge_timeout"`
	PurgeRateLimit float64       `koanf:"purge_rate_limit"`
}

// ClusterConfig holds the cross-instance invalidation settings.
type ClusterConfig struct {
	Enabled       bool          `koanf:"enabled"`
	NATSURL       string        `koanf:"nats_url"`
	Topic         string        `koanf:"topic"`
	InstanceID    string        `koanf:"instance_id"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// RenderConfig holds the rendering-database resolution settings.
type RenderConfig struct {
	DBHost     string `koanf:"db_host"`
	DBPort     int    `koanf:"db_port"`
	DBNameFmt  string `koanf:"db_name_format"`
	DBUserFmt  string `koanf:"db_user_format"`
	DBPassword string `koanf:"db_password"`
}

// SecurityConfig holds the admin-API authentication settings.
type SecurityConfig struct {
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenLifetime time.Duration `koanf:"token_lifetime"`
}

// LoggingConfig holds the zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Templates.MaxUserTemplates < 0 {
		return fmt.Errorf("templates.max_user_templates must not be negative, got %d", c.Templates.MaxUserTemplates)
	}
	if c.Provider.CacheCapacity < 1 {
		return fmt.Errorf("provider.cache_capacity must be positive, got %d", c.Provider.CacheCapacity)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	if err := c.validateSurrogate(); err != nil {
		return err
	}
	if c.Cluster.Enabled && c.Cluster.NATSURL == "" {
		return fmt.Errorf("cluster.nats_url is required when cluster.enabled is set")
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	return c.validateLogging()
}

func (c *Config) validateSurrogate() error {
	for _, u := range c.Surrogate.VarnishURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("surrogate.varnish_urls entry %q must be an http(s) URL", u)
		}
	}
	fastlyFields := []string{c.Surrogate.FastlyAPIKey, c.Surrogate.FastlyService}
	anySet, allSet := false, true
	for _, f := range fastlyFields {
		if f == "" {
			allSet = false
		} else {
			anySet = true
		}
	}
	if anySet && !allSet {
		return fmt.Errorf("surrogate.fastly_api_key and surrogate.fastly_service must be set together")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
