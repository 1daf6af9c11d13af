// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("default port = %d, want 8181", cfg.Server.Port)
	}
	if cfg.Templates.MaxUserTemplates != 1024 {
		t.Errorf("default max_user_templates = %d, want 1024", cfg.Templates.MaxUserTemplates)
	}
	if cfg.Provider.CacheCapacity != 2000 {
		t.Errorf("default cache_capacity = %d, want 2000", cfg.Provider.CacheCapacity)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("MAX_USER_TEMPLATES", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TEMPLATE_STORE_IN_MEMORY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Templates.MaxUserTemplates != 5 {
		t.Errorf("max_user_templates = %d, want 5", cfg.Templates.MaxUserTemplates)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Store.InMemory {
		t.Error("store.in_memory not applied from env")
	}
}

func TestLoadParsesSliceEnvVars(t *testing.T) {
	t.Setenv("VARNISH_PURGE_URLS", "http://varnish-1:6081, http://varnish-2:6081")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"http://varnish-1:6081", "http://varnish-2:6081"}
	if len(cfg.Surrogate.VarnishURLs) != len(want) {
		t.Fatalf("varnish urls = %v, want %v", cfg.Surrogate.VarnishURLs, want)
	}
	for i, u := range want {
		if cfg.Surrogate.VarnishURLs[i] != u {
			t.Errorf("varnish url %d = %q, want %q", i, cfg.Surrogate.VarnishURLs[i], u)
		}
	}
}

func TestLoadIgnoresUnmappedEnvVars(t *testing.T) {
	t.Setenv("SOME_RANDOM_VARIABLE", "not config")

	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := strings.Join([]string{
		"server:",
		"  port: 7070",
		"templates:",
		"  max_user_templates: 42",
		"cluster:",
		"  enabled: true",
		"  nats_url: nats://broker:4222",
	}, "\n")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Templates.MaxUserTemplates != 42 {
		t.Errorf("max_user_templates = %d, want 42", cfg.Templates.MaxUserTemplates)
	}
	if !cfg.Cluster.Enabled || cfg.Cluster.NATSURL != "nats://broker:4222" {
		t.Errorf("cluster config not applied: %+v", cfg.Cluster)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191 (env must win over file)", cfg.Server.Port)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "server.port",
		},
		{
			name:   "negative template limit",
			mutate: func(c *Config) { c.Templates.MaxUserTemplates = -1 },
			want:   "max_user_templates",
		},
		{
			name:   "non-positive cache capacity",
			mutate: func(c *Config) { c.Provider.CacheCapacity = -1 },
			want:   "cache_capacity",
		},
		{
			name: "persistent store without path",
			mutate: func(c *Config) {
				c.Store.InMemory = false
				c.Store.Path = ""
			},
			want: "store.path",
		},
		{
			name:   "varnish url without scheme",
			mutate: func(c *Config) { c.Surrogate.VarnishURLs = []string{"varnish:6081"} },
			want:   "varnish_urls",
		},
		{
			name: "fastly key without service",
			mutate: func(c *Config) {
				c.Surrogate.FastlyAPIKey = "k"
				c.Surrogate.FastlyService = ""
			},
			want: "fastly",
		},
		{
			name: "cluster enabled without broker",
			mutate: func(c *Config) {
				c.Cluster.Enabled = true
				c.Cluster.NATSURL = ""
			},
			want: "nats_url",
		},
		{
			name:   "short jwt secret",
			mutate: func(c *Config) { c.Security.JWTSecret = "too-short" },
			want:   "jwt_secret",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			want:   "logging.level",
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateAcceptsUnlimitedTemplates(t *testing.T) {
	cfg := Default()
	cfg.Templates.MaxUserTemplates = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero template limit must mean unlimited, got %v", err)
	}
}

func TestValidateAcceptsLongSecret(t *testing.T) {
	cfg := Default()
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	cfg.Security.TokenLifetime = time.Hour
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
