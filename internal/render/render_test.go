// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRenderTimeout, true},
		{fmt.Errorf("renderer: %w", ErrRenderTimeout), true},
		{errors.New("Render timed out"), true},
		{errors.New("render timed out waiting for style"), true},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := IsTimeout(tt.err); got != tt.want {
			t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{
		Host:       "db.internal",
		Port:       5432,
		DBNameFmt:  "carto_%s",
		DBUserFmt:  "carto_user_%s",
		DBPassword: "pw",
	}

	params, err := r.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if params.DBName != "carto_alice" || params.User != "carto_user_alice" {
		t.Errorf("unexpected params %+v", params)
	}

	if _, err := r.Resolve(context.Background(), ""); err == nil {
		t.Error("expected error for empty owner")
	}
}

func TestScrubConnInfo(t *testing.T) {
	tests := []struct {
		in       string
		excluded []string
	}{
		{
			`connection to server at "10.0.0.5", port 5432 failed: FATAL: role "bob" does not exist`,
			[]string{"10.0.0.5", "5432"},
		},
		{
			"could not connect: host=10.1.2.3 port=5432 password=hunter2 dbname=carto_alice",
			[]string{"10.1.2.3", "hunter2", "carto_alice"},
		},
		{
			"syntax error at or near SELECT",
			nil,
		},
	}
	for _, tt := range tests {
		got := ScrubConnInfo(tt.in)
		for _, secret := range tt.excluded {
			if strings.Contains(got, secret) {
				t.Errorf("ScrubConnInfo(%q) leaked %q: %q", tt.in, secret, got)
			}
		}
		if tt.excluded == nil && got != tt.in {
			t.Errorf("ScrubConnInfo(%q) altered clean text: %q", tt.in, got)
		}
	}
}
