// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package api exposes the gateway's HTTP surface: the named-map template
// CRUD endpoints, template instantiation, health and metrics.
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/render"
	"github.com/tomtom215/tilegate/internal/template"
)

// errorResponse is the wire shape every error takes: a list of messages, as
// CARTO clients expect.
type errorResponse struct {
	Errors []string `json:"errors"`
}

// sanitizeLogValue strips control characters so attacker-controlled strings
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error response with connection details scrubbed, so
// a failing rendering database never leaks credentials to clients.
func respondError(w http.ResponseWriter, status int, messages ...string) {
	scrubbed := make([]string, len(messages))
	for i, m := range messages {
		scrubbed[i] = render.ScrubConnInfo(m)
	}
	respondJSON(w, status, errorResponse{Errors: scrubbed})
}

// respondTemplateError maps a template-engine error onto its status code.
func respondTemplateError(w http.ResponseWriter, err error) {
	status := template.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Error().Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}
	respondError(w, status, err.Error())
}
