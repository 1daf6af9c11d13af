// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package template implements the named-map template engine: the template
// document model, structural validation, parameterized instantiation into
// map configurations, the authorization policy, content fingerprinting and
// the persisted template store with lifecycle events.
package template

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Version is the only supported template schema version.
const Version = "0.0.1"

// Auth method values.
const (
	AuthMethodOpen  = "open"
	AuthMethodToken = "token"
)

// Placeholder types.
const (
	TypeSQLLiteral = "sql_literal"
	TypeSQLIdent   = "sql_ident"
	TypeNumber     = "number"
	TypeCSSColor   = "css_color"
	TypeDictionary = "dictionary"
)

// Template is a reusable, parameterized named-map definition owned by a
// single principal. Templates are validated before persistence; a stored
// template always carries normalized auth and placeholders.
type Template struct {
	Version      string                 `json:"version"`
	Name         string                 `json:"name"`
	Auth         Auth                   `json:"auth"`
	Placeholders map[string]Placeholder `json:"placeholders"`
	Layergroup   *LayerGroup            `json:"layergroup"`
	View         *View                  `json:"view,omitempty"`
}

// Auth is a template's access policy: open to everyone, or gated on a token
// list. The zero value (empty Method) means "no policy declared".
//
// The wire form is either the structured object {"method": ..., and for
// token auth "valid_tokens": [...]} or, as backward-compatibility residue
// still accepted from old clients, the bare string "open".
type Auth struct {
	Method      string   `json:"method"`
	ValidTokens []string `json:"valid_tokens,omitempty"`
}

// UnmarshalJSON accepts both the structured object form and the legacy bare
// string form.
func (a *Auth) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var method string
		if err := json.Unmarshal(trimmed, &method); err != nil {
			return err
		}
		a.Method = method
		a.ValidTokens = nil
		return nil
	}

	type authDoc Auth
	var doc authDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*a = Auth(doc)
	return nil
}

// Placeholder declares a typed, defaulted parameter slot. Presence of the
// "type" and "default" keys is tracked separately from their values so the
// validator can distinguish an explicit null default from a missing one.
type Placeholder struct {
	Type    string      `json:"type"`
	Default interface{} `json:"default"`

	hasType    bool
	hasDefault bool
}

// UnmarshalJSON records which keys were present in the document.
func (p *Placeholder) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("placeholder must be an object: %w", err)
	}

	if rawType, ok := raw["type"]; ok {
		p.hasType = true
		if err := json.Unmarshal(rawType, &p.Type); err != nil {
			return fmt.Errorf("placeholder type: %w", err)
		}
	}
	if rawDefault, ok := raw["default"]; ok {
		p.hasDefault = true
		if err := json.Unmarshal(rawDefault, &p.Default); err != nil {
			return fmt.Errorf("placeholder default: %w", err)
		}
	}
	return nil
}

// HasType reports whether the document declared a "type" key.
func (p Placeholder) HasType() bool { return p.hasType }

// HasDefault reports whether the document declared a "default" key.
func (p Placeholder) HasDefault() bool { return p.hasDefault }

// NewPlaceholder builds a fully-declared placeholder. Used by tests and by
// programmatic template construction.
func NewPlaceholder(typ string, def interface{}) Placeholder {
	return Placeholder{Type: typ, Default: def, hasType: true, hasDefault: true}
}

// LayerGroup is the map-configuration document embedded in a template and,
// after instantiation, handed to the rendering backend. Instantiation fills
// Template with the provenance stamp.
type LayerGroup struct {
	Version    string      `json:"version,omitempty"`
	Buffersize interface{} `json:"buffersize,omitempty"`
	Layers     []Layer     `json:"layers"`
	Template   *Provenance `json:"template,omitempty"`
}

// Layer is one entry of a layergroup. Options carries the free-form layer
// configuration (sql, cartocss, interactivity, ...).
type Layer struct {
	Type    string                 `json:"type,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// Provenance stamps an instantiated map config with the template it came
// from, so downstream components can re-check authorization.
type Provenance struct {
	Name string `json:"name"`
	Auth Auth   `json:"auth"`
}

// MapConfig is an instantiated layergroup. It is ephemeral: produced per
// instantiation and handed to the rendering collaborator, never persisted.
type MapConfig = LayerGroup

// View holds optional static-preview hints.
type View struct {
	Zoom   *float64 `json:"zoom,omitempty"`
	Center *Center  `json:"center,omitempty"`
	Bounds *Bounds  `json:"bounds,omitempty"`
}

// Center is a lng/lat map center.
type Center struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Bounds is a west/south/east/north bounding box.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Normalize applies the implicit defaults: a missing auth policy becomes
// {method: "open"} and missing placeholders become the empty mapping.
// Validation and persistence always operate on normalized documents.
func (t *Template) Normalize() {
	if t.Auth.Method == "" {
		t.Auth = Auth{Method: AuthMethodOpen}
	}
	if t.Placeholders == nil {
		t.Placeholders = map[string]Placeholder{}
	}
}

// Parse decodes and normalizes a raw template document.
func Parse(data []byte) (*Template, error) {
	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, newError(KindValidation, "invalid template document: %v", err)
	}
	tpl.Normalize()
	return &tpl, nil
}

// cloneLayerGroup deep-copies a layergroup via a JSON round trip, so that
// instantiation never mutates the stored template document.
func cloneLayerGroup(lg *LayerGroup) (*LayerGroup, error) {
	data, err := json.Marshal(lg)
	if err != nil {
		return nil, fmt.Errorf("clone layergroup: %w", err)
	}
	var out LayerGroup
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone layergroup: %w", err)
	}
	return &out, nil
}
