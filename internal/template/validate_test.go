// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"strings"
	"testing"
)

// validTemplate builds a minimal valid, normalized template.
func validTemplate(name string) *Template {
	tpl := &Template{
		Version: Version,
		Name:    name,
		Auth:    Auth{Method: AuthMethodOpen},
		Layergroup: &LayerGroup{
			Layers: []Layer{
				{Options: map[string]interface{}{
					"sql":      "select * from table_name",
					"cartocss": "#layer { marker-fill: red; }",
				}},
			},
		},
	}
	tpl.Normalize()
	return tpl
}

func TestValidate_ValidTemplate(t *testing.T) {
	if err := Validate(validTemplate("ok_name-1")); err != nil {
		t.Errorf("expected valid template, got %v", err)
	}
}

func TestValidate_Version(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Version = "0.0.2"
	err := Validate(tpl)
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestValidate_Name(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"ok_name-1", true},
		{"1starts-with-digit", true},
		{"UPPER", true}, // pattern is case-insensitive
		{"", false},
		{"Bad Name!", false},
		{"-leading-dash", false},
		{"_leading_underscore", false},
		{"has space", false},
	}
	for _, tt := range tests {
		tpl := validTemplate("placeholder")
		tpl.Name = tt.name
		err := Validate(tpl)
		if tt.valid && err != nil {
			t.Errorf("name %q: expected valid, got %v", tt.name, err)
		}
		if !tt.valid && !IsKind(err, KindValidation) {
			t.Errorf("name %q: expected validation error, got %v", tt.name, err)
		}
	}
}

func TestValidate_Layergroup(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Layergroup = nil
	if err := Validate(tpl); !IsKind(err, KindValidation) {
		t.Errorf("missing layergroup: expected validation error, got %v", err)
	}

	tpl = validTemplate("t1")
	tpl.Layergroup.Layers = nil
	if err := Validate(tpl); !IsKind(err, KindValidation) {
		t.Errorf("empty layers: expected validation error, got %v", err)
	}
}

func TestValidate_LayerMissingOptions(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Layergroup.Layers = []Layer{
		{Options: map[string]interface{}{"sql": "select 1"}},
		{Type: "mapnik"},
		{Type: "torque"},
	}
	err := Validate(tpl)
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// The error enumerates the offending layer indices.
	if !strings.Contains(err.Error(), "1, 2") {
		t.Errorf("expected offending indices '1, 2' in error, got %v", err)
	}
}

func TestValidate_PlaceholderNames(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"color", true},
		{"n1_value", true},
		{"CamelCase", true}, // case-insensitive pattern
		{"1leading_digit", false},
		{"has-dash", false},
		{"has space", false},
	}
	for _, tt := range tests {
		tpl := validTemplate("t1")
		tpl.Placeholders = map[string]Placeholder{
			tt.key: NewPlaceholder(TypeNumber, 1.0),
		}
		err := Validate(tpl)
		if tt.valid && err != nil {
			t.Errorf("placeholder %q: expected valid, got %v", tt.key, err)
		}
		if !tt.valid && !IsKind(err, KindValidation) {
			t.Errorf("placeholder %q: expected validation error, got %v", tt.key, err)
		}
	}
}

func TestValidate_PlaceholderFields(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"color": {Type: TypeCSSColor, hasType: true}, // no default declared
	}
	err := Validate(tpl)
	if !IsKind(err, KindValidation) || !strings.Contains(err.Error(), "default") {
		t.Errorf("expected missing-default error, got %v", err)
	}

	tpl.Placeholders = map[string]Placeholder{
		"color": {Default: "red", hasDefault: true}, // no type declared
	}
	err = Validate(tpl)
	if !IsKind(err, KindValidation) || !strings.Contains(err.Error(), "type") {
		t.Errorf("expected missing-type error, got %v", err)
	}
}

func TestValidate_Auth(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Auth = Auth{Method: AuthMethodToken}
	if err := Validate(tpl); !IsKind(err, KindValidation) {
		t.Errorf("token auth without tokens: expected validation error, got %v", err)
	}

	tpl.Auth = Auth{Method: AuthMethodToken, ValidTokens: []string{"secret"}}
	if err := Validate(tpl); err != nil {
		t.Errorf("token auth with tokens: expected valid, got %v", err)
	}

	tpl.Auth = Auth{Method: "magic"}
	if err := Validate(tpl); !IsKind(err, KindValidation) {
		t.Errorf("unknown auth method: expected validation error, got %v", err)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	tpl := &Template{
		Version: Version,
		Name:    "t1",
		Layergroup: &LayerGroup{Layers: []Layer{
			{Options: map[string]interface{}{}},
		}},
	}
	tpl.Normalize()

	if tpl.Auth.Method != AuthMethodOpen {
		t.Errorf("expected default auth method open, got %q", tpl.Auth.Method)
	}
	if tpl.Placeholders == nil {
		t.Error("expected placeholders to default to empty map")
	}
	// Round-trip property: a normalized valid template validates clean.
	if err := Validate(tpl); err != nil {
		t.Errorf("normalized template failed validation: %v", err)
	}
}

func TestParse_LegacyAuthString(t *testing.T) {
	doc := []byte(`{
		"version": "0.0.1",
		"name": "legacy",
		"auth": "open",
		"layergroup": {"layers": [{"options": {"sql": "select 1"}}]}
	}`)
	tpl, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tpl.Auth.Method != AuthMethodOpen {
		t.Errorf("expected bare-string auth to parse as open, got %q", tpl.Auth.Method)
	}
	if err := Validate(tpl); err != nil {
		t.Errorf("legacy auth template failed validation: %v", err)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{not json`)); !IsKind(err, KindValidation) {
		t.Errorf("expected validation error for bad JSON, got %v", err)
	}
}
