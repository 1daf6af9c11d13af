// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"strings"
	"testing"
)

func TestInstantiate_CSSColorDefault(t *testing.T) {
	tpl := &Template{
		Version: Version,
		Name:    "t1",
		Auth:    Auth{Method: AuthMethodOpen},
		Placeholders: map[string]Placeholder{
			"color": NewPlaceholder(TypeCSSColor, "#ff0000"),
		},
		Layergroup: &LayerGroup{Layers: []Layer{
			{Options: map[string]interface{}{
				"cartocss": "#l{marker-fill:<%= color %>;}",
				"sql":      "select 1",
			}},
		}},
	}

	cfg, err := Instantiate(tpl, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	got := cfg.Layers[0].Options["cartocss"]
	if got != "#l{marker-fill:#ff0000;}" {
		t.Errorf("cartocss = %q, want %q", got, "#l{marker-fill:#ff0000;}")
	}
}

func TestInstantiate_SQLLiteralEscaping(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"surname": NewPlaceholder(TypeSQLLiteral, "none"),
	}
	tpl.Layergroup.Layers[0].Options["sql"] = "select * from people where surname = '<%= surname %>'"

	cfg, err := Instantiate(tpl, map[string]interface{}{"surname": "O'Brien"})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	sql := cfg.Layers[0].Options["sql"].(string)
	if !strings.Contains(sql, "O''Brien") {
		t.Errorf("expected doubled quote in %q", sql)
	}
	if got := strings.Count(sql, "''"); got != 1 {
		t.Errorf("expected exactly one doubled quote, got %d in %q", got, sql)
	}
}

func TestInstantiate_SQLIdentEscaping(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"table_name": NewPlaceholder(TypeSQLIdent, "observations"),
	}
	tpl.Layergroup.Layers[0].Options["sql"] = `select * from "<%= table_name %>"`

	cfg, err := Instantiate(tpl, map[string]interface{}{"table_name": `weird"name`})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	sql := cfg.Layers[0].Options["sql"].(string)
	if !strings.Contains(sql, `weird""name`) {
		t.Errorf("expected doubled double-quote in %q", sql)
	}
}

func TestInstantiate_NumberValidation(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"zoom": NewPlaceholder(TypeNumber, 3.0),
	}
	tpl.Layergroup.Layers[0].Options["sql"] = "select <%= zoom %>"

	tests := []struct {
		value interface{}
		valid bool
		want  string
	}{
		{7.0, true, "select 7"},
		{"12", true, "select 12"},
		{"-1.5e3", true, "select -1.5e3"},
		{"+.5", true, "select +.5"},
		{"12; drop table users", false, ""},
		{"abc", false, ""},
		{true, false, ""},
	}
	for _, tt := range tests {
		cfg, err := Instantiate(tpl, map[string]interface{}{"zoom": tt.value})
		if tt.valid {
			if err != nil {
				t.Errorf("value %v: expected valid, got %v", tt.value, err)
				continue
			}
			if got := cfg.Layers[0].Options["sql"]; got != tt.want {
				t.Errorf("value %v: sql = %q, want %q", tt.value, got, tt.want)
			}
			continue
		}
		if !IsKind(err, KindInstantiation) {
			t.Errorf("value %v: expected instantiation error, got %v", tt.value, err)
		}
		if err != nil && !strings.Contains(err.Error(), "'zoom'") {
			t.Errorf("value %v: expected offending key in message, got %v", tt.value, err)
		}
	}
}

func TestInstantiate_CSSColorValidation(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"color": NewPlaceholder(TypeCSSColor, "red"),
	}

	for _, valid := range []string{"red", "steelblue", "#fff", "#AABBCC"} {
		if _, err := Instantiate(tpl, map[string]interface{}{"color": valid}); err != nil {
			t.Errorf("color %q: expected valid, got %v", valid, err)
		}
	}
	for _, invalid := range []interface{}{"#ffff", "url(evil)", "red;}", 42.0} {
		if _, err := Instantiate(tpl, map[string]interface{}{"color": invalid}); !IsKind(err, KindInstantiation) {
			t.Errorf("color %v: expected instantiation error, got %v", invalid, err)
		}
	}
}

func TestInstantiate_DictionaryValidation(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"opts": NewPlaceholder(TypeDictionary, map[string]interface{}{}),
	}

	if _, err := Instantiate(tpl, map[string]interface{}{"opts": map[string]interface{}{"a": 1.0}}); err != nil {
		t.Errorf("expected dictionary to be accepted, got %v", err)
	}
	for _, invalid := range []interface{}{[]interface{}{"a"}, "str", 1.0} {
		if _, err := Instantiate(tpl, map[string]interface{}{"opts": invalid}); !IsKind(err, KindInstantiation) {
			t.Errorf("value %v: expected instantiation error, got %v", invalid, err)
		}
	}
}

func TestInstantiate_UnknownPlaceholderType(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"x": NewPlaceholder("mystery", "v"),
	}
	_, err := Instantiate(tpl, nil)
	if !IsKind(err, KindInstantiation) || !strings.Contains(err.Error(), "'mystery'") {
		t.Errorf("expected invalid placeholder type error, got %v", err)
	}
}

func TestInstantiate_BuffersizeString(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"buf": NewPlaceholder(TypeNumber, 64.0),
	}
	tpl.Layergroup.Buffersize = "<%= buf %>"

	cfg, err := Instantiate(tpl, map[string]interface{}{"buf": 128.0})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got, ok := cfg.Buffersize.(float64); !ok || got != 128 {
		t.Errorf("buffersize = %v, want 128", cfg.Buffersize)
	}
}

func TestInstantiate_BuffersizeDictionary(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"buf": NewPlaceholder(TypeNumber, 64.0),
	}
	tpl.Layergroup.Buffersize = map[string]interface{}{
		"png":       "<%= buf %>",
		"grid.json": 0.0,
	}

	cfg, err := Instantiate(tpl, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	buffersize := cfg.Buffersize.(map[string]interface{})
	if got := buffersize["png"]; got != 64.0 {
		t.Errorf("buffersize[png] = %v, want 64", got)
	}
	if got := buffersize["grid.json"]; got != 0.0 {
		t.Errorf("buffersize[grid.json] = %v, want 0", got)
	}
}

func TestInstantiate_StyleOverrideBypassesSubstitution(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"color": NewPlaceholder(TypeCSSColor, "red"),
	}
	tpl.Layergroup.Layers = []Layer{
		{Options: map[string]interface{}{"cartocss": "#a{fill:<%= color %>;}", "sql": "select 1"}},
		{Options: map[string]interface{}{"cartocss": "#b{fill:<%= color %>;}", "sql": "select 2"}},
	}

	override := "#b{fill:<%= color %>;line-width:2;}"
	cfg, err := InstantiateWithStyles(tpl, nil, map[string]string{"1": override})
	if err != nil {
		t.Fatalf("InstantiateWithStyles: %v", err)
	}

	if got := cfg.Layers[0].Options["cartocss"]; got != "#a{fill:red;}" {
		t.Errorf("layer 0 cartocss = %q", got)
	}
	// The override is taken verbatim; its tokens are not substituted.
	if got := cfg.Layers[1].Options["cartocss"]; got != override {
		t.Errorf("layer 1 cartocss = %q, want verbatim override", got)
	}
}

func TestInstantiate_ProvenanceStamp(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Auth = Auth{Method: AuthMethodToken, ValidTokens: []string{"tok"}}

	cfg, err := Instantiate(tpl, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if cfg.Template == nil {
		t.Fatal("expected provenance stamp")
	}
	if cfg.Template.Name != "t1" || cfg.Template.Auth.Method != AuthMethodToken {
		t.Errorf("provenance = %+v", cfg.Template)
	}
}

func TestInstantiate_DoesNotMutateTemplate(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Placeholders = map[string]Placeholder{
		"color": NewPlaceholder(TypeCSSColor, "red"),
	}
	tpl.Layergroup.Layers[0].Options["cartocss"] = "#l{fill:<%= color %>;}"

	if _, err := Instantiate(tpl, nil); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got := tpl.Layergroup.Layers[0].Options["cartocss"]; got != "#l{fill:<%= color %>;}" {
		t.Errorf("template document was mutated: %q", got)
	}
	if tpl.Layergroup.Template != nil {
		t.Error("template document received a provenance stamp")
	}
}

func TestInstantiate_LayerCountPreserved(t *testing.T) {
	tpl := validTemplate("t1")
	tpl.Layergroup.Layers = append(tpl.Layergroup.Layers,
		Layer{Options: map[string]interface{}{"sql": "select 2"}},
		Layer{Options: map[string]interface{}{"sql": "select 3"}},
	)

	cfg, err := Instantiate(tpl, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if len(cfg.Layers) != len(tpl.Layergroup.Layers) {
		t.Errorf("layer count %d, want %d", len(cfg.Layers), len(tpl.Layergroup.Layers))
	}
}

func TestSubstituteTokens_WhitespaceVariants(t *testing.T) {
	resolved := map[string]string{"key": "VAL"}
	tests := []struct {
		in   string
		want string
	}{
		{"<%= key %>", "VAL"},
		{"<%=key%>", "VAL"},
		{"<%=   key   %>", "VAL"},
		{"a <%= key %> b <%=key%> c", "a VAL b VAL c"},
		{"<%= other %>", "<%= other %>"},
		{"no tokens", "no tokens"},
	}
	for _, tt := range tests {
		if got := substituteTokens(tt.in, resolved); got != tt.want {
			t.Errorf("substituteTokens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
