// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// numberValueRe matches numeric literals supplied as strings.
	numberValueRe = regexp.MustCompile(`^[-+]?[\d.]?\d+([eE][+-]?\d+)?$`)

	// cssColorNameRe matches bare color names (red, steelblue, ...).
	cssColorNameRe = regexp.MustCompile(`^[a-zA-Z]+$`)

	// cssColorHexRe matches #RGB and #RRGGBB hex colors.
	cssColorHexRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// Instantiate produces a concrete map configuration from a template and
// caller-supplied parameter values. Declared placeholders resolve to the
// supplied value or their default, are validated and escaped according to
// their declared type, and are then substituted into the template's
// layergroup via literal `<%= key %>` token replacement. Escaping happens in
// the per-type step; substitution inserts the escaped value verbatim.
func Instantiate(tpl *Template, params map[string]interface{}) (*MapConfig, error) {
	return InstantiateWithStyles(tpl, params, nil)
}

// InstantiateWithStyles is Instantiate plus per-layer style overrides, keyed
// by decimal layer index. An override replaces the layer's cartocss verbatim
// and bypasses placeholder substitution for that field.
func InstantiateWithStyles(tpl *Template, params map[string]interface{}, styles map[string]string) (*MapConfig, error) {
	resolved, err := resolvePlaceholders(tpl, params)
	if err != nil {
		return nil, err
	}

	layergroup, err := cloneLayerGroup(tpl.Layergroup)
	if err != nil {
		return nil, err
	}

	if err := substituteBuffersize(layergroup, resolved); err != nil {
		return nil, err
	}

	for i := range layergroup.Layers {
		opts := layergroup.Layers[i].Options
		if opts == nil {
			continue
		}
		if style, ok := styles[strconv.Itoa(i)]; ok {
			opts["cartocss"] = style
		} else if cartocss, ok := opts["cartocss"].(string); ok {
			opts["cartocss"] = substituteTokens(cartocss, resolved)
		}
		if sql, ok := opts["sql"].(string); ok {
			opts["sql"] = substituteTokens(sql, resolved)
		}
	}

	// Provenance stamp: downstream components re-check authorization from it.
	layergroup.Template = &Provenance{Name: tpl.Name, Auth: tpl.Auth}

	return layergroup, nil
}

// resolvePlaceholders produces the escaped substitution value for every
// placeholder declared on the template. Parameters not declared as
// placeholders are ignored.
func resolvePlaceholders(tpl *Template, params map[string]interface{}) (map[string]string, error) {
	resolved := make(map[string]string, len(tpl.Placeholders))

	for key, placeholder := range tpl.Placeholders {
		value, ok := params[key]
		if !ok {
			value = placeholder.Default
		}

		escaped, err := escapeValue(key, placeholder.Type, value)
		if err != nil {
			return nil, err
		}
		resolved[key] = escaped
	}
	return resolved, nil
}

// escapeValue validates and escapes a resolved value per its declared type.
func escapeValue(key, typ string, value interface{}) (string, error) {
	switch typ {
	case TypeSQLLiteral:
		// SQL string-literal escaping: double every single quote.
		return strings.ReplaceAll(valueString(value), "'", "''"), nil

	case TypeSQLIdent:
		// SQL identifier escaping: double every double quote.
		return strings.ReplaceAll(valueString(value), `"`, `""`), nil

	case TypeNumber:
		switch v := value.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
			return valueString(v), nil
		case string:
			if numberValueRe.MatchString(v) {
				return v, nil
			}
		}
		return "", newError(KindInstantiation, "invalid number value for template parameter '%s'", key)

	case TypeCSSColor:
		if s, ok := value.(string); ok {
			if cssColorNameRe.MatchString(s) || cssColorHexRe.MatchString(s) {
				return s, nil
			}
		}
		return "", newError(KindInstantiation, "invalid css_color value for template parameter '%s'", key)

	case TypeDictionary:
		dict, ok := value.(map[string]interface{})
		if !ok {
			return "", newError(KindInstantiation, "invalid dictionary value for template parameter '%s'", key)
		}
		data, err := json.Marshal(dict)
		if err != nil {
			return "", newError(KindInstantiation, "invalid dictionary value for template parameter '%s'", key)
		}
		return string(data), nil

	default:
		// Unreachable for validated templates; documents persisted by a
		// newer schema version may still carry unknown types.
		return "", newError(KindInstantiation, "invalid placeholder type '%s'", typ)
	}
}

// valueString renders a parameter value for textual substitution.
func valueString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// substituteTokens performs the literal find-replace of `<%= key %>` tokens.
// Keys are processed in sorted order for determinism.
func substituteTokens(s string, resolved map[string]string) string {
	if len(resolved) == 0 || !strings.Contains(s, "<%=") {
		return s
	}

	keys := make([]string, 0, len(resolved))
	for key := range resolved {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		re := regexp.MustCompile(`<%=\s*` + regexp.QuoteMeta(key) + `\s*%>`)
		s = re.ReplaceAllLiteralString(s, resolved[key])
	}
	return s
}

// substituteBuffersize handles buffersize substitution: a string value gets
// token substitution and numeric coercion; a per-format dictionary gets the
// same treatment value by value.
func substituteBuffersize(lg *LayerGroup, resolved map[string]string) error {
	switch buffersize := lg.Buffersize.(type) {
	case string:
		n, err := coerceBuffersize(buffersize, resolved)
		if err != nil {
			return err
		}
		lg.Buffersize = n

	case map[string]interface{}:
		for format, value := range buffersize {
			s, ok := value.(string)
			if !ok {
				continue
			}
			n, err := coerceBuffersize(s, resolved)
			if err != nil {
				return err
			}
			buffersize[format] = n
		}
	}
	return nil
}

func coerceBuffersize(s string, resolved map[string]string) (float64, error) {
	substituted := substituteTokens(s, resolved)
	n, err := strconv.ParseFloat(substituted, 64)
	if err != nil {
		return 0, newError(KindInstantiation, "invalid buffersize value '%s'", substituted)
	}
	return n, nil
}
