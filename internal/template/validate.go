// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// templateNameRe matches valid template names.
	templateNameRe = regexp.MustCompile(`(?i)^[a-z0-9][0-9a-z_-]*$`)

	// placeholderNameRe matches valid placeholder names.
	placeholderNameRe = regexp.MustCompile(`(?i)^[a-z][0-9a-z_]*$`)
)

// ValidName reports whether name is a legal template name.
func ValidName(name string) bool {
	return templateNameRe.MatchString(name)
}

// Validate checks a normalized template document for well-formedness. It is
// pure, performs no I/O, and short-circuits on the first failing check.
// A template that fails Validate is never persisted.
//
// Check order: version, name, layergroup structure, placeholders, auth.
func Validate(tpl *Template) error {
	if tpl.Version != Version {
		return newError(KindValidation, "unsupported template version '%s', expected '%s'", tpl.Version, Version)
	}

	if tpl.Name == "" {
		return newError(KindValidation, "missing template name")
	}
	if !templateNameRe.MatchString(tpl.Name) {
		return newError(KindValidation, "invalid characters in template name '%s'", tpl.Name)
	}

	if err := validateLayergroup(tpl.Layergroup); err != nil {
		return err
	}

	if err := validatePlaceholders(tpl.Placeholders); err != nil {
		return err
	}

	return validateAuth(tpl.Auth)
}

func validateLayergroup(lg *LayerGroup) error {
	if lg == nil {
		return newError(KindValidation, "missing layergroup")
	}
	if len(lg.Layers) == 0 {
		return newError(KindValidation, "missing or empty layers array in layergroup")
	}

	var missingOptions []string
	for i, layer := range lg.Layers {
		if layer.Options == nil {
			missingOptions = append(missingOptions, fmt.Sprintf("%d", i))
		}
	}
	if len(missingOptions) > 0 {
		return newError(KindValidation, "missing 'options' in layergroup for layers: %s", strings.Join(missingOptions, ", "))
	}
	return nil
}

func validatePlaceholders(placeholders map[string]Placeholder) error {
	// Sorted iteration keeps the first-failure error deterministic.
	names := make([]string, 0, len(placeholders))
	for name := range placeholders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !placeholderNameRe.MatchString(name) {
			return newError(KindValidation, "invalid characters in placeholder name '%s'", name)
		}
		p := placeholders[name]
		if !p.HasDefault() {
			return newError(KindValidation, "missing default for placeholder '%s'", name)
		}
		if !p.HasType() {
			return newError(KindValidation, "missing type for placeholder '%s'", name)
		}
	}
	return nil
}

func validateAuth(auth Auth) error {
	switch auth.Method {
	case AuthMethodOpen:
		return nil
	case AuthMethodToken:
		if len(auth.ValidTokens) == 0 {
			return newError(KindValidation, "invalid 'token' authentication: missing valid_tokens")
		}
		return nil
	default:
		return newError(KindValidation, "unsupported authentication method '%s'", auth.Method)
	}
}
