// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

// Package validation provides struct validation using go-playground/validator
// v10. A thread-safe singleton instance caches struct metadata, and custom
// validators cover gateway-specific formats such as tile image formats.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// tileFormats are the renderer output formats the gateway accepts.
var tileFormats = map[string]bool{
	"png":       true,
	"png32":     true,
	"mvt":       true,
	"grid.json": true,
}

// Error is a single field validation failure.
type Error struct {
	Field   string
	Tag     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errors aggregates every field failure of one struct validation.
type Errors struct {
	Fields []Error
}

func (e *Errors) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// tile_format: renderer output format
		_ = validate.RegisterValidation("tile_format", func(fl validator.FieldLevel) bool {
			return tileFormats[fl.Field().String()]
		})
	})
	return validate
}

// ValidateStruct validates v against its `validate` tags. It returns nil on
// success, or an *Errors describing every failed field.
func ValidateStruct(v interface{}) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: v was not a struct at all.
		return &Errors{Fields: []Error{{Message: err.Error()}}}
	}

	out := &Errors{Fields: make([]Error, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, Error{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "tile_format":
		return fmt.Sprintf("%s is not a supported tile format", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
