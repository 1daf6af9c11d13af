// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies template-engine errors so that the HTTP layer can map them
// to status codes without string matching.
type Kind string

const (
	// KindValidation marks a malformed template document.
	KindValidation Kind = "validation"

	// KindLimitExceeded marks a per-owner template count limit hit.
	KindLimitExceeded Kind = "limit_exceeded"

	// KindAlreadyExists marks an add for a name already taken by the owner.
	KindAlreadyExists Kind = "already_exists"

	// KindNotFound marks an operation on an absent template.
	KindNotFound Kind = "not_found"

	// KindUnauthorized marks a clean authorization denial.
	KindUnauthorized Kind = "unauthorized"

	// KindAuthCheckFailed marks malformed caller-supplied auth input.
	// Surfaced as 403 like KindUnauthorized but with a distinct message so
	// operators can tell abuse from integration bugs.
	KindAuthCheckFailed Kind = "auth_check_failed"

	// KindInstantiation marks a placeholder type/value mismatch.
	KindInstantiation Kind = "instantiation"
)

// Error is a classified template-engine error carrying an HTTP status hint.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code hint for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInstantiation:
		return http.StatusBadRequest
	case KindLimitExceeded, KindAlreadyExists:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized, KindAuthCheckFailed:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// newError builds a classified error with a formatted message.
func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) a template Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind == kind
	}
	return false
}

// HTTPStatus returns the status hint for err, or 500 for unclassified errors.
func HTTPStatus(err error) int {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
