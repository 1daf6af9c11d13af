// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/tilegate/internal/logging"
	"github.com/tomtom215/tilegate/internal/metrics"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// RequestID assigns each request an ID, propagated via context and the
// X-Request-ID response header. An inbound X-Request-ID is honored so IDs
// survive proxy hops.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the response status for metrics and access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Metrics records request counts and latencies per method and status class.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// AccessLog writes one structured log line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// Authenticator validates admin-API JWTs and resolves the owning principal.
// Mutating template endpoints run behind it; instantiation does not, template
// auth policies gate that path instead.
type Authenticator struct {
	secret   []byte
	lifetime time.Duration
}

// NewAuthenticator creates a JWT authenticator. An empty secret disables
// authentication entirely; the owner is then taken from the X-Map-Owner
// header, which only makes sense behind a trusted front proxy.
func NewAuthenticator(secret string, lifetime time.Duration) *Authenticator {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Authenticator{secret: key, lifetime: lifetime}
}

// IssueToken mints a signed token for an owner. Used by provisioning tooling
// and tests.
func (a *Authenticator) IssueToken(owner string) (string, error) {
	if a.secret == nil {
		return "", fmt.Errorf("jwt authentication is disabled")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		Issuer:    "tilegate",
	})
	return token.SignedString(a.secret)
}

// Middleware authenticates the request and stashes the owner in context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := a.resolveOwner(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerContextKey, owner)))
	})
}

func (a *Authenticator) resolveOwner(r *http.Request) (string, error) {
	if a.secret == nil {
		owner := r.Header.Get("X-Map-Owner")
		if owner == "" {
			return "", fmt.Errorf("missing X-Map-Owner header")
		}
		return owner, nil
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("missing bearer token")
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// OwnerFromContext returns the authenticated owner, or "" when the request
// did not pass through the authenticator.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}
