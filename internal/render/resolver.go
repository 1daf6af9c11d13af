// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package render

import (
	"context"
	"fmt"
	"regexp"
)

// ConnParams are the database connection parameters for one owner.
type ConnParams struct {
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
}

// Resolver maps an owner to database connection parameters. The production
// implementation queries the metadata service; StaticResolver derives them
// from configured patterns for standalone deployments.
type Resolver interface {
	Resolve(ctx context.Context, owner string) (ConnParams, error)
}

// StaticResolver derives connection parameters from printf-style patterns
// with the owner name as the single argument.
type StaticResolver struct {
	Host       string
	Port       int
	DBNameFmt  string // e.g. "carto_%s"
	DBUserFmt  string // e.g. "carto_user_%s"
	DBPassword string
}

// Resolve implements Resolver.
func (r StaticResolver) Resolve(_ context.Context, owner string) (ConnParams, error) {
	if owner == "" {
		return ConnParams{}, fmt.Errorf("resolve connection: empty owner")
	}
	return ConnParams{
		Host:     r.Host,
		Port:     r.Port,
		DBName:   fmt.Sprintf(r.DBNameFmt, owner),
		User:     fmt.Sprintf(r.DBUserFmt, owner),
		Password: r.DBPassword,
	}, nil
}

// connInfoRe matches the connection detail clauses PostgreSQL appends to
// connection failures, e.g. `connection to server at "10.0.0.5", port 5432
// failed` or libpq-style `host=10.0.0.5 port=5432 password=hunter2`.
var connInfoRe = regexp.MustCompile(
	`(connection to server at [^,]+(, port \d+)? failed:?\s*)|((host|port|user|password|dbname)=\S+\s*)`)

// ScrubConnInfo removes embedded connection details from PostgreSQL-style
// error text before it is surfaced to callers. Credentials and internal
// addresses must never leak through error messages.
func ScrubConnInfo(msg string) string {
	return connInfoRe.ReplaceAllString(msg, "")
}
