// Package pgsql holds small helpers shared by the Postgres-backed stores.
package pgsql

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultSchema is the schema used when none is configured.
const DefaultSchema = "rpms"

var identRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var (
	ErrEmptySchema   = errors.New("pgsql: empty schema")
	ErrInvalidSchema = errors.New("pgsql: invalid schema identifier")
)

// ValidIdent reports whether s is a plain, unquoted Postgres identifier.
func ValidIdent(s string) bool {
	return identRE.MatchString(s)
}

// Schema trims and validates a schema name.
func Schema(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptySchema
	}
	if !ValidIdent(s) {
		return "", ErrInvalidSchema
	}
	return s, nil
}

// Table returns the quoted "schema"."table" reference.
func Table(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
