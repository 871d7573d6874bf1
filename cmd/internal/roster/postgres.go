package roster

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rpms/cmd/internal/pgsql"
)

// Postgres reads the active roster from <schema>.alert_roster on every call.
// It does NOT own the pool.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures Postgres behavior.
type PostgresOption func(*Postgres) error

// WithSchema sets the DB schema (default: "rpms").
func WithSchema(schema string) PostgresOption {
	return func(p *Postgres) error {
		v, err := pgsql.Schema(schema)
		if err != nil {
			return err
		}
		p.schema = v
		return nil
	}
}

// NewPostgres constructs a Postgres-backed roster.
func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) (*Postgres, error) {
	p := &Postgres{pool: pool, schema: pgsql.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.pool == nil {
		return nil, errors.New("roster: nil pool")
	}
	return p, nil
}

// Contacts returns active contacts ordered by position, then contact.
func (p *Postgres) Contacts(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT contact
		   FROM `+pgsql.Table(p.schema, "alert_roster")+`
		  WHERE active
		  ORDER BY position ASC, contact ASC`,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Add upserts a contact at position.
func (p *Postgres) Add(ctx context.Context, contact string, position int) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO `+pgsql.Table(p.schema, "alert_roster")+` (contact, position, active)
		 VALUES ($1, $2, true)
		 ON CONFLICT (contact) DO UPDATE SET position = EXCLUDED.position, active = true`,
		contact, position,
	)
	return err
}

// Deactivate removes contact from future alerts without deleting it.
func (p *Postgres) Deactivate(ctx context.Context, contact string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE `+pgsql.Table(p.schema, "alert_roster")+` SET active = false WHERE contact = $1`,
		contact,
	)
	return err
}
