package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rpms/cmd/internal/alert"
	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/metrics"
	"rpms/cmd/internal/roster"
)

// stores bundles the conversation store and alert roster selected by configuration.
// The app owns pool; the stores built on it do not.
type stores struct {
	conversations chat.ConversationStore
	roster        alert.Roster
	pool          *pgxpool.Pool
}

func (s stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// newStores picks Postgres when a database URL is configured, in-memory otherwise.
func newStores(ctx context.Context, cfg Config, log Logger, rec *metrics.Recorder) (stores, error) {
	if cfg.DatabaseURL == "" {
		static := roster.ParseStatic(cfg.AlertRoster)
		log.Info("db.disabled.inmemory_store", "roster_size", len(static))
		return stores{
			conversations: chat.NewMemoryStore(chat.WithStoreMetrics(rec)),
			roster:        static,
		}, nil
	}

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return stores{}, err
	}

	msgs, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema), chat.WithPostgresMetrics(rec))
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	rst, err := roster.NewPostgres(pool, roster.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return stores{}, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return stores{conversations: msgs, roster: rst, pool: pool}, nil
}

// newDBPool builds a pgxpool and validates connectivity.
// It does NOT apply db/schema.sql; schema management is out of band.
func newDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// pingDB checks if we can acquire a connection within timeout.
func pingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
