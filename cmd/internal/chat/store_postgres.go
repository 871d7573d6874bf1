package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/ids"
	"rpms/cmd/internal/metrics"
	"rpms/cmd/internal/pgsql"
)

// PostgresStore is a ConversationStore backed by PostgreSQL (see db/schema.sql).
//
// Ownership model:
//   - PostgresStore does NOT own the pgx pool. The caller must close the pool.
//
// Concurrency model:
//   - Appends take a transactional advisory lock per conversation, so seq order within a
//     conversation matches commit order.
//   - UnreadFor is a single UPDATE ... RETURNING; row locks guarantee a message is returned by
//     at most one call.
type PostgresStore struct {
	pool    *pgxpool.Pool
	schema  string
	metrics *metrics.Recorder
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "rpms").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgsql.Schema(schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// WithPostgresMetrics attaches a metrics recorder.
func WithPostgresMetrics(m *metrics.Recorder) PostgresOption {
	return func(s *PostgresStore) error {
		s.metrics = m
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed ConversationStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: pgsql.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

const messageColumns = `seq, id, sender_id, receiver_id, content, created_at, read`

// AppendMessage validates and inserts a message. A message that fails validation is never inserted.
func (s *PostgresStore) AppendMessage(ctx context.Context, in AppendMessageInput) (Message, error) {
	if err := in.validate(); err != nil {
		return Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Message{}, err
	}
	key := KeyFor(in.SenderID, in.ReceiverID)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		key.String(),
	); err != nil {
		return Message{}, fmt.Errorf("advisory lock: %w", err)
	}

	messages := pgsql.Table(s.schema, "messages")

	row := tx.QueryRow(ctx,
		`INSERT INTO `+messages+` (id, user_low, user_high, sender_id, receiver_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+messageColumns,
		id, key.Low, key.High, in.SenderID, in.ReceiverID, in.Content, now,
	)
	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}

	s.metrics.MessageAppended()
	return msg, nil
}

// MessagesBetween returns the ordered conversation between userA and userB (empty if none).
func (s *PostgresStore) MessagesBetween(ctx context.Context, userA, userB string) ([]Message, error) {
	if blank(userA) || blank(userB) {
		return nil, errs.InvalidInput("chat.MessagesBetween", "user ids cannot be empty")
	}
	key := KeyFor(userA, userB)

	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+`
		   FROM `+pgsql.Table(s.schema, "messages")+`
		  WHERE user_low = $1 AND user_high = $2
		  ORDER BY seq ASC`,
		key.Low, key.High,
	)
	if err != nil {
		return nil, err
	}
	out, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadFor marks every unread message addressed to userID read and returns them in creation order.
func (s *PostgresStore) UnreadFor(ctx context.Context, userID string) ([]Message, error) {
	if blank(userID) {
		return nil, errs.InvalidInput("chat.UnreadFor", "user id is empty")
	}

	rows, err := s.pool.Query(ctx,
		`UPDATE `+pgsql.Table(s.schema, "messages")+`
		    SET read = true
		  WHERE receiver_id = $1 AND NOT read
		RETURNING `+messageColumns,
		userID,
	)
	if err != nil {
		return nil, err
	}
	out, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING order is unspecified.
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	s.metrics.UnreadSurfaced(len(out))
	return out, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	if err := row.Scan(&m.Seq, &m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.Read); err != nil {
		return Message{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	out := make([]Message, 0, 16)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
