package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/pgsql/pgtest"
)

func mustPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := pgtest.OpenPool(t)
	schema := pgtest.Schema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	return st
}

func TestPostgresStore_AppendAndBetween(t *testing.T) {
	t.Parallel()

	st := mustPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC()
	for i, in := range []AppendMessageInput{
		{SenderID: "alice", ReceiverID: "bob", Content: "hi", Now: now},
		{SenderID: "bob", ReceiverID: "alice", Content: "hey", Now: now.Add(time.Second)},
		{SenderID: "alice", ReceiverID: "bob", Content: "how are you?", Now: now.Add(2 * time.Second)},
	} {
		if _, err := st.AppendMessage(ctx, in); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	ab, err := st.MessagesBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	ba, err := st.MessagesBetween(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("between reversed: %v", err)
	}
	if len(ab) != 3 || len(ba) != 3 {
		t.Fatalf("expected 3 messages both ways, got %d and %d", len(ab), len(ba))
	}
	want := []string{"hi", "hey", "how are you?"}
	for i := range want {
		if ab[i].Content != want[i] || ba[i].ID != ab[i].ID {
			t.Fatalf("order mismatch at %d: %+v vs %+v", i, ab[i], ba[i])
		}
	}

	empty, err := st.MessagesBetween(ctx, "alice", "carol")
	if err != nil {
		t.Fatalf("between empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty conversation, got %d", len(empty))
	}
}

func TestPostgresStore_RejectsBlankWithoutInsert(t *testing.T) {
	t.Parallel()

	st := mustPostgresStore(t)
	ctx := context.Background()

	_, err := st.AppendMessage(ctx, AppendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "  "})
	if !errs.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	msgs, err := st.MessagesBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected message was stored")
	}
}

func TestPostgresStore_UnreadForIsExactlyOnce(t *testing.T) {
	t.Parallel()

	st := mustPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const n = 40
	for i := range n {
		if _, err := st.AppendMessage(ctx, AppendMessageInput{
			SenderID:   "alice",
			ReceiverID: "bob",
			Content:    fmt.Sprintf("m%02d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := st.UnreadFor(ctx, "bob")
			if err != nil {
				t.Errorf("unread: %v", err)
				return
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].Seq >= got[i].Seq {
					t.Errorf("unread not in creation order")
				}
			}
			mu.Lock()
			for _, m := range got {
				seen[m.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d distinct messages surfaced, got %d", n, len(seen))
	}
	for id, c := range seen {
		if c != 1 {
			t.Fatalf("message %s surfaced %d times", id, c)
		}
	}

	again, err := st.UnreadFor(ctx, "bob")
	if err != nil {
		t.Fatalf("unread again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected nothing unread, got %d", len(again))
	}
}

func TestWithSchemaRejectsInvalid(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, WithSchema("bad-schema")); err == nil {
		t.Fatalf("expected invalid schema error")
	}
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected nil pool error")
	}
}
