package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpms/cmd/internal/chat"
	v1 "rpms/contracts/realtime/v1"
)

type harness struct {
	srv       *httptest.Server
	store     *chat.MemoryStore
	listeners *chat.Listeners
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := chat.NewMemoryStore()
	listeners := chat.NewListeners(store, log, chat.WithPollInterval(20*time.Millisecond))

	cfg := DefaultConfig()
	cfg.OriginRequired = false
	if mutate != nil {
		mutate(&cfg)
	}

	g, err := NewGateway(store, listeners, cfg, log)
	require.NoError(t, err)

	srv := httptest.NewServer(g)
	t.Cleanup(func() {
		srv.Close()
		listeners.StopAll()
	})
	return &harness{srv: srv, store: store, listeners: listeners}
}

func (h *harness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?user_id=" + userID
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{Subprotocols: []string{v1.Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	hello := readType(t, conn, v1.TypeHelloAck)
	var p v1.HelloAckPayload
	require.NoError(t, json.Unmarshal(hello.Payload, &p))
	require.Equal(t, userID, p.UserID)
	require.NotEmpty(t, p.SessionID)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(v1.Envelope{V: v1.Version, Type: typ, ID: "c-1", TS: time.Now().UTC(), Payload: raw})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, b))
}

// readType reads envelopes until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) v1.Envelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)

		var env v1.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env
		}
	}
}

func TestGateway_SendIsPushedToReceiver(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	bob := h.dial(t, "bob")
	alice := h.dial(t, "alice")

	send(t, alice, v1.TypeMessageSend, v1.MessageSendPayload{To: "bob", ClientMsgID: "m1", Text: "  hello bob  "})

	ackEnv := readType(t, alice, v1.TypeMessageAck)
	var ack v1.MessageAckPayload
	require.NoError(t, json.Unmarshal(ackEnv.Payload, &ack))
	assert.Equal(t, "m1", ack.ClientMsgID)
	assert.NotEmpty(t, ack.MessageID)

	newEnv := readType(t, bob, v1.TypeMessageNew)
	var got v1.MessageNewPayload
	require.NoError(t, json.Unmarshal(newEnv.Payload, &got))
	assert.Equal(t, ack.MessageID, got.Message.MessageID)
	assert.Equal(t, "alice", got.Message.From)
	assert.Equal(t, "hello bob", got.Message.Text)
	assert.True(t, got.Message.Read)

	// Surfaced exactly once: nothing left unread for bob.
	left, err := h.store.UnreadFor(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestGateway_HistoryFetch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	for _, in := range []chat.AppendMessageInput{
		{SenderID: "alice", ReceiverID: "bob", Content: "one"},
		{SenderID: "bob", ReceiverID: "alice", Content: "two"},
	} {
		_, err := h.store.AppendMessage(ctx, in)
		require.NoError(t, err)
	}

	alice := h.dial(t, "alice")
	send(t, alice, v1.TypeHistoryFetch, v1.HistoryFetchPayload{With: "bob"})

	env := readType(t, alice, v1.TypeHistoryChunk)
	var chunk v1.HistoryChunkPayload
	require.NoError(t, json.Unmarshal(env.Payload, &chunk))
	assert.Equal(t, "bob", chunk.With)
	require.Len(t, chunk.Messages, 2)
	assert.Equal(t, "one", chunk.Messages[0].Text)
	assert.Equal(t, "two", chunk.Messages[1].Text)
}

func TestGateway_RejectsOversizedAndEmptyMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	alice := h.dial(t, "alice")

	send(t, alice, v1.TypeMessageSend, v1.MessageSendPayload{To: "bob", Text: strings.Repeat("é", chat.MaxContentChars+1)})
	env := readType(t, alice, v1.TypeError)
	var p v1.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "send_failed", p.Code)
	assert.Contains(t, p.Message, "content is too long")

	send(t, alice, v1.TypeMessageSend, v1.MessageSendPayload{To: "bob", Text: "   "})
	readType(t, alice, v1.TypeError)

	msgs, err := h.store.MessagesBetween(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	send(t, alice, v1.TypeMessageSend, v1.MessageSendPayload{ClientMsgID: "max", To: "bob", Text: strings.Repeat("é", chat.MaxContentChars)})
	readType(t, alice, v1.TypeMessageAck)
}

func TestGateway_UnknownTypeIsError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	alice := h.dial(t, "alice")

	send(t, alice, "conversation_join", map[string]string{})
	env := readType(t, alice, v1.TypeError)
	var p v1.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "bad_envelope", p.Code)
}

func TestGateway_DisconnectReleasesListener(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	bob := h.dial(t, "bob")

	require.Eventually(t, func() bool {
		return slices.Contains(h.listeners.Active(), "bob")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Close(websocket.StatusNormalClosure, "done"))

	require.Eventually(t, func() bool {
		return !slices.Contains(h.listeners.Active(), "bob")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_NewSessionReplacesOld(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	first := h.dial(t, "bob")
	_ = h.dial(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, _, err := first.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
			break
		}
	}
	assert.Equal(t, []string{"bob"}, h.listeners.Active())
}

func TestGateway_RateLimitClosesConnection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(c *Config) {
		c.RateEvents = 2
		c.RateWindow = time.Minute
	})
	alice := h.dial(t, "alice")

	for range 3 {
		send(t, alice, v1.TypeHistoryFetch, v1.HistoryFetchPayload{With: "bob"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, _, err := alice.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
			return
		}
	}
}

func TestGateway_HTTPRejections(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(c *Config) {
		c.OriginRequired = true
		c.AllowedOrigins = []string{"http://localhost"}
	})

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/ws?user_id=bob", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "missing origin")

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "foreign origin")

	req, err = http.NewRequest(http.MethodGet, h.srv.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing user_id")
}

func TestOriginPatterns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"127.0.0.1", "localhost"}, originPatterns([]string{"http://localhost:3000", "http://127.0.0.1", "https://localhost"}))
	assert.Equal(t, []string{"*"}, originPatterns([]string{"http://localhost", "*"}))
}
