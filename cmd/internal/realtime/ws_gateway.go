// Package realtime is the WebSocket entrypoint for live chat.
//
// Each connection belongs to one user (GET /ws?user_id=...). On upgrade the gateway starts
// that user's chat listener through the shared chat.Listeners registry; every batch of unread
// messages the listener surfaces is pushed to the socket as message_new envelopes. Inbound
// message_send and history_fetch envelopes go straight to the conversation store.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/errs"
	"rpms/cmd/internal/ids"
	v1 "rpms/contracts/realtime/v1"
)

const (
	closeGrace      = 1 * time.Second
	maxPingFailures = 3
)

// Gateway upgrades HTTP requests to per-user realtime sessions.
//
// It enforces origin policy, subprotocol selection, rate limits and heartbeats.
type Gateway struct {
	log       *slog.Logger
	store     chat.ConversationStore
	listeners *chat.Listeners

	cfg            Config
	originPatterns []string
}

// NewGateway constructs a gateway over store and the listener registry.
func NewGateway(store chat.ConversationStore, listeners *chat.Listeners, cfg Config, log *slog.Logger) (*Gateway, error) {
	if store == nil || listeners == nil {
		return nil, errs.InvalidInput("realtime.NewGateway", "store and listeners are required")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.normalized()

	return &Gateway{
		log:            log,
		store:          store,
		listeners:      listeners,
		cfg:            cfg,
		originPatterns: originPatterns(cfg.AllowedOrigins),
	}, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the realtime loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	sessionID, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session id")
		return
	}
	log := g.log.With("session_id", sessionID, "user_id", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := newSession(sessionID, userID, conn, g.cfg, cancel, log)

	ackPayload, _ := json.Marshal(v1.HelloAckPayload{SessionID: sessionID, UserID: userID})
	_ = s.enqueue(ctx, g.newEnvelope(v1.TypeHelloAck, ackPayload))

	// Early pushes wait in the send queue until the writer runs.
	if err := s.listen(ctx, g.listeners, g.pushObserver(ctx, s)); err != nil {
		log.Error("ws.listener.start.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "listener failed")
		return
	}
	log.Info("ws.session.open")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed():
				return
			case env := <-s.out:
				if err := writeEnvelope(ctx, conn, env, s.writeTimeout); err != nil {
					log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
					s.close(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					log.Info("ws.ping.fail", "failures", failures, "err", err)
					if failures >= maxPingFailures {
						s.close(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	// A newer session for the same user replaces this session's listener; close this one.
	replacedDone := make(chan struct{})
	go func() {
		defer close(replacedDone)

		select {
		case <-ctx.Done():
		case <-s.closed():
		case <-s.replaced():
			if ctx.Err() == nil {
				log.Info("ws.session.replaced")
				s.close(websocket.StatusPolicyViolation, "session replaced")
			}
		}
	}()

readLoop:
	for ctx.Err() == nil {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				s.close(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				s.close(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				s.close(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, s, "bad_json", "invalid JSON")
				continue readLoop
			default:
				log.Info("ws.read.fail", "err", err)
				s.close(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !s.events.allow(now) {
			g.trySendError(ctx, s, "rate_limited", "too many events")
			s.close(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, s, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeMessageSend:
			if err := g.onMessageSend(ctx, s, env, now); err != nil {
				g.trySendError(ctx, s, "send_failed", err.Error())
			}

		case v1.TypeHistoryFetch:
			if err := g.onHistoryFetch(ctx, s, env); err != nil {
				g.trySendError(ctx, s, "history_failed", err.Error())
			}

		default:
			g.trySendError(ctx, s, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	s.close(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}

	<-replacedDone
	<-s.replaced()
	log.Info("ws.session.close")
}

// pushObserver forwards surfaced messages to the socket.
func (g *Gateway) pushObserver(ctx context.Context, s *session) chat.Observer {
	return chat.ObserverFuncs{
		Messages: func(_ context.Context, _ string, msgs []chat.Message) {
			for _, m := range msgs {
				p, _ := json.Marshal(v1.MessageNewPayload{Message: toWire(m)})
				if !s.push(ctx, g.newEnvelope(v1.TypeMessageNew, p)) {
					s.log.Warn("ws.push.drop", "message_id", m.ID)
				}
			}
		},
		Error: func(_ context.Context, _ string, err error) {
			s.log.Warn("ws.listener.poll.fail", "err", err)
		},
	}
}

// ---- handlers ----

func (g *Gateway) onMessageSend(ctx context.Context, s *session, env v1.Envelope, now time.Time) error {
	var p v1.MessageSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	to := strings.TrimSpace(p.To)
	if to == "" {
		return errors.New("missing to")
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return errors.New("empty text")
	}

	stored, err := g.store.AppendMessage(ctx, chat.AppendMessageInput{
		SenderID:   s.userID,
		ReceiverID: to,
		Content:    text,
		Now:        now,
	})
	if err != nil {
		return fmt.Errorf("store append: %w", err)
	}

	ackPayload, _ := json.Marshal(v1.MessageAckPayload{
		ClientMsgID: p.ClientMsgID,
		MessageID:   stored.ID,
		Seq:         stored.Seq,
	})
	if !s.enqueue(ctx, g.newEnvelope(v1.TypeMessageAck, ackPayload)) {
		return errors.New("backpressure: ack")
	}
	return nil
}

func (g *Gateway) onHistoryFetch(ctx context.Context, s *session, env v1.Envelope) error {
	var p v1.HistoryFetchPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	with := strings.TrimSpace(p.With)
	if with == "" {
		return errors.New("missing with")
	}

	msgs, err := g.store.MessagesBetween(ctx, s.userID, with)
	if err != nil {
		return err
	}

	out := make([]v1.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toWire(m))
	}

	chunkPayload, _ := json.Marshal(v1.HistoryChunkPayload{With: with, Messages: out})
	if !s.enqueue(ctx, g.newEnvelope(v1.TypeHistoryChunk, chunkPayload)) {
		return errors.New("backpressure: history chunk")
	}
	return nil
}

func toWire(m chat.Message) v1.MessagePayload {
	return v1.MessagePayload{
		MessageID: m.ID,
		Seq:       m.Seq,
		From:      m.SenderID,
		To:        m.ReceiverID,
		Text:      m.Content,
		CreatedAt: m.CreatedAt,
		Read:      m.Read,
	}
}

// ---- send helpers ----

func (g *Gateway) trySendError(ctx context.Context, s *session, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	_ = s.enqueue(ctx, g.newEnvelope(v1.TypeError, p))
}

// ---- envelope IO ----

func (g *Gateway) newEnvelope(typ string, payload json.RawMessage) v1.Envelope {
	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		g.log.Warn("ws.envelope_id.fail", "err", err)
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      now,
		Payload: payload,
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return readErrBadJSON
	}
	return readErrUnknown
}
