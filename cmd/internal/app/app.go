// Package app wires the RPMS server runtime: config, logging, stores, delivery transports,
// the alert engine, HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rpms/cmd/internal/alert"
	"rpms/cmd/internal/chat"
	"rpms/cmd/internal/consult"
	"rpms/cmd/internal/metrics"
	"rpms/cmd/internal/notify"
	"rpms/cmd/internal/realtime"
	"rpms/cmd/internal/reminder"
	"rpms/cmd/internal/vitals"
)

// App is the RPMS server runtime. It owns the stores, the listener registry and the HTTP server.
type App struct {
	cfg Config
	log Logger

	registry *prometheus.Registry
	metrics  *metrics.Recorder

	stores    stores
	listeners *chat.Listeners
	notify    *notify.Gateway
	readings  *vitals.Log
	alerts    *alert.Engine
	reminders *reminder.Service
	consults  *consult.Service
	ws        *realtime.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	st, err := newStores(ctx, cfg, log, rec)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  rec,
		stores:   st,
		readings: vitals.NewLog(),
	}
	if err := a.wire(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	a.listeners = chat.NewListeners(a.stores.conversations, a.log,
		chat.WithPollInterval(a.cfg.PollInterval),
		chat.WithListenerMetrics(a.metrics),
	)

	gw, err := newGateway(ctx, a.cfg, a.log, a.metrics)
	if err != nil {
		return err
	}
	a.notify = gw

	a.alerts, err = alert.NewEngine(gw,
		alert.WithLogger(a.log),
		alert.WithMetrics(a.metrics),
		alert.WithReadings(a.readings),
	)
	if err != nil {
		return err
	}

	a.reminders, err = reminder.NewService(gw, a.log)
	if err != nil {
		return err
	}

	a.consults, err = consult.NewService(a.stores.conversations, a.cfg.VideoBaseURL, consult.WithLogger(a.log))
	if err != nil {
		return err
	}

	a.ws, err = realtime.NewGateway(a.stores.conversations, a.listeners, a.cfg.WS, a.log)
	return err
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)
	return WithRequestLogging(WithSecurityHeaders(mux), a.log)
}

// Close stops every listener and releases store resources.
func (a *App) Close() {
	a.listeners.StopAll()
	a.stores.Close()
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"http_url", base,
		"ws_url", wsBaseURL(base)+"/ws",
		"db_enabled", a.stores.pool != nil,
		"email_provider", a.cfg.Notify.EmailProvider,
		"sms_provider", a.cfg.Notify.SMSProvider,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
	}

	// Listeners outlive HTTP requests; stop them before the pool goes away.
	a.Close()

	a.log.Info("server.stopped")
	return err
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
// Wildcard binds are reported as loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
