// Package metrics exposes Prometheus collectors for the messaging and alerting subsystem.
//
// A nil *Recorder is valid and records nothing, so components can take it as an optional dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rpms"

// Delivery result labels.
const (
	ResultOK   = "ok"
	ResultFail = "fail"
)

// Recorder groups all collectors registered by the process.
type Recorder struct {
	messagesAppended prometheus.Counter
	unreadSurfaced   prometheus.Counter
	pollErrors       prometheus.Counter
	listenersActive  prometheus.Gauge
	alertsFired      *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
}

// New registers the collectors on reg. Passing a fresh prometheus.NewRegistry() keeps tests isolated.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesAppended: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_appended_total",
			Help:      "Messages appended to the conversation store.",
		}),
		unreadSurfaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "unread_surfaced_total",
			Help:      "Unread messages collected and marked read by listeners or clients.",
		}),
		pollErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "listener_poll_errors_total",
			Help:      "Store errors observed by listener polls.",
		}),
		listenersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "listeners_active",
			Help:      "Listener goroutines currently running.",
		}),
		alertsFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "fired_total",
			Help:      "Alerts dispatched, by trigger kind.",
		}, []string{"kind"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Delivery attempts, by channel and result.",
		}, []string{"channel", "result"}),
	}
}

func (r *Recorder) MessageAppended() {
	if r == nil {
		return
	}
	r.messagesAppended.Inc()
}

func (r *Recorder) UnreadSurfaced(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.unreadSurfaced.Add(float64(n))
}

func (r *Recorder) PollError() {
	if r == nil {
		return
	}
	r.pollErrors.Inc()
}

func (r *Recorder) ListenerStarted() {
	if r == nil {
		return
	}
	r.listenersActive.Inc()
}

func (r *Recorder) ListenerStopped() {
	if r == nil {
		return
	}
	r.listenersActive.Dec()
}

func (r *Recorder) AlertFired(kind string) {
	if r == nil {
		return
	}
	r.alertsFired.WithLabelValues(kind).Inc()
}

// Delivery records one delivery attempt on channel; err == nil counts as ok.
func (r *Recorder) Delivery(channel string, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFail
	}
	r.deliveries.WithLabelValues(channel, result).Inc()
}
