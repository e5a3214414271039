package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server exports. Each instance has its own
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	MessagesSent     prometheus.Counter
	MessagesDeleted  prometheus.Counter
	MessagesRejected *prometheus.CounterVec
	SignIns          *prometheus.CounterVec
	InboxConnections prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisper_http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whisper_http_request_duration_seconds",
				Help:    "HTTP request latency by route and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisper_messages_sent_total",
			Help: "Total number of anonymous messages accepted",
		}),
		MessagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisper_messages_deleted_total",
			Help: "Total number of messages deleted by their owners",
		}),
		MessagesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisper_messages_rejected_total",
				Help: "Total number of anonymous messages refused, by reason",
			},
			[]string{"reason"},
		),
		SignIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whisper_sign_ins_total",
				Help: "Sign-in attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		InboxConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_inbox_connections",
			Help: "Open realtime inbox connections on this instance",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.MessagesSent,
		m.MessagesDeleted,
		m.MessagesRejected,
		m.SignIns,
		m.InboxConnections,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
