package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/itick-stream/internal/connection"
	"github.com/rickgao/itick-stream/internal/protocol"
	"github.com/rickgao/itick-stream/internal/queue"
)

const namespace = "itick"

// Collector records session lifecycle metrics. It implements
// connection.Observer and owns its registry.
type Collector struct {
	registry *prometheus.Registry
	labels   prometheus.Labels

	status           prometheus.Gauge
	attempts         prometheus.Gauge
	dials            prometheus.Counter
	opens            prometheus.Counter
	closes           prometheus.Counter
	reconnects       prometheus.Counter
	limitReached     prometheus.Counter
	messages         prometheus.Counter
	messageBytes     prometheus.Counter
	sendFailures     *prometheus.CounterVec
	snapshotsFetched prometheus.Counter
	snapshotsFailed  prometheus.Counter
}

var _ connection.Observer = (*Collector)(nil)

// NewCollector creates a collector labelled with the subscribed symbol.
func NewCollector(symbol string) *Collector {
	labels := prometheus.Labels{"symbol": symbol}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		labels:   labels,
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "status",
			Help:        "Session status (0=disconnected 1=connecting 2=connected 3=authenticating 4=subscribed 5=closing).",
			ConstLabels: labels,
		}),
		attempts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "reconnect_attempts",
			Help:        "Current reconnect attempt counter.",
			ConstLabels: labels,
		}),
		dials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "dials_total",
			Help:        "Connection attempts started.",
			ConstLabels: labels,
		}),
		opens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "opens_total",
			Help:        "Connections established.",
			ConstLabels: labels,
		}),
		closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "closes_total",
			Help:        "Established connections that closed.",
			ConstLabels: labels,
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "reconnects_scheduled_total",
			Help:        "Reconnects scheduled by the policy.",
			ConstLabels: labels,
		}),
		limitReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "limit_reached_total",
			Help:        "Times the reconnect limit halted the session.",
			ConstLabels: labels,
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "messages_total",
			Help:        "Inbound frames received.",
			ConstLabels: labels,
		}),
		messageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "message_bytes_total",
			Help:        "Inbound payload bytes received.",
			ConstLabels: labels,
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "send_failures_total",
			Help:        "Outbound control messages that failed to send.",
			ConstLabels: labels,
		}, []string{"action"}),
		snapshotsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "snapshots_total",
			Help:      "REST snapshots fetched.",
		}),
		snapshotsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "snapshot_failures_total",
			Help:      "REST snapshot handler failures.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.status, c.attempts, c.dials, c.opens, c.closes, c.reconnects,
		c.limitReached, c.messages, c.messageBytes, c.sendFailures,
		c.snapshotsFetched, c.snapshotsFailed,
	)
	return c
}

// WatchQueue exports the session's event queue counters, read on each
// scrape. Call it once per collector.
func (c *Collector) WatchQueue(stats func() queue.Stats) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "event_queue_depth",
			Help:        "Events waiting for the session loop.",
			ConstLabels: c.labels,
		}, func() float64 { return float64(stats().Len) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "event_queue_capacity",
			Help:        "Current ring size of the session event queue.",
			ConstLabels: c.labels,
		}, func() float64 { return float64(stats().Capacity) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "events_total",
			Help:        "Events handled by the session loop.",
			ConstLabels: c.labels,
		}, func() float64 { return float64(stats().Popped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "session",
			Name:        "event_queue_resizes_total",
			Help:        "Times the session event queue doubled.",
			ConstLabels: c.labels,
		}, func() float64 { return float64(stats().Resizes) }),
	)
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StatusChanged implements connection.Observer.
func (c *Collector) StatusChanged(s connection.Status) { c.status.Set(float64(s)) }

// AttemptsChanged implements connection.Observer.
func (c *Collector) AttemptsChanged(n int) { c.attempts.Set(float64(n)) }

// DialStarted implements connection.Observer.
func (c *Collector) DialStarted() { c.dials.Inc() }

// Opened implements connection.Observer.
func (c *Collector) Opened() { c.opens.Inc() }

// Disconnected implements connection.Observer.
func (c *Collector) Disconnected() { c.closes.Inc() }

// ReconnectScheduled implements connection.Observer.
func (c *Collector) ReconnectScheduled(connection.ReconnectAttempt) { c.reconnects.Inc() }

// MessageReceived implements connection.Observer.
func (c *Collector) MessageReceived(size int) {
	c.messages.Inc()
	c.messageBytes.Add(float64(size))
}

// SendFailed implements connection.Observer.
func (c *Collector) SendFailed(action protocol.Action) {
	c.sendFailures.WithLabelValues(string(action)).Inc()
}

// LimitReached implements connection.Observer.
func (c *Collector) LimitReached() { c.limitReached.Inc() }

// SnapshotFetched counts a REST snapshot; ok=false means the handler failed.
func (c *Collector) SnapshotFetched(ok bool) {
	if ok {
		c.snapshotsFetched.Inc()
		return
	}
	c.snapshotsFailed.Inc()
}
