// Package metrics exposes bridge activity as Prometheus metrics. A Collector
// listens on the session event bus, so sessions do not depend on it.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TravelModellingGroup/emmebridge/internal/event"
)

const namespace = "emmebridge"

// OutcomeSuccess is the outcome label of operations that completed.
// Failed operations are labeled with the error kind.
const OutcomeSuccess = "success"

// Collector holds the bridge metrics.
type Collector struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	progress    *prometheus.CounterVec
	prints      *prometheus.CounterVec
	resolved    *prometheus.CounterVec
	active      prometheus.Gauge
	sessions    prometheus.Counter
	fatal       prometheus.Counter
}

// New creates an unregistered Collector.
func New() *Collector {
	return &Collector{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "invocations_total",
				Help:      "Operations run on the modeller, by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "duration_seconds",
				Help:      "Time from request to terminal signal.",
				// Modeller tools run from milliseconds to hours.
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 10),
			},
			[]string{"operation"},
		),
		progress: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "progress_reports_total",
				Help:      "Progress reports received from the modeller.",
			},
			[]string{"operation"},
		),
		prints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "print_messages_total",
				Help:      "Print messages received from the modeller.",
			},
			[]string{"operation"},
		),
		resolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "tools_resolved_total",
				Help:      "Tool-exists acknowledgements received before a run.",
			},
			[]string{"operation"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions that have completed the handshake and are not yet disposed.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Sessions that completed the handshake.",
		}),
		fatal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "fatal_errors_total",
			Help:      "Operations that ended their session.",
		}),
	}
}

// Register registers every metric with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.invocations, c.duration, c.progress, c.prints, c.resolved, c.active, c.sessions, c.fatal,
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Attach subscribes the collector to bus and returns a function that
// unsubscribes it.
func (c *Collector) Attach(bus *event.Bus) func() {
	id := bus.SubscribeAll(c.Observe)
	return func() { bus.Unsubscribe(id) }
}

// Observe updates metrics for one event. Unrelated events are ignored.
func (c *Collector) Observe(e event.Event) {
	switch ev := e.(type) {
	case event.SessionReadyEvent:
		c.sessions.Inc()
		c.active.Inc()
	case event.SessionDisposedEvent:
		c.active.Dec()
	case event.OperationProgressEvent:
		c.progress.WithLabelValues(ev.Operation).Inc()
	case event.OperationPrintEvent:
		c.prints.WithLabelValues(ev.Operation).Inc()
	case event.ToolResolvedEvent:
		c.resolved.WithLabelValues(ev.Operation).Inc()
	case event.OperationCompletedEvent:
		c.invocations.WithLabelValues(ev.Operation, OutcomeSuccess).Inc()
		c.duration.WithLabelValues(ev.Operation).Observe(ev.Duration.Seconds())
	case event.OperationFailedEvent:
		c.invocations.WithLabelValues(ev.Operation, ev.Kind).Inc()
		c.duration.WithLabelValues(ev.Operation).Observe(ev.Duration.Seconds())
		if ev.Fatal {
			c.fatal.Inc()
		}
	}
}

// Serve exposes gatherer on /metrics at addr until ctx is done. It returns
// the address actually bound, which differs from addr when addr has port 0.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) (string, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return ln.Addr().String(), nil
}
