// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/model"
)

const namespace = "whistle"

// Recorder holds the pipeline's Prometheus collectors on a private
// registry. All methods are safe on a nil *Recorder.
type Recorder struct {
	registry *prometheus.Registry

	entries         *prometheus.CounterVec
	anomalies       prometheus.Counter
	learned         prometheus.Counter
	alertFailures   prometheus.Counter
	persistFailures prometheus.Counter
	classifyLatency prometheus.Histogram
	rules           prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		entries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Log entries processed, by the stage that decided them.",
		}, []string{"stage"}),
		anomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Entries whose final verdict was anomalous.",
		}),
		learned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_learned_total",
			Help:      "Ignore rules learned from classifier suggestions.",
		}),
		alertFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_failures_total",
			Help:      "Anomaly notifications that could not be delivered.",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed attempts to save learned rules.",
		}),
		classifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_duration_seconds",
			Help:      "Time spent waiting for the classifier.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		rules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules",
			Help:      "Ignore rules currently active.",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Observe records one processed entry.
func (r *Recorder) Observe(oc model.Outcome) {
	if r == nil {
		return
	}
	r.entries.WithLabelValues(string(oc.Stage)).Inc()
	if oc.Verdict.IsAnomaly {
		r.anomalies.Inc()
	}
	if oc.Learned != nil {
		r.learned.Inc()
	}
}

// ObserveClassify records classifier latency.
func (r *Recorder) ObserveClassify(d time.Duration) {
	if r == nil {
		return
	}
	r.classifyLatency.Observe(d.Seconds())
}

// AlertFailed counts an undelivered notification.
func (r *Recorder) AlertFailed() {
	if r == nil {
		return
	}
	r.alertFailures.Inc()
}

// PersistFailed counts a failed rule save.
func (r *Recorder) PersistFailed() {
	if r == nil {
		return
	}
	r.persistFailures.Inc()
}

// SetRules records the size of the active rule set.
func (r *Recorder) SetRules(n int) {
	if r == nil {
		return
	}
	r.rules.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
