// Package metrics exposes scheduler and pipeline activity as Prometheus
// metrics. A Metrics value is an events.Reporter, so it observes the same
// stream the log and terminal see.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ning0612/NuUpdater/internal/events"
)

const namespace = "nuupdater"

// Metrics holds the collectors registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal         *prometheus.CounterVec
	cycleDuration       *prometheus.HistogramVec
	fetchOutcomesTotal  *prometheus.CounterVec
	outputWritesTotal   *prometheus.CounterVec
	cooldownActivations prometheus.Counter
	manualRejected      prometheus.Counter
	countdownSeconds    prometheus.Gauge
	scheduleArmed       prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of finished fetch cycles.",
			},
			[]string{"trigger", "status"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Fetch cycle duration in seconds.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"trigger"},
		),
		fetchOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_outcomes_total",
				Help:      "Per-satellite fetch outcomes by kind.",
			},
			[]string{"outcome"},
		),
		outputWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_writes_total",
				Help:      "Output file writes by result.",
			},
			[]string{"result"},
		),
		cooldownActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldown_activations_total",
			Help:      "Times a 403 or timeout paused the automatic schedule.",
		}),
		manualRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_rejected_total",
			Help:      "Manual triggers rejected because a cycle was in flight.",
		}),
		countdownSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "countdown_seconds",
			Help:      "Seconds until the next automatic cycle.",
		}),
		scheduleArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedule_armed",
			Help:      "1 while the automatic schedule is started.",
		}),
	}

	m.registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.fetchOutcomesTotal,
		m.outputWritesTotal,
		m.cooldownActivations,
		m.manualRejected,
		m.countdownSeconds,
		m.scheduleArmed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Emit implements events.Reporter
func (m *Metrics) Emit(e events.Event) {
	switch e.Kind {
	case events.SchedulerStarted:
		m.scheduleArmed.Set(1)
	case events.SchedulerStopped:
		m.scheduleArmed.Set(0)
		m.countdownSeconds.Set(0)
	case events.Countdown:
		m.countdownSeconds.Set(float64(e.Countdown))
	case events.SatelliteSucceeded, events.SatelliteFailed:
		m.fetchOutcomesTotal.WithLabelValues(string(e.Outcome.Kind)).Inc()
	case events.OutputWritten:
		m.outputWritesTotal.WithLabelValues("written").Inc()
	case events.WriteFailed:
		m.outputWritesTotal.WithLabelValues("failed").Inc()
	case events.CycleCompleted:
		m.cyclesTotal.WithLabelValues(string(e.Trigger), e.Detail).Inc()
		m.cycleDuration.WithLabelValues(string(e.Trigger)).Observe(e.Duration.Seconds())
	case events.CooldownActivated:
		m.cooldownActivations.Inc()
		m.countdownSeconds.Set(float64(e.Countdown))
	case events.ManualRejected:
		m.manualRejected.Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
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
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
