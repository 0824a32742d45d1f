package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type moduleMetrics struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration prometheus.Histogram
	bytesForwarded     prometheus.Counter
	execErrorsTotal    *prometheus.CounterVec
	activeInvocations  prometheus.Gauge

	chatRunTotal    *prometheus.CounterVec
	chatRunDuration *prometheus.HistogramVec

	historyLoadDuration prometheus.Histogram
	historySaveDuration prometheus.Histogram

	memorySearchDuration prometheus.Histogram
	memoryWriteDuration  prometheus.Histogram
	memoryEntriesTotal   prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			invocationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "funcexec_invocations_total",
					Help: "Function tag invocations by outcome.",
				},
				[]string{"status"},
			),
			invocationDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "funcexec_invocation_duration_seconds",
					Help:    "Time from spawn to process exit.",
					Buckets: prometheus.DefBuckets,
				},
			),
			bytesForwarded: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "funcexec_bytes_forwarded_total",
					Help: "Tag body bytes written to spawned processes.",
				},
			),
			execErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "funcexec_errors_total",
					Help: "Non-fatal executor errors by kind.",
				},
				[]string{"kind"},
			),
			activeInvocations: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "funcexec_active_invocations",
					Help: "Spawned processes not yet awaited.",
				},
			),
			chatRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_run_total",
					Help: "Chat completions by provider and status.",
				},
				[]string{"provider", "status"},
			),
			chatRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chat_run_duration_seconds",
					Help:    "Chat completion duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			historyLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "history_load_duration_seconds",
					Help:    "History load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			historySaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "history_save_duration_seconds",
					Help:    "History append duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memorySearchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Memory recall duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_write_duration_seconds",
					Help:    "Memorize duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryEntriesTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_entries_total",
					Help: "Sentences stored in the memory database.",
				},
			),
		}

		prometheus.MustRegister(
			m.invocationsTotal,
			m.invocationDuration,
			m.bytesForwarded,
			m.execErrorsTotal,
			m.activeInvocations,
			m.chatRunTotal,
			m.chatRunDuration,
			m.historyLoadDuration,
			m.historySaveDuration,
			m.memorySearchDuration,
			m.memoryWriteDuration,
			m.memoryEntriesTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr is a no-op.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics listener failed")
		}
	}()
}

func RecordInvocationStart() {
	m := getMetrics()
	m.invocationsTotal.WithLabelValues("spawned").Inc()
	m.activeInvocations.Inc()
}

func RecordInvocationEnd(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.invocationsTotal.WithLabelValues(status).Inc()
	m.invocationDuration.Observe(duration.Seconds())
	m.activeInvocations.Dec()
}

func RecordSpawnFailure() {
	m := getMetrics()
	m.invocationsTotal.WithLabelValues("spawn_failed").Inc()
	m.execErrorsTotal.WithLabelValues("spawn").Inc()
}

func RecordExecError(kind string) {
	getMetrics().execErrorsTotal.WithLabelValues(kind).Inc()
}

func RecordBytesForwarded(n int) {
	getMetrics().bytesForwarded.Add(float64(n))
}

func RecordChatRun(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.chatRunTotal.WithLabelValues(provider, status).Inc()
	m.chatRunDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordHistoryLoad(duration time.Duration) {
	getMetrics().historyLoadDuration.Observe(duration.Seconds())
}

func RecordHistorySave(duration time.Duration) {
	getMetrics().historySaveDuration.Observe(duration.Seconds())
}

func RecordMemorySearch(duration time.Duration) {
	getMetrics().memorySearchDuration.Observe(duration.Seconds())
}

func RecordMemoryWrite(duration time.Duration) {
	getMetrics().memoryWriteDuration.Observe(duration.Seconds())
}

func SetMemoryEntries(total int) {
	getMetrics().memoryEntriesTotal.Set(float64(total))
}
