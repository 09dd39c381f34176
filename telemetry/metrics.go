// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Conversions     *prometheus.CounterVec // by outcome: currency|oracle|unresolved|no_match
	RateRefreshes   *prometheus.CounterVec // by result: success|failure
	OracleQueries   *prometheus.CounterVec // by result: answered|no_answer|error
	ChatReplies     prometheus.Counter
	HandlerPanics   prometheus.Counter
	DroppedMessages prometheus.Counter

	// Histograms (seconds)
	HandleDuration prometheus.Observer

	// Gauges
	CachedCurrencies prometheus.Gauge
	InflightHandlers prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Conversions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "convbot_conversions_total", Help: "Conversion expressions seen in chat, by outcome"}, []string{"outcome"})
		RateRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "convbot_rate_refreshes_total", Help: "Exchange rate table refresh attempts, by result"}, []string{"result"})
		OracleQueries = promauto.NewCounterVec(prometheus.CounterOpts{Name: "convbot_oracle_queries_total", Help: "Conversion oracle lookups, by result"}, []string{"result"})
		ChatReplies = promauto.NewCounter(prometheus.CounterOpts{Name: "convbot_chat_replies_total", Help: "Replies posted to chat"})
		HandlerPanics = promauto.NewCounter(prometheus.CounterOpts{Name: "convbot_handler_panics_total", Help: "Plugin handlers that panicked and were recovered"})
		DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "convbot_dropped_messages_total", Help: "Chat messages dropped because every handler slot was busy"})
		HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "convbot_handle_duration_seconds", Help: "Time spent resolving a conversion", Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5}})
		CachedCurrencies = promauto.NewGauge(prometheus.GaugeOpts{Name: "convbot_cached_currencies", Help: "Currencies in the current exchange table"})
		InflightHandlers = promauto.NewGauge(prometheus.GaugeOpts{Name: "convbot_inflight_handlers", Help: "Chat messages currently being handled"})
	})
}

// ObserveConversion counts a handled conversion expression.
func ObserveConversion(outcome string) {
	if Conversions != nil {
		Conversions.WithLabelValues(outcome).Inc()
	}
}

// ObserveRateRefresh counts a refresh attempt and, on success, records the table size.
func ObserveRateRefresh(ok bool, currencies int) {
	if RateRefreshes == nil {
		return
	}
	if !ok {
		RateRefreshes.WithLabelValues("failure").Inc()
		return
	}
	RateRefreshes.WithLabelValues("success").Inc()
	CachedCurrencies.Set(float64(currencies))
}

// ObserveOracleQuery counts an oracle lookup.
func ObserveOracleQuery(result string) {
	if OracleQueries != nil {
		OracleQueries.WithLabelValues(result).Inc()
	}
}

// IncChatReplies counts a reply sent to chat.
func IncChatReplies() {
	if ChatReplies != nil {
		ChatReplies.Inc()
	}
}

// IncHandlerPanics counts a recovered handler panic.
func IncHandlerPanics() {
	if HandlerPanics != nil {
		HandlerPanics.Inc()
	}
}

// IncDroppedMessages counts a chat message skipped under load.
func IncDroppedMessages() {
	if DroppedMessages != nil {
		DroppedMessages.Inc()
	}
}

// AddInflight moves the in-flight handler gauge by delta.
func AddInflight(delta int) {
	if InflightHandlers != nil {
		InflightHandlers.Add(float64(delta))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
