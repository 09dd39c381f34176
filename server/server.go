// Package server exposes the HTTP surface: health, readiness, metrics, the
// current exchange table and a conversion endpoint that runs text through the
// same pipeline as chat. It injects correlation IDs into request contexts for
// consistent logging.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/convbot/convert"
	"github.com/onnwee/convbot/telemetry"
)

// RateView is the read side of the rate cache.
type RateView interface {
	Table() convert.ExchangeTable
	FetchedAt() time.Time
	Currencies() []string
}

// Converter answers free-form conversion text.
type Converter interface {
	Handle(ctx context.Context, text string) convert.Reply
}

const (
	defaultRateLimitRequests = 30
	defaultRateLimitWindow   = time.Minute
)

// Options configures rate limiting on /convert and CORS for every route.
type Options struct {
	RateLimitEnabled   bool
	RateLimitRequests  int // per client IP per window
	RateLimitWindow    time.Duration
	CORSPermissive     bool // allow any origin
	CORSAllowedOrigins []string
}

// DefaultOptions mirrors the configuration defaults: limiting on at 30
// requests per minute and permissive CORS.
func DefaultOptions() Options {
	return Options{
		RateLimitEnabled:  true,
		RateLimitRequests: defaultRateLimitRequests,
		RateLimitWindow:   defaultRateLimitWindow,
		CORSPermissive:    true,
	}
}

// NewMux returns the HTTP handler with all routes.
// The provided context is used for rate limiter cleanup goroutines lifecycle.
func NewMux(ctx context.Context, opts Options, rates RateView, converter Converter) http.Handler {
	rateLimiter := newIPRateLimiter(ctx, opts.limiterSettings())
	corsCfg := opts.corsSettings()
	handlers := NewHandlers(rates, converter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/rates", handlers.HandleRates)
	// /convert may reach the external oracle, so it is rate limited per client
	mux.Handle("/convert", rateLimitMiddleware(http.HandlerFunc(handlers.HandleConvert), rateLimiter))

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
