package convert

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// StartWarmer fetches the cache's rates once in the background, then again
// every interval (±20% jitter) until ctx is done, so neither readiness nor
// the first chat lookup waits on a cold cache. It returns immediately; a
// non-positive interval keeps only the startup fetch.
func StartWarmer(ctx context.Context, cache *RateCache, interval time.Duration) {
	go func() {
		if err := cache.Refresh(ctx); err != nil {
			slog.Warn("initial rate fetch failed; lookups will retry", slog.Any("err", err))
		}
		if interval <= 0 {
			return
		}
		for {
			jitterRange := int64(interval / 5)
			var jitter time.Duration
			if jitterRange > 0 {
				//nolint:gosec // G404: scheduling jitter only
				jitter = time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval + jitter):
			}
			if err := cache.Refresh(ctx); err == nil {
				slog.Debug("rate warmer refreshed", slog.Int("currencies", len(cache.Table())))
			}
		}
	}()
	if interval <= 0 {
		slog.Info("rate warmer disabled; fetching rates once at startup")
		return
	}
	slog.Info("rate warmer started", slog.Duration("interval", interval))
}
