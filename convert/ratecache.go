package convert

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/convbot/telemetry"
)

// DefaultStaleAfter is how long a fetched table is served before refetching.
const DefaultStaleAfter = time.Hour

// fetchTimeout bounds a shared fetch, which runs detached from the context of
// whichever caller started it.
const fetchTimeout = 15 * time.Second

// ratePattern pulls code/rate pairs out of the ECB reference document
// (<Cube currency='USD' rate='1.0842'/>) wherever they appear.
var ratePattern = regexp.MustCompile(`currency=["']([A-Za-z]{3})["']\s+rate=["']([\d.]+)["']`)

var errNoRates = errors.New("rate document contained no rates")

// ExchangeTable maps a currency code to the number of units worth one EUR.
// Tables are replaced wholesale and must not be modified once published.
type ExchangeTable map[string]float64

func (t ExchangeTable) rate(code string) (decimal.Decimal, bool) {
	r, ok := t[code]
	if !ok || r <= 0 {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(r), true
}

// Codes returns the table's currencies plus the pivot, sorted.
func (t ExchangeTable) Codes() []string {
	codes := make([]string, 0, len(t)+1)
	codes = append(codes, PivotCurrency)
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParseRates extracts code/rate pairs from a raw rate document. Codes are
// uppercased; EUR and non-positive rates are dropped.
func ParseRates(doc []byte) ExchangeTable {
	table := ExchangeTable{}
	for _, m := range ratePattern.FindAllSubmatch(doc, -1) {
		code := strings.ToUpper(string(m[1]))
		if code == PivotCurrency {
			continue
		}
		rate, err := strconv.ParseFloat(string(m[2]), 64)
		if err != nil || rate <= 0 {
			continue
		}
		table[code] = rate
	}
	return table
}

// RateSource fetches the raw exchange rate document.
type RateSource interface {
	FetchRates(ctx context.Context) ([]byte, error)
}

type rateSnapshot struct {
	table     ExchangeTable
	fetchedAt time.Time
}

// RateCache holds the latest exchange table and refetches it from Source
// once it is older than StaleAfter. A failed refetch keeps serving whatever
// was fetched before, so a cache that never succeeded stays empty.
type RateCache struct {
	Source     RateSource
	StaleAfter time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	snapshot atomic.Pointer[rateSnapshot]
	inflight singleflight.Group
}

// NewRateCache returns a cache over src with the default staleness window.
func NewRateCache(src RateSource) *RateCache {
	return &RateCache{Source: src, StaleAfter: DefaultStaleAfter}
}

func (c *RateCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *RateCache) staleAfter() time.Duration {
	if c.StaleAfter > 0 {
		return c.StaleAfter
	}
	return DefaultStaleAfter
}

func (c *RateCache) fresh(s *rateSnapshot) bool {
	return s != nil && c.now().Sub(s.fetchedAt) <= c.staleAfter()
}

// EnsureFresh returns the current table, refetching first when it is stale.
// If ctx ends while the fetch is in flight it returns whatever is cached; the
// fetch itself carries on for the other waiters.
func (c *RateCache) EnsureFresh(ctx context.Context) ExchangeTable {
	if !c.fresh(c.snapshot.Load()) {
		ch := c.inflight.DoChan("stale", func() (any, error) {
			// a fetch that finished since the check above already did the work
			if c.fresh(c.snapshot.Load()) {
				return nil, nil
			}
			return nil, c.fetchDetached(ctx)
		})
		select {
		case <-ch:
		case <-ctx.Done():
		}
	}
	return c.Table()
}

// Table returns the current table without triggering a fetch.
func (c *RateCache) Table() ExchangeTable {
	if s := c.snapshot.Load(); s != nil {
		return s.table
	}
	return ExchangeTable{}
}

// FetchedAt reports when the current table was fetched; zero if never.
func (c *RateCache) FetchedAt() time.Time {
	if s := c.snapshot.Load(); s != nil {
		return s.fetchedAt
	}
	return time.Time{}
}

// Currencies lists the codes the cached table can convert, EUR included.
// It is empty until the first successful fetch.
func (c *RateCache) Currencies() []string {
	t := c.Table()
	if len(t) == 0 {
		return nil
	}
	return t.Codes()
}

// Refresh fetches a new table regardless of age. Concurrent Refresh callers
// share a single fetch and its result; lookups through EnsureFresh never
// stand in for it.
func (c *RateCache) Refresh(ctx context.Context) error {
	ch := c.inflight.DoChan("refresh", func() (any, error) {
		return nil, c.fetchDetached(ctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchDetached runs fetch on ctx stripped of its cancellation and bounded by
// fetchTimeout instead. Values such as the correlation id carry over.
func (c *RateCache) fetchDetached(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()
	return c.fetch(ctx)
}

func (c *RateCache) fetch(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "convert", "rates.refresh")
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "rates"))

	if c.Source == nil {
		err := errors.New("no rate source configured")
		telemetry.RecordError(span, err)
		return err
	}

	doc, err := c.Source.FetchRates(ctx)
	if err == nil {
		table := ParseRates(doc)
		if len(table) == 0 {
			err = errNoRates
		} else {
			c.snapshot.Store(&rateSnapshot{table: table, fetchedAt: c.now()})
			telemetry.ObserveRateRefresh(true, len(table))
			span.SetAttributes(attribute.Int("rates.count", len(table)))
			telemetry.SetSpanSuccess(span)
			log.Info("exchange rates refreshed", slog.Int("currencies", len(table)))
			return nil
		}
	}

	telemetry.ObserveRateRefresh(false, 0)
	telemetry.RecordError(span, err)
	log.Warn("exchange rate refresh failed", slog.Any("err", err), slog.Int("cached_currencies", len(c.Table())))
	return err
}
