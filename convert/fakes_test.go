package convert

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/convbot/testutil"
)

// fakeSource serves a fixed ECB document, or err when set.
type fakeSource struct {
	mu    sync.Mutex
	doc   []byte
	err   error
	calls atomic.Int64
}

func newFakeSource(rates map[string]float64) *fakeSource {
	return &fakeSource{doc: []byte(testutil.ECBDocument(rates))}
}

func (s *fakeSource) FetchRates(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeOracle records the queries it receives.
type fakeOracle struct {
	answers map[string]string
	err     error
	queries []string
}

func (o *fakeOracle) Query(ctx context.Context, q string) (string, error) {
	o.queries = append(o.queries, q)
	if o.err != nil {
		return "", o.err
	}
	return o.answers[q], nil
}

// staticRates is a RateProvider over a fixed table.
type staticRates ExchangeTable

func (s staticRates) EnsureFresh(context.Context) ExchangeTable { return ExchangeTable(s) }
