// Package testutil holds fake upstream servers shared by package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// MockUpstream is an httptest server with swappable per-path handlers and
// a request counter.
type MockUpstream struct {
	*httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests atomic.Int64
}

// NewMockUpstream starts a server that answers 404 for unknown paths.
func NewMockUpstream(t *testing.T) *MockUpstream {
	t.Helper()
	m := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		m.mu.RLock()
		handler, ok := m.handlers[r.URL.Path]
		m.mu.RUnlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle installs fn for path, replacing any previous handler.
func (m *MockUpstream) Handle(path string, fn http.HandlerFunc) {
	m.mu.Lock()
	m.handlers[path] = fn
	m.mu.Unlock()
}

// Requests reports how many requests the server has seen.
func (m *MockUpstream) Requests() int64 { return m.requests.Load() }

// ECBDocument renders an ECB eurofxref-daily style document for rates.
func ECBDocument(rates map[string]float64) string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">` + "\n")
	b.WriteString("\t<gesmes:subject>Reference rates</gesmes:subject>\n\t<Cube>\n\t\t<Cube time='2026-10-16'>\n")
	for _, code := range codes {
		fmt.Fprintf(&b, "\t\t\t<Cube currency='%s' rate='%g'/>\n", code, rates[code])
	}
	b.WriteString("\t\t</Cube>\n\t</Cube>\n</gesmes:Envelope>\n")
	return b.String()
}

// MockECBRates serves an ECB document for rates at path.
func (m *MockUpstream) MockECBRates(path string, rates map[string]float64) {
	doc := ECBDocument(rates)
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(doc)) //nolint:errcheck // test mock response
	})
}

// MockStatus makes path answer with a bare status code.
func (m *MockUpstream) MockStatus(path string, status int) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(status), status)
	})
}

// MockDuckDuckGo answers Instant Answer queries from answers (keyed by the
// lowercased q parameter). Unknown queries get an empty answer.
func (m *MockUpstream) MockDuckDuckGo(answers map[string]string) {
	m.Handle("/", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"AnswerType": "",
			"Answer":     "",
		}
		if answer, ok := answers[r.URL.Query().Get("q")]; ok {
			response["AnswerType"] = "conversions"
			response["Answer"] = answer
		}
		w.Header().Set("Content-Type", "application/x-javascript")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	})
}
