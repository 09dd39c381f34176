package ecbapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/convbot/testutil"
)

func TestClient_FetchRates(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(m *testutil.MockUpstream)
		wantContain string
		errContains string
		wantErr     bool
	}{
		{
			name: "document returned verbatim",
			setup: func(m *testutil.MockUpstream) {
				m.MockECBRates("/eurofxref-daily.xml", map[string]float64{"USD": 1.0842, "JPY": 162.5})
			},
			wantContain: "<Cube currency='USD' rate='1.0842'/>",
		},
		{
			name: "server error",
			setup: func(m *testutil.MockUpstream) {
				m.MockStatus("/eurofxref-daily.xml", http.StatusServiceUnavailable)
			},
			wantErr:     true,
			errContains: "503",
		},
		{
			name:        "not found",
			setup:       func(m *testutil.MockUpstream) {},
			wantErr:     true,
			errContains: "404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.NewMockUpstream(t)
			tt.setup(m)
			c := &Client{URL: m.URL + "/eurofxref-daily.xml", HTTPClient: m.Client()}

			body, err := c.FetchRates(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FetchRates() error = nil, want error containing %q", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("FetchRates() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchRates() unexpected error = %v", err)
			}
			if !strings.Contains(string(body), tt.wantContain) {
				t.Errorf("FetchRates() body missing %q:\n%s", tt.wantContain, body)
			}
		})
	}
}

func TestClient_FetchRatesTimeout(t *testing.T) {
	m := testutil.NewMockUpstream(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	m.Handle("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	c := &Client{URL: m.URL + "/slow", HTTPClient: &http.Client{Timeout: 50 * time.Millisecond}}
	start := time.Now()
	if _, err := c.FetchRates(context.Background()); err == nil {
		t.Fatal("FetchRates() error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("FetchRates() took %v, timeout not applied", elapsed)
	}
}

func TestClientDefaults(t *testing.T) {
	c := &Client{}
	if c.url() != DailyRatesURL {
		t.Errorf("url() = %q, want %q", c.url(), DailyRatesURL)
	}
	if got := c.http().Timeout; got != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultTimeout)
	}
}
