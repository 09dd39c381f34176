package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var httpSurfaceKeys = []string{
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS_PER_IP", "RATE_LIMIT_WINDOW_SECONDS",
	"ENV", "CORS_PERMISSIVE", "CORS_ALLOWED_ORIGINS",
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TWITCH_BOT_USERNAME", "TWITCH_OAUTH_TOKEN", "TWITCH_CHANNELS",
		"RATES_URL", "ORACLE_URL", "HTTP_TIMEOUT", "RATES_STALE_AFTER",
		"RATES_WARM_INTERVAL", "HTTP_ADDR", "MAX_CONCURRENT_HANDLERS",
	} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RatesURL != DefaultRatesURL {
		t.Errorf("RatesURL = %q", cfg.RatesURL)
	}
	if cfg.OracleURL != DefaultOracleURL {
		t.Errorf("OracleURL = %q", cfg.OracleURL)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Errorf("HTTPTimeout = %v, want 2s", cfg.HTTPTimeout)
	}
	if cfg.RatesStaleAfter != time.Hour {
		t.Errorf("RatesStaleAfter = %v, want 1h", cfg.RatesStaleAfter)
	}
	if cfg.RatesWarmInterval != 0 {
		t.Errorf("RatesWarmInterval = %v, want disabled", cfg.RatesWarmInterval)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MaxConcurrentHandlers != 16 {
		t.Errorf("MaxConcurrentHandlers = %d, want 16", cfg.MaxConcurrentHandlers)
	}
	if len(cfg.TwitchChannels) != 0 {
		t.Errorf("TwitchChannels = %v, want none", cfg.TwitchChannels)
	}
}

func TestLoadHTTPSurfaceDefaults(t *testing.T) {
	for _, key := range httpSurfaceKeys {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitRequests != 30 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %v %d per %v, want enabled 30 per 1m", cfg.RateLimitEnabled, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if !cfg.CORSPermissive || len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORS = permissive %v origins %v, want permissive with none", cfg.CORSPermissive, cfg.CORSAllowedOrigins)
	}
}

func TestLoadHTTPSurfaceOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("ENV", "production")
	t.Setenv("CORS_PERMISSIVE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dash.example.com, ,*.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RateLimitEnabled || cfg.RateLimitRequests != 5 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = %v %d per %v", cfg.RateLimitEnabled, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if cfg.CORSPermissive {
		t.Error("ENV=production should restrict CORS")
	}
	if want := []string{"https://dash.example.com", "*.example.com"}; !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}

	t.Setenv("CORS_PERMISSIVE", "true")
	if cfg, _ = Load(); !cfg.CORSPermissive {
		t.Error("CORS_PERMISSIVE=true should win over ENV")
	}
}

func TestLoadHTTPSurfaceFromFile(t *testing.T) {
	for _, key := range httpSurfaceKeys {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	file := "RATE_LIMIT_REQUESTS_PER_IP: 7\nENV: production\nCORS_ALLOWED_ORIGINS: https://dash.example.com\n"
	if err := os.WriteFile(filepath.Join(dir, "convbot.yaml"), []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RateLimitRequests != 7 {
		t.Errorf("RateLimitRequests = %d, want 7 from convbot.yaml", cfg.RateLimitRequests)
	}
	if cfg.CORSPermissive {
		t.Error("ENV from convbot.yaml should restrict CORS")
	}
	if want := []string{"https://dash.example.com"}; !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}

	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "9")
	if cfg, _ = Load(); cfg.RateLimitRequests != 9 {
		t.Errorf("RateLimitRequests = %d, want the environment to win", cfg.RateLimitRequests)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", "#Foo, bar,,foo")
	t.Setenv("TWITCH_BOT_USERNAME", "ConvBot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "abc123")
	t.Setenv("HTTP_TIMEOUT", "500ms")
	t.Setenv("RATES_STALE_AFTER", "30m")
	t.Setenv("RATES_WARM_INTERVAL", "45m")
	t.Setenv("MAX_CONCURRENT_HANDLERS", "4")
	t.Setenv("RATES_URL", "http://rates.local/daily.xml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if want := []string{"foo", "bar"}; !reflect.DeepEqual(cfg.TwitchChannels, want) {
		t.Errorf("TwitchChannels = %v, want %v", cfg.TwitchChannels, want)
	}
	if cfg.TwitchBotUsername != "convbot" {
		t.Errorf("TwitchBotUsername = %q", cfg.TwitchBotUsername)
	}
	if cfg.TwitchOAuthToken != "oauth:abc123" {
		t.Errorf("TwitchOAuthToken = %q", cfg.TwitchOAuthToken)
	}
	if cfg.HTTPTimeout != 500*time.Millisecond {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.RatesStaleAfter != 30*time.Minute {
		t.Errorf("RatesStaleAfter = %v", cfg.RatesStaleAfter)
	}
	if cfg.RatesWarmInterval != 45*time.Minute {
		t.Errorf("RatesWarmInterval = %v", cfg.RatesWarmInterval)
	}
	if cfg.MaxConcurrentHandlers != 4 {
		t.Errorf("MaxConcurrentHandlers = %d", cfg.MaxConcurrentHandlers)
	}
	if cfg.RatesURL != "http://rates.local/daily.xml" {
		t.Errorf("RatesURL = %q", cfg.RatesURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"HTTP_TIMEOUT":               "soon",
		"RATES_STALE_AFTER":          "-1h",
		"RATES_WARM_INTERVAL":        "hourly",
		"MAX_CONCURRENT_HANDLERS":    "0",
		"RATE_LIMIT_REQUESTS_PER_IP": "-4",
		"RATE_LIMIT_WINDOW_SECONDS":  "nope",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", key, value)
			}
		})
	}
}

func TestOAuthTokenKeepsPrefix(t *testing.T) {
	if got := oauthToken(" oauth:xyz "); got != "oauth:xyz" {
		t.Errorf("oauthToken() = %q", got)
	}
	if got := oauthToken(""); got != "" {
		t.Errorf("oauthToken(empty) = %q", got)
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_CHANNELS", "chan")
	t.Setenv("TWITCH_BOT_USERNAME", "bot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:token")
	cfg, _ := Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}

	t.Setenv("TWITCH_CHANNELS", " , #")
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err == nil {
		t.Errorf("expected error when no usable channel is configured")
	}
}
