// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (Twitch chat), use ValidateChatReady.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the rate and oracle endpoints.
const (
	DefaultRatesURL  = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"
	DefaultOracleURL = "https://api.duckduckgo.com"
)

type Config struct {
	// Twitch chat
	TwitchBotUsername string
	TwitchOAuthToken  string
	TwitchChannels    []string

	// Upstreams
	RatesURL    string
	OracleURL   string
	HTTPTimeout time.Duration

	// Rate cache
	RatesStaleAfter   time.Duration
	RatesWarmInterval time.Duration

	// Serving
	HTTPAddr              string
	MaxConcurrentHandlers int

	// HTTP surface: per-IP limit on /convert and CORS
	RateLimitEnabled   bool
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSPermissive     bool
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TWITCH_BOT_USERNAME", "")
	v.SetDefault("TWITCH_OAUTH_TOKEN", "")
	v.SetDefault("TWITCH_CHANNELS", "")
	v.SetDefault("RATES_URL", DefaultRatesURL)
	v.SetDefault("ORACLE_URL", DefaultOracleURL)
	v.SetDefault("HTTP_TIMEOUT", "2s")
	v.SetDefault("RATES_STALE_AFTER", "1h")
	v.SetDefault("RATES_WARM_INTERVAL", "0")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("MAX_CONCURRENT_HANDLERS", 16)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_REQUESTS_PER_IP", 30)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("ENV", "")
	v.SetDefault("CORS_PERMISSIVE", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads environment variables (and an optional convbot.yaml in the working
// directory) and applies defaults. It doesn't fail if Twitch creds are missing;
// use ValidateChatReady() when the chat bot is required.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("convbot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		TwitchBotUsername:     strings.ToLower(strings.TrimSpace(v.GetString("TWITCH_BOT_USERNAME"))),
		TwitchOAuthToken:      oauthToken(v.GetString("TWITCH_OAUTH_TOKEN")),
		TwitchChannels:        ParseChannels(v.GetString("TWITCH_CHANNELS")),
		RatesURL:              v.GetString("RATES_URL"),
		OracleURL:             v.GetString("ORACLE_URL"),
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		MaxConcurrentHandlers: v.GetInt("MAX_CONCURRENT_HANDLERS"),
		RateLimitEnabled:      v.GetBool("RATE_LIMIT_ENABLED"),
		RateLimitRequests:     v.GetInt("RATE_LIMIT_REQUESTS_PER_IP"),
		RateLimitWindow:       time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		CORSPermissive:        corsPermissive(v),
		CORSAllowedOrigins:    splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		LogLevel:              strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:             strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	var err error
	if cfg.HTTPTimeout, err = duration(v, "HTTP_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.RatesStaleAfter, err = duration(v, "RATES_STALE_AFTER"); err != nil {
		return nil, err
	}
	if cfg.RatesWarmInterval, err = duration(v, "RATES_WARM_INTERVAL"); err != nil {
		return nil, err
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT %s: must be positive", cfg.HTTPTimeout)
	}
	if cfg.RatesStaleAfter <= 0 {
		return nil, fmt.Errorf("invalid RATES_STALE_AFTER %s: must be positive", cfg.RatesStaleAfter)
	}
	if cfg.MaxConcurrentHandlers < 1 {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_HANDLERS %d: must be at least 1", cfg.MaxConcurrentHandlers)
	}
	if cfg.RateLimitRequests < 1 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS_PER_IP %q: must be at least 1", v.GetString("RATE_LIMIT_REQUESTS_PER_IP"))
	}
	if cfg.RateLimitWindow < time.Second {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS %q: must be at least 1", v.GetString("RATE_LIMIT_WINDOW_SECONDS"))
	}
	return cfg, nil
}

// corsPermissive is true in dev (ENV unset, "dev" or "development") unless
// CORS_PERMISSIVE says otherwise.
func corsPermissive(v *viper.Viper) bool {
	mode := strings.ToLower(strings.TrimSpace(v.GetString("ENV")))
	permissive := mode == "" || mode == "dev" || mode == "development"
	if raw := strings.TrimSpace(v.GetString("CORS_PERMISSIVE")); raw != "" {
		permissive = raw == "1" || strings.EqualFold(raw, "true")
	}
	return permissive
}

// splitList splits a comma separated list, trimming entries and dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// duration parses key as a Go duration; a bare "0" is accepted.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// ParseChannels splits a comma separated channel list, dropping '#' prefixes,
// blanks and duplicates. Channel names are lowercased as Twitch expects.
func ParseChannels(raw string) []string {
	var channels []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		ch := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "#"))
		if ch == "" || seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
	}
	return channels
}

// oauthToken adds the "oauth:" prefix IRC PASS expects when it is missing.
func oauthToken(tok string) string {
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.HasPrefix(tok, "oauth:") {
		return tok
	}
	return "oauth:" + tok
}

// ValidateChatReady checks required fields when the chat bot is enabled.
func (c *Config) ValidateChatReady() error {
	if len(c.TwitchChannels) == 0 || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNELS, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}
