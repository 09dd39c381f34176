package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/convbot/chat"
	"github.com/onnwee/convbot/config"
	"github.com/onnwee/convbot/convert"
	"github.com/onnwee/convbot/ddgapi"
	"github.com/onnwee/convbot/ecbapi"
	"github.com/onnwee/convbot/server"
	"github.com/onnwee/convbot/telemetry"
)

// app carries state shared by the subcommands.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "convbot",
		Short: "Twitch chat bot answering unit and currency conversions",
		Long: `convbot watches Twitch chat for expressions like "100 usd to eur" or
"5k jpy into usd, gbp" and replies with the converted amounts. Currencies use
the ECB daily reference rates; other units are answered by DuckDuckGo.

Without a subcommand it runs the bot and its HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				cfg.LogLevel = lvl
			}
			a.cfg = cfg
			setupLogging(cfg.LogLevel, cfg.LogFormat)
			telemetry.Init()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error { return a.run(cmd.Context()) },
	}
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the chat bot and HTTP server (default)",
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, args []string) error { return a.run(cmd.Context()) },
		},
		a.convertCmd(),
		a.ratesCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "convbot %s (commit %s)\n", version, commit)
			},
		},
	)
	return root
}

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: a.cfg.HTTPTimeout}
}

func (a *app) newRateCache() *convert.RateCache {
	cache := convert.NewRateCache(&ecbapi.Client{URL: a.cfg.RatesURL, HTTPClient: a.httpClient()})
	cache.StaleAfter = a.cfg.RatesStaleAfter
	return cache
}

func (a *app) newOracle() convert.Oracle {
	return &ddgapi.Client{BaseURL: a.cfg.OracleURL, HTTPClient: a.httpClient()}
}

func (a *app) serverOptions() server.Options {
	return server.Options{
		RateLimitEnabled:   a.cfg.RateLimitEnabled,
		RateLimitRequests:  a.cfg.RateLimitRequests,
		RateLimitWindow:    a.cfg.RateLimitWindow,
		CORSPermissive:     a.cfg.CORSPermissive,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
	}
}

// startRates builds the shared rate cache and converter and starts the
// warmer, which fetches rates once right away.
func (a *app) startRates(ctx context.Context) (*convert.RateCache, *convert.Converter) {
	cache := a.newRateCache()
	converter := convert.NewDefaultConverter(cache, a.newOracle())
	convert.StartWarmer(ctx, cache, a.cfg.RatesWarmInterval)
	return cache, converter
}

// run starts the rate warmer, HTTP server and chat bot and blocks until a
// shutdown signal or until the server or bot fails.
func (a *app) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("convbot", version)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdown()

	cache, converter := a.startRates(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, a.cfg.HTTPAddr, server.NewMux(gctx, a.serverOptions(), cache, converter))
	})

	if err := a.cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat bot disabled", slog.Any("err", err))
	} else {
		bot := &chat.Bot{
			Username:      a.cfg.TwitchBotUsername,
			Token:         a.cfg.TwitchOAuthToken,
			Channels:      a.cfg.TwitchChannels,
			Plugins:       []chat.Plugin{chat.ConversionPlugin{Converter: converter}},
			MaxConcurrent: a.cfg.MaxConcurrentHandlers,
		}
		slog.Info("starting chat bot", slog.Int("channel_count", len(bot.Channels)), slog.Any("channels", bot.Channels))
		g.Go(func() error { return bot.Run(gctx) })
	}

	err = g.Wait()
	slog.Info("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <text>",
		Short: "Answer one message the way the bot would",
		Example: `  convbot convert "100 usd to eur"
  convbot convert 5k jpy into usd, gbp`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noOracle, _ := cmd.Flags().GetBool("no-oracle")
			var oracle convert.Oracle
			if !noOracle {
				oracle = a.newOracle()
			}
			converter := convert.NewDefaultConverter(a.newRateCache(), oracle)

			reply := converter.Handle(commandContext(cmd), strings.Join(args, " "))
			if !reply.Silent() {
				fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			}
			return nil
		},
	}
	cmd.Flags().Bool("no-oracle", false, "only answer currency conversions")
	return cmd
}

func (a *app) ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Fetch and print the current exchange table (units per EUR)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := a.newRateCache()
			if err := cache.Refresh(commandContext(cmd)); err != nil {
				return fmt.Errorf("fetch rates: %w", err)
			}
			table := cache.Table()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fetched %s\n", cache.FetchedAt().UTC().Format(time.RFC3339))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, code := range cache.Currencies() {
				rate := 1.0
				if code != convert.PivotCurrency {
					rate = table[code]
				}
				fmt.Fprintf(tw, "%s\t%s\n", code, strconv.FormatFloat(rate, 'f', -1, 64))
			}
			return tw.Flush()
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
