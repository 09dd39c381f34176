package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/convbot/telemetry"
)

// Resolver is one step of the resolution chain. It returns false when it
// has no answer and the next resolver should be tried.
type Resolver interface {
	Resolve(ctx context.Context, req *ConversionRequest) (Reply, bool)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, req *ConversionRequest) (Reply, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, req *ConversionRequest) (Reply, bool) {
	return f(ctx, req)
}

// CurrencyResolver answers requests whose units are currencies in the
// exchange table. With several targets, only the ones that convert are
// listed; if none do, it passes.
type CurrencyResolver struct {
	Converter *CurrencyConverter
}

// Resolve converts req.Amount into each target currency.
func (r CurrencyResolver) Resolve(ctx context.Context, req *ConversionRequest) (Reply, bool) {
	from := NormalizeCode(req.Source)
	results := make([]string, 0, len(req.Targets))
	for _, target := range req.Targets {
		out, err := r.Converter.Convert(ctx, req.Amount, req.Source, target)
		if err != nil {
			if !errors.Is(err, ErrUnknownCurrency) {
				telemetry.LoggerWithCorr(ctx).Debug("currency conversion skipped",
					slog.String("from", from), slog.String("to", target), slog.Any("err", err))
			}
			continue
		}
		results = append(results, FormatNumber(out)+" "+NormalizeCode(target))
	}
	if len(results) == 0 {
		return Reply{}, false
	}
	return Reply{
		Text:   fmt.Sprintf("%s %s = %s", FormatNumber(req.Amount), from, strings.Join(results, ", ")),
		Source: SourceCurrency,
	}, true
}

// Oracle answers conversion queries it can understand. An empty answer
// with a nil error means it had nothing to say.
type Oracle interface {
	Query(ctx context.Context, query string) (string, error)
}

// OracleResolver hands the normalized query to an external Oracle and
// relays its answer verbatim.
type OracleResolver struct {
	Oracle Oracle
}

// Resolve asks the oracle. Failures are logged and treated as no answer.
func (r OracleResolver) Resolve(ctx context.Context, req *ConversionRequest) (Reply, bool) {
	if r.Oracle == nil {
		return Reply{}, false
	}
	query := req.Query()
	ctx, span := telemetry.StartSpan(ctx, "convert", "oracle.query", attribute.String("oracle.query", query))
	defer span.End()

	answer, err := r.Oracle.Query(ctx, query)
	switch {
	case err != nil:
		telemetry.ObserveOracleQuery("error")
		telemetry.RecordError(span, err)
		telemetry.LoggerWithCorr(ctx).Warn("conversion oracle request failed",
			slog.String("query", query), slog.Any("err", err))
		return Reply{}, false
	case answer == "":
		telemetry.ObserveOracleQuery("no_answer")
		return Reply{}, false
	}
	telemetry.ObserveOracleQuery("answered")
	telemetry.SetSpanSuccess(span)
	return Reply{Text: answer, Source: SourceOracle}, true
}
