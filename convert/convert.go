package convert

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/convbot/telemetry"
)

// Reply source labels, also used as metric outcomes.
const (
	SourceCurrency = "currency"
	SourceOracle   = "oracle"
)

// Reply is what the bot should say. The zero Reply means stay silent.
type Reply struct {
	Text string
	// Source names the resolver that produced Text.
	Source string
}

// Silent reports whether there is nothing to say.
func (r Reply) Silent() bool { return r.Text == "" }

// Converter turns chat messages into conversion replies by running the
// extracted request through its resolvers in order.
type Converter struct {
	resolvers []Resolver
}

// NewConverter returns a Converter trying resolvers in the given order.
func NewConverter(resolvers ...Resolver) *Converter {
	return &Converter{resolvers: resolvers}
}

// NewDefaultConverter wires the usual chain: currencies from rates first,
// then the oracle.
func NewDefaultConverter(rates RateProvider, oracle Oracle) *Converter {
	return NewConverter(
		CurrencyResolver{Converter: NewCurrencyConverter(rates)},
		OracleResolver{Oracle: oracle},
	)
}

// Handle answers text, or returns a silent Reply when the message holds no
// conversion or nothing could resolve it.
func (c *Converter) Handle(ctx context.Context, text string) Reply {
	req, ok := Extract(text)
	if !ok {
		telemetry.ObserveConversion("no_match")
		return Reply{}
	}

	ctx, span := telemetry.StartSpan(ctx, "convert", "convert.handle",
		attribute.String("convert.source", req.Source),
		attribute.StringSlice("convert.targets", req.Targets),
	)
	defer span.End()

	var reply Reply
	telemetry.TimeFunc(telemetry.HandleDuration, func() {
		reply = c.resolve(ctx, req)
	})

	outcome := reply.Source
	if reply.Silent() {
		outcome = "unresolved"
	}
	telemetry.ObserveConversion(outcome)
	span.SetAttributes(attribute.String("convert.outcome", outcome))
	telemetry.LoggerWithCorr(ctx).Debug("conversion handled",
		slog.String("query", req.Query()), slog.String("outcome", outcome))
	return reply
}

func (c *Converter) resolve(ctx context.Context, req *ConversionRequest) Reply {
	for _, r := range c.resolvers {
		if reply, ok := r.Resolve(ctx, req); ok && !reply.Silent() {
			return reply
		}
	}
	return Reply{}
}
