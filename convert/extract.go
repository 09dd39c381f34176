package convert

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// expressionPattern captures amount, source unit, connector and target unit(s).
// The amount is matched lazily so a trailing k/m suffix is only taken when the
// rest of the expression needs it ("5k jpy" vs "5 kg").
var expressionPattern = regexp.MustCompile(
	`(?i)((?:\d[\d,. ]*?|\.\d*?)[km]??)` + // amount
		` ?` +
		`((?:(?:square|cubic) )?[a-z.]+)` + // source unit
		` (into|in|to) ` +
		`((?:(?:square|cubic) )?[a-z.]+(?: ?, ?(?:(?:square|cubic) )?[a-z.]+)*)`, // target unit list
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// ConversionRequest is one parsed conversion expression.
type ConversionRequest struct {
	Amount decimal.Decimal
	// Source and Targets are the unit tokens as typed.
	Source  string
	Targets []string
	// Connector is the joining word ("into", "in" or "to").
	Connector string
	// TargetText is the raw target capture, before splitting on commas.
	TargetText string
}

// Query renders the request the way a person would type it, with the
// amount normalized ("5k" becomes "5000").
func (r *ConversionRequest) Query() string {
	return strings.Join([]string{r.Amount.String(), r.Source, r.Connector, r.TargetText}, " ")
}

// Extract finds the first conversion expression in text. It returns false
// when there is nothing actionable: no match, an amount that is not a
// number, or a unit converted into itself.
func Extract(text string) (*ConversionRequest, bool) {
	m := expressionPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	source, connector, targetText := m[2], m[3], m[4]
	if strings.EqualFold(source, targetText) {
		return nil, false
	}

	amount, ok := parseAmount(m[1])
	if !ok {
		return nil, false
	}

	return &ConversionRequest{
		Amount:     amount,
		Source:     source,
		Connector:  strings.ToLower(connector),
		Targets:    splitTargets(targetText),
		TargetText: targetText,
	}, true
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", "")

	multiplier := decimal.Decimal{}
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = thousand
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = million
		s = strings.TrimSuffix(s, "m")
	}
	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Decimal{}, false
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if !multiplier.IsZero() {
		amount = amount.Mul(multiplier)
	}
	if amount.IsInteger() {
		amount = amount.Truncate(0)
	}
	return amount, true
}

func splitTargets(text string) []string {
	if !strings.Contains(text, ",") {
		return []string{text}
	}
	parts := strings.Split(text, ",")
	targets := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			targets = append(targets, p)
		}
	}
	return targets
}
