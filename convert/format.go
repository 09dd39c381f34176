package convert

import (
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxFormattedLen is the longest grouped rendering shown before switching to
// the two significant figure form.
const maxFormattedLen = 12

var (
	numberPrinter = message.NewPrinter(language.English)

	// anything at or above this is far past maxFormattedLen once grouped
	shortFormFloor = decimal.New(1, 15)
)

// FormatNumber renders n with thousands separators. Whole values have no
// fractional part, everything else is rounded to two decimals. Renderings
// longer than 12 characters fall back to two significant figures (1.2e+09).
func FormatNumber(n decimal.Decimal) string {
	f, _ := n.Float64()
	if n.Abs().GreaterThanOrEqual(shortFormFloor) {
		return shortForm(f)
	}

	var s string
	if n.IsInteger() {
		s = numberPrinter.Sprintf("%d", n.IntPart())
	} else {
		s = numberPrinter.Sprintf("%.2f", f)
	}
	if len(s) > maxFormattedLen {
		return shortForm(f)
	}
	return s
}

func shortForm(f float64) string {
	return strconv.FormatFloat(f, 'g', 2, 64)
}
