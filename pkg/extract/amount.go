package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary token found in a message. Offsets index the lower-cased message.
type Amount struct {
	Value float64
	Raw   string
	Unit  string
	Start int
	End   int
}

var (
	amountPattern = regexp.MustCompile(`\b(\d+(?:,\d{2,3})*(?:\.\d+)?)\s*(lakhs?|lacs?|crores?|cr|k|l)?\b`)

	salaryBefore  = regexp.MustCompile(`\b(salary|income|earn\w*|pay|paid|monthly|ctc|take[- ]home)\b`)
	salaryAfter   = regexp.MustCompile(`^\s*(?:/-\s*)?(?:per month|a month|monthly|pm|/month)\b`)
	annualBefore  = regexp.MustCompile(`\b(annual|yearly|per annum)\b`)
	annualAfter   = regexp.MustCompile(`^\s*(?:/-\s*)?(?:per (?:year|annum)|a year|annual(?:ly)?|yearly|p\.?a\b|/year)`)
	loanKeywords  = regexp.MustCompile(`\b(loan|borrow\w*|amount|need|want|principal)\b`)
	unitMultiples = map[string]int64{
		"lakh": 100000, "lakhs": 100000, "lac": 100000, "lacs": 100000, "l": 100000,
		"crore": 10000000, "crores": 10000000, "cr": 10000000,
		"k": 1000,
	}
)

// keywordWindow is how far back (in bytes) a keyword may sit and still qualify the amount.
const keywordWindow = 30

// minBareDigits is the number of digits a unit-less number needs to count as an amount.
const minBareDigits = 6

// Amounts returns every monetary token in message, in order of appearance.
// Unit-less numbers need at least six digits unless an income keyword sits right before them.
func Amounts(message string) []Amount {
	lower := strings.ToLower(message)
	matches := amountPattern.FindAllStringSubmatchIndex(lower, -1)

	var out []Amount
	prevEnd := 0
	for _, m := range matches {
		digits := strings.ReplaceAll(lower[m[2]:m[3]], ",", "")
		unit := ""
		if m[4] >= 0 {
			unit = lower[m[4]:m[5]]
		}

		if unit == "" {
			whole, _, _ := strings.Cut(digits, ".")
			if len(whole) < minBareDigits && !salaryBefore.MatchString(before(lower, m[0], prevEnd)) {
				continue
			}
		}

		d, err := decimal.NewFromString(digits)
		if err != nil {
			continue
		}
		if mult, ok := unitMultiples[unit]; ok {
			d = d.Mul(decimal.NewFromInt(mult))
		}

		out = append(out, Amount{
			Value: d.Round(2).InexactFloat64(),
			Raw:   lower[m[0]:m[1]],
			Unit:  unit,
			Start: m[0],
			End:   m[1],
		})
		prevEnd = m[1]
	}
	return out
}

// ParseAmount parses a single amount such as "6k", "1.5 lakh" or "250000". Unlike Amounts
// it accepts short unit-less numbers.
func ParseAmount(s string) (float64, bool) {
	m := amountPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	if mult, ok := unitMultiples[m[2]]; ok {
		d = d.Mul(decimal.NewFromInt(mult))
	}
	return d.Round(2).InexactFloat64(), true
}

// HasAmount reports whether message carries at least one monetary token.
func HasAmount(message string) bool {
	return len(Amounts(message)) > 0
}

// before returns the text preceding start, bounded by the keyword window and the end of the
// previous amount.
func before(lower string, start, prevEnd int) string {
	from := max(start-keywordWindow, prevEnd, 0)
	return lower[from:start]
}

// after returns the text following end, up to the next amount or the keyword window.
func after(lower string, end, nextStart int) string {
	to := min(end+keywordWindow, len(lower))
	if nextStart > end && nextStart < to {
		to = nextStart
	}
	return lower[end:to]
}

// monthly converts an annual figure into a monthly one.
func monthly(v float64) float64 {
	return decimal.NewFromFloat(v).Div(decimal.NewFromInt(12)).Round(2).InexactFloat64()
}
