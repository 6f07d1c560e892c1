package detect

import (
	"regexp"

	"github.com/aretw0/lendflow/pkg/extract"
)

var (
	loanKeyword   = regexp.MustCompile(`(?i)\b(loans?|borrow\w*|apply\w*|application|financ\w*|emi)\b`)
	incomeKeyword = regexp.MustCompile(`(?i)\b(salary|income|earn\w*|pay|monthly|ctc|salaried|employed)\b`)
)

// LoanIntent reports whether a message starts a loan journey: a loan keyword, or an amount
// together with an income keyword or a known city.
func LoanIntent(message string) bool {
	if loanKeyword.MatchString(message) {
		return true
	}
	if !extract.HasAmount(message) {
		return false
	}
	if incomeKeyword.MatchString(message) {
		return true
	}
	_, ok := extract.MatchCity(message)
	return ok
}
