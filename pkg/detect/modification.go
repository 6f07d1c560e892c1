package detect

import (
	"regexp"
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
)

var (
	editKeywords  = regexp.MustCompile(`(?i)\b(change|changed|modify|update|correct|correction|actually|instead)\b`)
	whatIfEdit    = regexp.MustCompile(`(?i)\bwhat if\s+(?:i\s+(?:was|were|am)|my)\b`)
	anyNumber     = regexp.MustCompile(`\d`)
	affordability = regexp.MustCompile(`(?i)\b(?:can|could)\s+i\s+(?:pay|afford)\b.*\b(?:per month|a month|monthly|emi)\b`)
)

// shortMessageWords is the longest message a bare number can be a correction in.
const shortMessageWords = 6

// IsModification reports whether the message edits data the customer already gave. It
// requires at least one populated field, and never fires on affordability questions such as
// "can I pay 6000 per month", which belong to the what-if path.
func IsModification(message string, record *domain.ApplicationRecord) bool {
	if record == nil || !record.HasAnyField() {
		return false
	}
	if affordability.MatchString(message) {
		return false
	}
	// "yes that's correct" answers a prompt.
	if r := ClassifyReply(message); r == ReplyAffirm || r == ReplyDecline {
		return false
	}
	if editKeywords.MatchString(message) || whatIfEdit.MatchString(message) {
		return true
	}
	return len(strings.Fields(message)) <= shortMessageWords && anyNumber.MatchString(message)
}

// ExplicitEdit reports whether the message carries an edit keyword or a "what if I was"
// phrasing, as opposed to a bare number.
func ExplicitEdit(message string) bool {
	return editKeywords.MatchString(message) || whatIfEdit.MatchString(message)
}
