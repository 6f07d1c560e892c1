package detect

import (
	"regexp"

	"github.com/aretw0/lendflow/pkg/extract"
)

// QuestionKind classifies an explanation question.
type QuestionKind string

const (
	QuestionNone          QuestionKind = ""
	QuestionHypotheticEMI QuestionKind = "hypothetical_emi"
	QuestionEMIFormula    QuestionKind = "emi_explanation"
	QuestionDecision      QuestionKind = "decision_explanation"
)

// Explanation is the result of the explanation detector.
type Explanation struct {
	Kind QuestionKind
	// EMI is the concrete monthly payment named in a hypothetical question.
	EMI float64
}

const emiAmount = `(?:rs\.?\s*|₹\s*|inr\s*)?(\d+(?:,\d{2,3})*(?:\.\d+)?\s*k?)`

var (
	// "what if I paid 6k", "can I pay 5000 per month", "if I pay rs 8,000 as emi"
	hypotheticalPay = regexp.MustCompile(`(?i)\b(?:what if|what about|how about|can|could|if|suppose|assume)\b.{0,20}?\b(?:pay|paid|paying|afford)\s+(?:an?\s+)?(?:emi\s+of\s+)?` + emiAmount)
	// "what about 6k emi", "6000 per month as emi"
	hypotheticalAmountEMI = regexp.MustCompile(`(?i)\b` + emiAmount + `\s*(?:(?:per month|a month|monthly)\s+)?(?:as\s+)?(?:(?:an?|my|the)\s+)?emi\b`)
	// "emi of 6000", "emi 6k"
	hypotheticalEMIOf = regexp.MustCompile(`(?i)\bemi\s+(?:of\s+|to\s+|at\s+)?` + emiAmount + `\b`)

	whatIfCue = regexp.MustCompile(`(?i)\b(what if|what about|how about|can i|could i|if i|suppose|instead|afford)\b`)

	emiFormula = regexp.MustCompile(`(?i)(\bhow\b.{0,30}\b(emi|installment|instalment)\b.{0,30}\b(calculat\w*|comput\w*|work\w*|derived?|arrived?)|\bemi formula\b|\bformula\b.{0,20}\bemi\b|\bhow is (my )?emi\b|\bwhy is (my )?emi\b|\bexplain\b.{0,20}\bemi\b|\bhow (do|did) you (calculate|compute|get)\b.{0,20}\bemi\b)`)
	decisionQ  = regexp.MustCompile(`(?i)(\b(why|how)\b.{0,40}\b(approv\w*|reject\w*|declin\w*|decid\w*|decision|eligib\w*|conditional|under review)|\bexplain\b.{0,30}\b(decision|approval|rejection)\b|\breason\b.{0,20}\b(decision|approval|rejection)\b)`)
)

// ExplanationQuestion detects a question the engine can explain. A concrete EMI amount in a
// what-if phrasing always makes it a hypothetical question, even if it also mentions the
// formula.
func ExplanationQuestion(message string) Explanation {
	if emi, ok := HypotheticalEMI(message); ok {
		return Explanation{Kind: QuestionHypotheticEMI, EMI: emi}
	}
	if emiFormula.MatchString(message) {
		return Explanation{Kind: QuestionEMIFormula}
	}
	if decisionQ.MatchString(message) {
		return Explanation{Kind: QuestionDecision}
	}
	return Explanation{}
}

// HypotheticalEMI extracts the monthly payment from a what-if question.
func HypotheticalEMI(message string) (float64, bool) {
	if m := hypotheticalPay.FindStringSubmatch(message); m != nil {
		return parseEMI(m[1])
	}
	if !whatIfCue.MatchString(message) {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{hypotheticalAmountEMI, hypotheticalEMIOf} {
		if m := re.FindStringSubmatch(message); m != nil {
			return parseEMI(m[1])
		}
	}
	return 0, false
}

func parseEMI(raw string) (float64, bool) {
	v, ok := extract.ParseAmount(raw)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}
