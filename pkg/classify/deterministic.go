package classify

import (
	"context"
	"regexp"

	"github.com/aretw0/lendflow/pkg/detect"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/aretw0/lendflow/pkg/ports"
)

// Intent labels shared by every classifier.
const (
	IntentLoanInquiry   = "loan_inquiry"
	IntentProvideInfo   = "provide_information"
	IntentModification  = "modification"
	IntentObjection     = "objection"
	IntentQuestion      = "question"
	IntentConfirmation  = "confirmation"
	IntentRejection     = "rejection"
	IntentGreeting      = "greeting"
	IntentOther         = "other"
	SourceDeterministic = "deterministic"
)

// DefaultThreshold is the minimum confidence at which the router follows a hint.
const DefaultThreshold = 0.6

const (
	strongConfidence = 0.9
	weakConfidence   = 0.4
)

var greeting = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening)|namaste)\b`)

// Deterministic classifies with the same detectors the router uses. It never fails.
type Deterministic struct{}

// NewDeterministic returns the detector-backed classifier.
func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// Analyze implements ports.Classifier.
func (d *Deterministic) Analyze(_ context.Context, message string, cc ports.ClassifierContext) (ports.RoutingHint, error) {
	record := cc.Record
	reply := detect.ClassifyReply(message)

	hint := ports.RoutingHint{
		Source:         SourceDeterministic,
		ExtractedData:  extract.Extract(message, &record),
		IsConfirmation: reply == detect.ReplyAffirm,
		IsRejection:    reply == detect.ReplyDecline,
		Confidence:     strongConfidence,
	}

	if cc.PendingAdjustment && (hint.IsConfirmation || hint.IsRejection) {
		hint.Intent, hint.NextHandler = IntentConfirmation, domain.HandlerConfirmation
		if hint.IsRejection {
			hint.Intent, hint.NextHandler = IntentRejection, domain.HandlerRejection
		}
		hint.Reasoning = "reply to a pending EMI adjustment"
		return hint, nil
	}

	if q := detect.ExplanationQuestion(message); q.Kind != detect.QuestionNone {
		hint.Intent = IntentQuestion
		hint.QuestionType = string(q.Kind)
		hint.NextHandler = string(q.Kind)
		if q.Kind == detect.QuestionHypotheticEMI {
			hint.HypotheticalEMIAmount = domain.Float(q.EMI)
		}
		hint.Reasoning = "explanation question"
		return hint, nil
	}

	if detect.IsModification(message, &record) {
		hint.Intent, hint.NextHandler = IntentModification, domain.HandlerModification
		if present := extract.ExtractChanges(message).Present(); len(present) > 0 {
			hint.ModificationType = string(present[0])
		}
		hint.Reasoning = "edit of previously given data"
		return hint, nil
	}

	if obj := detect.Objection(message); obj != nil {
		hint.Intent, hint.NextHandler = IntentObjection, domain.HandlerObjection
		hint.Reasoning = "objection: " + obj.Type
		return hint, nil
	}

	hint.NextHandler = string(domain.ParseStage(string(cc.Stage)))
	switch {
	case reply == detect.ReplyAffirm:
		hint.Intent = IntentConfirmation
	case reply == detect.ReplyDecline:
		hint.Intent = IntentRejection
	case !hint.ExtractedData.IsEmpty():
		hint.Intent = IntentProvideInfo
	case detect.LoanIntent(message):
		hint.Intent = IntentLoanInquiry
	case greeting.MatchString(message):
		hint.Intent = IntentGreeting
		hint.Confidence = weakConfidence
	default:
		hint.Intent = IntentOther
		hint.Confidence = weakConfidence
	}
	hint.Reasoning = "stage default"
	return hint, nil
}
