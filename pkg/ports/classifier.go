package ports

import (
	"context"

	"github.com/aretw0/lendflow/pkg/domain"
)

// RoutingHint is the advisory output of an intent classifier.
type RoutingHint struct {
	Intent                string        `json:"intent" mapstructure:"intent" jsonschema:"enum=loan_inquiry,enum=provide_information,enum=modification,enum=objection,enum=question,enum=confirmation,enum=rejection,enum=greeting,enum=other"`
	NextHandler           string        `json:"next_handler" mapstructure:"next_handler" jsonschema:"enum=engagement,enum=needs_assessment,enum=verification,enum=underwriting,enum=sanction,enum=closure,enum=objection,enum=modification,enum=emi_explanation,enum=decision_explanation,enum=hypothetical_emi"`
	ExtractedData         domain.Fields `json:"extracted_data" mapstructure:"extracted_data"`
	QuestionType          string        `json:"question_type,omitempty" mapstructure:"question_type"`
	HypotheticalEMIAmount *float64      `json:"hypothetical_emi_amount,omitempty" mapstructure:"hypothetical_emi_amount"`
	ModificationType      string        `json:"modification_type,omitempty" mapstructure:"modification_type"`
	IsConfirmation        bool          `json:"is_confirmation" mapstructure:"is_confirmation"`
	IsRejection           bool          `json:"is_rejection" mapstructure:"is_rejection"`
	Reasoning             string        `json:"reasoning,omitempty" mapstructure:"reasoning"`
	Confidence            float64       `json:"confidence" mapstructure:"confidence" jsonschema:"minimum=0,maximum=1"`

	// Source names the classifier that produced the hint.
	Source string `json:"-" mapstructure:"-"`
}

// ClassifierContext is what a classifier may look at besides the message.
type ClassifierContext struct {
	ConversationID    string
	Stage             domain.Stage
	Record            domain.ApplicationRecord
	PendingAdjustment bool
	Ended             bool
	// Recent holds the last few history messages, oldest first.
	Recent []domain.Message
}

// Classifier analyzes a message and suggests a route.
type Classifier interface {
	Analyze(ctx context.Context, message string, cc ClassifierContext) (RoutingHint, error)
}
