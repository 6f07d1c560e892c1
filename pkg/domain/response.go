package domain

import "strings"

// Handler names used in results, hooks and classifier hints.
const (
	HandlerEngagement          = "engagement"
	HandlerNeedsAssessment     = "needs_assessment"
	HandlerVerification        = "verification"
	HandlerUnderwriting        = "underwriting"
	HandlerSanction            = "sanction"
	HandlerClosure             = "closure"
	HandlerObjection           = "objection"
	HandlerModification        = "modification"
	HandlerEMIExplanation      = "emi_explanation"
	HandlerDecisionExplanation = "decision_explanation"
	HandlerHypotheticalEMI     = "hypothetical_emi"
	HandlerConfirmation        = "confirmation"
	HandlerRejection           = "rejection"
	HandlerReprompt            = "reprompt"
)

// Display kinds.
const (
	DisplayRequirements = "requirements"
	DisplayVerification = "verification"
	DisplayDecision     = "decision"
	DisplaySanction     = "sanction_summary"
	DisplayEMIOptions   = "emi_options"
	DisplayEMIPreview   = "emi_preview"
)

// Display is an optional structured payload a client may render next to the text.
type Display struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// Result is what a single handler returns.
type Result struct {
	Handler    string   `json:"handler"`
	Response   string   `json:"response"`
	NextAction string   `json:"next_action,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Display    *Display `json:"display,omitempty"`
}

// ProgressHint tells a client which stages ran in a cascade and how long it may wait
// between rendering them. It never affects the computed outcome.
type ProgressHint struct {
	Steps            []Stage `json:"steps"`
	SuggestedDelayMS int     `json:"suggested_delay_ms"`
}

// ObjectionInfo describes a detected objection.
type ObjectionInfo struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern_matched,omitempty"`
}

// KnowledgeHit is one knowledge-search result.
type KnowledgeHit struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Relevance float64           `json:"relevance"`
}

// Turn is the aggregated outcome of one inbound message.
type Turn struct {
	Stage       Stage          `json:"stage"`
	Response    string         `json:"response"`
	NextAction  string         `json:"next_action,omitempty"`
	Actions     []string       `json:"actions"`
	Handlers    []string       `json:"handlers"`
	Display     *Display       `json:"display,omitempty"`
	Progress    *ProgressHint  `json:"progress,omitempty"`
	Objection   *ObjectionInfo `json:"objection_detected,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Knowledge   []KnowledgeHit `json:"knowledge_context,omitempty"`
}

// Add appends a handler result. Responses are joined by a blank line, actions are
// concatenated, and the latest next action and display win.
func (t *Turn) Add(r Result) {
	if r.Response != "" {
		if t.Response == "" {
			t.Response = r.Response
		} else {
			t.Response = strings.Join([]string{t.Response, r.Response}, "\n\n")
		}
	}
	if r.NextAction != "" {
		t.NextAction = r.NextAction
	}
	t.Actions = append(t.Actions, r.Actions...)
	if r.Handler != "" {
		t.Handlers = append(t.Handlers, r.Handler)
	}
	if r.Display != nil {
		t.Display = r.Display
	}
}

// Reply is the conversation API answer to one submitted message.
type Reply struct {
	ConversationID string `json:"conversation_id"`
	Turn
	Customer    map[string]string `json:"customer_data,omitempty"`
	Application ApplicationRecord `json:"loan_application"`
}

// NewReply builds the reply of turn t for session s.
func NewReply(s *Session, t Turn) *Reply {
	c := s.Clone()
	return &Reply{
		ConversationID: c.ID,
		Turn:           t,
		Customer:       c.Customer,
		Application:    c.Record,
	}
}
