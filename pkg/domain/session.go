package domain

import (
	"maps"
	"slices"
	"time"
)

// Role identifies the author of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Stage      Stage     `json:"stage,omitempty"`
	NextAction string    `json:"next_action,omitempty"`
	Actions    []string  `json:"actions,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TenureOption is one row of a what-if ladder.
type TenureOption struct {
	TenureMonths int     `json:"tenure_months"`
	Principal    float64 `json:"principal"`
}

// EMIAdjustment is an offer produced by a what-if question. It is kept on the session until
// the customer explicitly confirms or rejects it.
type EMIAdjustment struct {
	EMI          float64        `json:"emi"`
	InterestRate float64        `json:"interest_rate"`
	Options      []TenureOption `json:"options"`
	LoanAmount   float64        `json:"loan_amount"`
	TenureMonths int            `json:"tenure_months"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is the persisted conversation.
type Session struct {
	ID                   string            `json:"id"`
	Stage                Stage             `json:"stage"`
	History              []Message         `json:"history"`
	Record               ApplicationRecord `json:"loan_application"`
	Customer             map[string]string `json:"customer_data,omitempty"`
	ConversationEnded    bool              `json:"conversation_ended"`
	PendingEMIAdjustment *EMIAdjustment    `json:"pending_emi_adjustment,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	LastUpdated          time.Time         `json:"last_updated"`

	// Sealed carries an encrypted payload when the session is stored as an envelope.
	Sealed string `json:"sealed,omitempty"`
}

// NewSession creates an empty session at the engagement stage.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Stage:       StageEngagement,
		History:     []Message{},
		Customer:    map[string]string{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Append adds a message to the history and bumps LastUpdated.
func (s *Session) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.History = append(s.History, msg)
	s.LastUpdated = msg.Timestamp
}

// Clone returns a deep copy, safe to mutate independently.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]Message, len(s.History))
	for i, m := range s.History {
		m.Actions = slices.Clone(m.Actions)
		out.History[i] = m
	}
	out.Record = s.Record.Clone()
	out.Customer = maps.Clone(s.Customer)
	if s.PendingEMIAdjustment != nil {
		adj := *s.PendingEMIAdjustment
		adj.Options = slices.Clone(s.PendingEMIAdjustment.Options)
		out.PendingEMIAdjustment = &adj
	}
	return &out
}

// Snapshot is the read-only view returned by get-state.
type Snapshot struct {
	ID                   string            `json:"id"`
	Stage                Stage             `json:"stage"`
	Record               ApplicationRecord `json:"loan_application"`
	Customer             map[string]string `json:"customer_data,omitempty"`
	ConversationEnded    bool              `json:"conversation_ended"`
	PendingEMIAdjustment *EMIAdjustment    `json:"pending_emi_adjustment,omitempty"`
	Messages             int               `json:"message_count"`
	CreatedAt            time.Time         `json:"created_at"`
	LastUpdated          time.Time         `json:"last_updated"`
}

// Snapshot returns the read-only view of the session.
func (s *Session) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{
		ID:                   c.ID,
		Stage:                c.Stage,
		Record:               c.Record,
		Customer:             c.Customer,
		ConversationEnded:    c.ConversationEnded,
		PendingEMIAdjustment: c.PendingEMIAdjustment,
		Messages:             len(c.History),
		CreatedAt:            c.CreatedAt,
		LastUpdated:          c.LastUpdated,
	}
}

// LoanStatus is the summary exposed by the status endpoint.
type LoanStatus struct {
	ConversationID    string   `json:"conversation_id"`
	EligibilityStatus string   `json:"eligibility_status"`
	LoanAmount        *float64 `json:"loan_amount,omitempty"`
	EMIAmount         *float64 `json:"emi_amount,omitempty"`
	InterestRate      *float64 `json:"interest_rate,omitempty"`
	RiskCategory      string   `json:"risk_category"`
	CurrentStage      Stage    `json:"current_stage"`
}

// Status summarizes the loan for the session.
func (s *Session) Status() LoanStatus {
	eligibility := string(s.Record.Decision)
	if eligibility == "" {
		eligibility = "pending"
	}
	risk := s.Record.RiskCategory
	if risk == "" {
		risk = "unknown"
	}
	return LoanStatus{
		ConversationID:    s.ID,
		EligibilityStatus: eligibility,
		LoanAmount:        clonePtr(s.Record.LoanAmount),
		EMIAmount:         clonePtr(s.Record.EMIAmount),
		InterestRate:      clonePtr(s.Record.InterestRate),
		RiskCategory:      risk,
		CurrentStage:      s.Stage,
	}
}
