package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter  EventType = "stage_enter"
	EventStageLeave  EventType = "stage_leave"
	EventHandler     EventType = "handler"
	EventDecision    EventType = "decision"
	EventClassifier  EventType = "classifier"
	EventTurnHandled EventType = "turn_handled"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

// StageEvent represents entry into or exit from a stage.
type StageEvent struct {
	EventBase
	Stage Stage `json:"stage"`
	From  Stage `json:"from,omitempty"`
}

// HandlerEvent represents one handler invocation.
type HandlerEvent struct {
	EventBase
	Handler  string        `json:"handler"`
	Stage    Stage         `json:"stage"`
	Cascaded bool          `json:"cascaded"`
	Duration time.Duration `json:"duration"`
}

// DecisionEvent is emitted when underwriting settles a decision.
type DecisionEvent struct {
	EventBase
	Decision     Decision `json:"decision"`
	ApprovalPath string   `json:"approval_path"`
	Escalated    bool     `json:"escalated"`
}

// ClassifierEvent reports how the optional classifier behaved for one message.
type ClassifierEvent struct {
	EventBase
	Source     string        `json:"source"`
	Accepted   bool          `json:"accepted"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// TurnEvent is emitted after a message has been fully processed.
type TurnEvent struct {
	EventBase
	Stage    Stage         `json:"stage"`
	Handlers []string      `json:"handlers"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStageEnter func(context.Context, *StageEvent)
	OnStageLeave func(context.Context, *StageEvent)
	OnHandler    func(context.Context, *HandlerEvent)
	OnDecision   func(context.Context, *DecisionEvent)
	OnClassifier func(context.Context, *ClassifierEvent)
	OnTurn       func(context.Context, *TurnEvent)
}

// Merge returns hooks that call h first and then other for every callback.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStageEnter: chain(h.OnStageEnter, other.OnStageEnter),
		OnStageLeave: chain(h.OnStageLeave, other.OnStageLeave),
		OnHandler:    chain(h.OnHandler, other.OnHandler),
		OnDecision:   chain(h.OnDecision, other.OnDecision),
		OnClassifier: chain(h.OnClassifier, other.OnClassifier),
		OnTurn:       chain(h.OnTurn, other.OnTurn),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
