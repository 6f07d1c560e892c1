package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/classify"
	"github.com/aretw0/lendflow/pkg/detect"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxCascade bounds the stage handlers chained after the first one in a single turn.
	MaxCascade = 4

	// DefaultProgressDelay is the pause a client may insert between cascaded responses.
	DefaultProgressDelay = 800 * time.Millisecond

	// recentMessages is how much history the classifier sees.
	recentMessages = 6

	tracerName = "github.com/aretw0/lendflow/pkg/dialogue"
)

// Customer map keys filled from contact details found in messages.
const (
	CustomerEmail  = "email"
	CustomerMobile = "mobile"
)

var errNoVerifier = errors.New("no credit verifier configured")

// Machine routes messages to handlers and drives stage transitions.
// It is stateless across calls and safe for concurrent use on distinct sessions.
type Machine struct {
	rules      *rules.Engine
	verifier   ports.CreditVerifier
	classifier ports.Classifier
	threshold  float64
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	tracer     trace.Tracer
	delay      time.Duration
	now        func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithRules sets the rule engine. Defaults to rules.DefaultConfig.
func WithRules(engine *rules.Engine) Option {
	return func(m *Machine) {
		if engine != nil {
			m.rules = engine
		}
	}
}

// WithVerifier sets the credit/KYC collaborator. Without one every verification uses the
// conservative fallback.
func WithVerifier(v ports.CreditVerifier) Option {
	return func(m *Machine) {
		m.verifier = v
	}
}

// WithClassifier enables advisory intent classification for the stage-default slot.
func WithClassifier(c ports.Classifier) Option {
	return func(m *Machine) {
		m.classifier = c
	}
}

// WithThreshold sets the minimum classifier confidence that is followed.
func WithThreshold(t float64) Option {
	return func(m *Machine) {
		if t > 0 {
			m.threshold = t
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Machine) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithProgressDelay sets the suggested delay reported with cascades.
func WithProgressDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.delay = d
		}
	}
}

// NewMachine creates a dialogue machine.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		rules:     rules.NewEngine(rules.DefaultConfig()),
		threshold: classify.DefaultThreshold,
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(tracerName),
		delay:     DefaultProgressDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rules returns the rule engine the machine evaluates.
func (m *Machine) Rules() *rules.Engine {
	return m.rules
}

// turnState is the scratch space of one Handle call.
type turnState struct {
	session *domain.Session
	message string
	turn    domain.Turn

	// loanIntent is set when an engagement message starts the journey.
	loanIntent bool
	// hint is the accepted classifier hint, if any.
	hint *ports.RoutingHint
	// steps are the stages entered by the cascade.
	steps []domain.Stage
}

func (ts *turnState) record() *domain.ApplicationRecord {
	return &ts.session.Record
}

// Handle processes one inbound message against s, mutating it in place, and returns the
// aggregated turn. The user message and the reply are appended to the history.
func (m *Machine) Handle(ctx context.Context, s *domain.Session, message string) (domain.Turn, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return domain.Turn{}, domain.ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return domain.Turn{}, err
	}

	start := m.now()
	ctx, span := m.tracer.Start(ctx, "dialogue.Handle", trace.WithAttributes(
		attribute.String("conversation_id", s.ID),
		attribute.String("stage", string(s.Stage)),
	))
	defer span.End()

	if !s.Stage.Valid() {
		s.Stage = domain.ParseStage(string(s.Stage))
	}
	if s.Customer == nil {
		s.Customer = map[string]string{}
	}
	contact, stripped := extract.ExtractContact(text)
	if contact.Email != "" {
		s.Customer[CustomerEmail] = contact.Email
	}
	if contact.Phone != "" {
		s.Customer[CustomerMobile] = contact.Phone
	}

	s.Append(domain.Message{Role: domain.RoleUser, Content: text, Stage: s.Stage, Timestamp: start})

	ts := &turnState{session: s, message: text, turn: domain.Turn{Actions: []string{}}}
	if s.Stage == domain.StageEngagement {
		ts.loanIntent = detect.LoanIntent(stripped)
	}

	if m.route(ctx, ts) {
		m.cascade(ctx, ts)
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn canceled")
		return domain.Turn{}, err
	}
	if err := s.Record.Validate(); err != nil {
		// Never expected: handlers only flag a stage through MarkStageComplete.
		m.logger.Error("record invariant violated", "conversation_id", s.ID, "err", err)
		span.RecordError(err)
	}

	ts.turn.Stage = s.Stage
	if len(ts.steps) > 0 {
		ts.turn.Progress = &domain.ProgressHint{
			Steps:            ts.steps,
			SuggestedDelayMS: int(m.delay.Milliseconds()),
		}
	}
	ts.turn.Suggestions = suggestions(s)

	s.Append(domain.Message{
		Role:       domain.RoleAssistant,
		Content:    ts.turn.Response,
		Stage:      s.Stage,
		NextAction: ts.turn.NextAction,
		Actions:    ts.turn.Actions,
		Timestamp:  m.now(),
	})

	elapsed := m.now().Sub(start)
	span.SetAttributes(
		attribute.String("final_stage", string(s.Stage)),
		attribute.StringSlice("handlers", ts.turn.Handlers),
	)
	m.logger.Debug("turn handled",
		"conversation_id", s.ID,
		"stage", s.Stage,
		"handlers", ts.turn.Handlers,
		"duration", elapsed,
	)
	if m.hooks.OnTurn != nil {
		m.hooks.OnTurn(ctx, &domain.TurnEvent{
			EventBase: m.base(domain.EventTurnHandled, s.ID),
			Stage:     s.Stage,
			Handlers:  ts.turn.Handlers,
			Duration:  elapsed,
		})
	}
	return ts.turn, nil
}

// handlerFunc computes one handler result, mutating the session through ts.
type handlerFunc func(ctx context.Context, ts *turnState) domain.Result

// run executes a handler inside its own span and folds the result into the turn.
func (m *Machine) run(ctx context.Context, ts *turnState, name string, fn handlerFunc, cascaded bool) {
	ctx, span := m.tracer.Start(ctx, "dialogue."+name, trace.WithAttributes(
		attribute.String("stage", string(ts.session.Stage)),
		attribute.Bool("cascaded", cascaded),
	))
	defer span.End()

	start := m.now()
	res := fn(ctx, ts)
	if res.Handler == "" {
		res.Handler = name
	}
	ts.turn.Add(res)

	if m.hooks.OnHandler != nil {
		m.hooks.OnHandler(ctx, &domain.HandlerEvent{
			EventBase: m.base(domain.EventHandler, ts.session.ID),
			Handler:   res.Handler,
			Stage:     ts.session.Stage,
			Cascaded:  cascaded,
			Duration:  m.now().Sub(start),
		})
	}
}

// enter moves the session to stage, firing leave and enter hooks on a real change.
func (m *Machine) enter(ctx context.Context, ts *turnState, stage domain.Stage) {
	s := ts.session
	from := s.Stage
	if from == stage {
		return
	}
	if m.hooks.OnStageLeave != nil {
		m.hooks.OnStageLeave(ctx, &domain.StageEvent{
			EventBase: m.base(domain.EventStageLeave, s.ID),
			Stage:     from,
		})
	}
	s.Stage = stage
	m.logger.Debug("stage changed", "conversation_id", s.ID, "from", from, "to", stage)
	if m.hooks.OnStageEnter != nil {
		m.hooks.OnStageEnter(ctx, &domain.StageEvent{
			EventBase: m.base(domain.EventStageEnter, s.ID),
			Stage:     stage,
			From:      from,
		})
	}
}

// cascade drives the session forward while the completion flags allow. Each step strictly
// advances the stage and the loop never enters closure on its own.
func (m *Machine) cascade(ctx context.Context, ts *turnState) {
	for i := 0; i < MaxCascade; i++ {
		if ctx.Err() != nil {
			return
		}
		next, ok := m.nextStage(ts)
		if !ok {
			return
		}
		m.enter(ctx, ts, next)
		ts.steps = append(ts.steps, next)
		m.run(ctx, ts, string(next), m.stageHandler(next), true)
	}
}

// nextStage returns the stage the session may advance to without further input.
func (m *Machine) nextStage(ts *turnState) (domain.Stage, bool) {
	r := ts.record()
	switch ts.session.Stage {
	case domain.StageEngagement:
		return domain.StageNeedsAssessment, ts.loanIntent
	case domain.StageNeedsAssessment:
		return domain.StageVerification, r.RequirementsComplete()
	case domain.StageVerification:
		return domain.StageUnderwriting, r.VerificationComplete
	case domain.StageUnderwriting:
		return domain.StageSanction, r.UnderwritingComplete && r.Decision != domain.DecisionRejected
	}
	return "", false
}

// stageHandler returns the default handler of a stage.
func (m *Machine) stageHandler(stage domain.Stage) handlerFunc {
	switch stage {
	case domain.StageNeedsAssessment:
		return m.needsAssessment
	case domain.StageVerification:
		return m.verification
	case domain.StageUnderwriting:
		return m.underwriting
	case domain.StageSanction:
		return m.sanction
	case domain.StageClosure:
		return m.closure
	}
	return m.engagement
}

func (m *Machine) base(t domain.EventType, id string) domain.EventBase {
	return domain.EventBase{Timestamp: m.now(), Type: t, ConversationID: id}
}

// suggestions returns quick replies for the state the turn ended in.
func suggestions(s *domain.Session) []string {
	if s.PendingEMIAdjustment != nil {
		return []string{"Yes, adjust my loan", "No, keep my current terms"}
	}
	switch s.Stage {
	case domain.StageEngagement:
		return []string{"I need a personal loan", "How is EMI calculated?"}
	case domain.StageNeedsAssessment:
		if s.Record.RequirementsComplete() {
			return []string{"Yes, continue"}
		}
		return nil
	case domain.StageUnderwriting:
		if s.Record.Decision == domain.DecisionRejected {
			return []string{"Why was I rejected?", "Change my loan amount"}
		}
	case domain.StageSanction:
		return []string{"Yes, finalize", "I want to make changes", "What if I paid a lower EMI?"}
	case domain.StageClosure:
		if !s.ConversationEnded {
			return []string{"Yes, finalize", "I want to make changes"}
		}
	}
	return nil
}
