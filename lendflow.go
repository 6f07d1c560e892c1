package lendflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/adapters/bureau"
	"github.com/aretw0/lendflow/pkg/adapters/memory"
	"github.com/aretw0/lendflow/pkg/dialogue"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/knowledge"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/aretw0/lendflow/pkg/runner"
	"github.com/aretw0/lendflow/pkg/session"
	"github.com/google/uuid"
)

// DefaultMaxInputSize is the size limit of one inbound message when no option overrides it.
const DefaultMaxInputSize = 4096

// Engine is the high-level entry point of lendflow.
// It wires the dialogue machine to a session store and exposes the conversation API.
type Engine struct {
	sessions  *session.Manager
	machine   *dialogue.Machine
	rules     *rules.Engine
	verifier  ports.CreditVerifier
	knowledge ports.KnowledgeSearcher
	streams   *streams

	store      ports.SessionStore
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	classifier ports.Classifier
	threshold  float64
	hooks      domain.LifecycleHooks
	delay      *time.Duration
	topK       int
	maxInput   int
	newID      func() string
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithVerifier sets the credit/KYC collaborator. Defaults to the in-process mock bureau.
func WithVerifier(v ports.CreditVerifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithClassifier enables advisory intent classification.
func WithClassifier(c ports.Classifier, threshold float64) Option {
	return func(e *Engine) {
		e.classifier = c
		e.threshold = threshold
	}
}

// WithKnowledge sets the knowledge searcher and how many hits enrich each turn.
// A nil searcher disables enrichment.
func WithKnowledge(k ports.KnowledgeSearcher, topK int) Option {
	return func(e *Engine) {
		e.knowledge = k
		if topK > 0 {
			e.topK = topK
		}
	}
}

// WithRules sets the rule engine.
func WithRules(r *rules.Engine) Option {
	return func(e *Engine) {
		e.rules = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxInputSize bounds the size in bytes of one inbound message.
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInput = n
		}
	}
}

// WithProgressDelay sets the pause suggested between cascaded steps.
func WithProgressDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = &d
	}
}

// WithIDGenerator replaces the uuid conversation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New initializes a lendflow Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		knowledge: knowledge.NewSeedIndex(),
		topK:      knowledge.DefaultLimit,
		maxInput:  DefaultMaxInputSize,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.verifier == nil {
		e.verifier = bureau.NewStatic()
	}
	if e.rules == nil {
		e.rules = rules.NewEngine(rules.DefaultConfig())
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker), session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	machineOpts := []dialogue.Option{
		dialogue.WithRules(e.rules),
		dialogue.WithVerifier(e.verifier),
		dialogue.WithLifecycleHooks(e.hooks),
		dialogue.WithLogger(e.logger),
	}
	if e.classifier != nil {
		machineOpts = append(machineOpts, dialogue.WithClassifier(e.classifier), dialogue.WithThreshold(e.threshold))
	}
	if e.delay != nil {
		machineOpts = append(machineOpts, dialogue.WithProgressDelay(*e.delay))
	}
	e.machine = dialogue.NewMachine(machineOpts...)
	e.streams = newStreams()
	return e
}

// Rules returns the rule engine the conversations are evaluated with.
func (e *Engine) Rules() *rules.Engine {
	return e.rules
}

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Start opens a new conversation in the Engagement stage and persists it.
func (e *Engine) Start(ctx context.Context) (*domain.Session, error) {
	id := e.newID()
	s, err := e.sessions.LoadOrStart(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}
	e.logger.Info("conversation started", "conversation_id", id)
	return s, nil
}

// Submit processes one inbound message and returns the fully resolved reply, including
// cascaded progression. An unknown conversation id starts that conversation.
// Input is rejected with runner.ErrInputTooLarge or runner.ErrInvalidUTF8 before it
// reaches the dialogue machine.
func (e *Engine) Submit(ctx context.Context, conversationID, message string) (*domain.Reply, error) {
	if conversationID == "" {
		return nil, domain.ErrSessionNotFound
	}
	clean, err := runner.SanitizeInputLimit(message, e.maxInput)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(clean) == "" {
		return nil, domain.ErrEmptyMessage
	}

	var (
		turn   domain.Turn
		before *domain.Session
	)
	after, err := e.sessions.Update(ctx, conversationID, func(ctx context.Context, s *domain.Session) error {
		before = s.Clone()
		t, err := e.machine.Handle(ctx, s, clean)
		if err != nil {
			return err
		}
		t.Knowledge = e.enrich(ctx, s.ID, clean)
		turn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if diff := domain.Diff(before, after); diff != nil {
		e.streams.broadcast(conversationID, diff)
	}
	e.logger.Debug("message submitted",
		"conversation_id", conversationID,
		"stage", after.Stage,
		"handlers", turn.Handlers)
	return domain.NewReply(after, turn), nil
}

// enrich attaches knowledge hits to a turn. Search failures are logged and dropped.
func (e *Engine) enrich(ctx context.Context, conversationID, text string) []domain.KnowledgeHit {
	if e.knowledge == nil {
		return nil
	}
	hits, err := e.knowledge.Search(ctx, text, e.topK)
	if err != nil {
		e.logger.Warn("knowledge search failed", "conversation_id", conversationID, "err", err)
		return nil
	}
	return hits
}

// State returns the read-only view of a conversation.
func (e *Engine) State(ctx context.Context, conversationID string) (*domain.Snapshot, error) {
	s, err := e.sessions.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	return &snap, nil
}

// Status summarizes the loan of a conversation.
func (e *Engine) Status(ctx context.Context, conversationID string) (domain.LoanStatus, error) {
	s, err := e.sessions.Load(ctx, conversationID)
	if err != nil {
		return domain.LoanStatus{}, err
	}
	return s.Status(), nil
}

// History returns the messages of a conversation, oldest first.
func (e *Engine) History(ctx context.Context, conversationID string) ([]domain.Message, error) {
	s, err := e.sessions.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.Clone().History, nil
}

// Delete removes a conversation.
func (e *Engine) Delete(ctx context.Context, conversationID string) error {
	if err := e.sessions.Delete(ctx, conversationID); err != nil {
		return err
	}
	e.logger.Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

// List returns the ids of all stored conversations.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Search queries the knowledge base. A non-positive limit uses the configured top-k.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error) {
	if e.knowledge == nil {
		return []domain.KnowledgeHit{}, nil
	}
	if limit <= 0 {
		limit = e.topK
	}
	return e.knowledge.Search(ctx, query, limit)
}

// Verify runs a credit/KYC check outside of any conversation.
func (e *Engine) Verify(ctx context.Context, identifier string, kind ports.IdentifierType) (ports.VerificationResult, error) {
	return e.verifier.Verify(ctx, identifier, kind)
}

// Subscribe streams the changes of a conversation until cancel is called.
func (e *Engine) Subscribe(conversationID string) (<-chan *domain.SessionDiff, func()) {
	return e.streams.subscribe(conversationID)
}
