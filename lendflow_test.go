package lendflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lendflow"
	"github.com/aretw0/lendflow/pkg/adapters/bureau"
	"github.com/aretw0/lendflow/pkg/adapters/memory"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const fullApplication = "I need 2 lakhs, salary 60k, salaried, Mumbai"

type stubKnowledge struct {
	hits  []domain.KnowledgeHit
	err   error
	calls int
	limit int
}

func (s *stubKnowledge) Search(_ context.Context, _ string, limit int) ([]domain.KnowledgeHit, error) {
	s.calls++
	s.limit = limit
	return s.hits, s.err
}

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("conv-%d", n)
	}
}

func TestEngine_StartAndSubmit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := lendflow.New(lendflow.WithStore(store), lendflow.WithIDGenerator(sequentialIDs()))

	s, err := engine.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", s.ID)
	assert.Equal(t, domain.StageEngagement, s.Stage)

	ids, err := engine.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1"}, ids)

	reply, err := engine.Submit(ctx, s.ID, fullApplication)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", reply.ConversationID)
	assert.Equal(t, domain.StageSanction, reply.Stage)
	assert.Equal(t, 200000.0, domain.Deref(reply.Application.LoanAmount))
	assert.Equal(t, domain.DecisionApproved, reply.Application.Decision)
	assert.Contains(t, reply.Response, "Your loan has been sanctioned!")

	// The turn is persisted.
	stored, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageSanction, stored.Stage)
	assert.Len(t, stored.History, 2)
}

func TestEngine_SubmitUnknownStartsConversation(t *testing.T) {
	ctx := context.Background()
	engine := lendflow.New()

	reply, err := engine.Submit(ctx, "walk-in", "hello")
	require.NoError(t, err)
	assert.Equal(t, domain.StageEngagement, reply.Stage)

	snap, err := engine.State(ctx, "walk-in")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Messages)
}

func TestEngine_SubmitErrors(t *testing.T) {
	ctx := context.Background()
	engine := lendflow.New(lendflow.WithMaxInputSize(16))

	_, err := engine.Submit(ctx, "", "hello")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = engine.Submit(ctx, "c1", strings.Repeat("a", 17))
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)

	_, err = engine.Submit(ctx, "c1", "bad \xff")
	assert.ErrorIs(t, err, runner.ErrInvalidUTF8)

	_, err = engine.Submit(ctx, "c1", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	// A rejected message leaves nothing behind.
	_, err = engine.State(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_ReadsOfUnknownConversation(t *testing.T) {
	ctx := context.Background()
	engine := lendflow.New()

	_, err := engine.State(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = engine.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = engine.History(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_StatusAndHistory(t *testing.T) {
	ctx := context.Background()
	engine := lendflow.New()

	s, err := engine.Start(ctx)
	require.NoError(t, err)

	st, err := engine.Status(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", st.EligibilityStatus)
	assert.Equal(t, "unknown", st.RiskCategory)

	_, err = engine.Submit(ctx, s.ID, fullApplication)
	require.NoError(t, err)

	st, err = engine.Status(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.DecisionApproved), st.EligibilityStatus)
	assert.Equal(t, "low", st.RiskCategory)
	assert.Equal(t, domain.StageSanction, st.CurrentStage)
	assert.Equal(t, 10.5, domain.Deref(st.InterestRate))

	history, err := engine.History(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, fullApplication, history[0].Content)

	require.NoError(t, engine.Delete(ctx, s.ID))
	_, err = engine.State(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_KnowledgeEnrichment(t *testing.T) {
	ctx := context.Background()

	t.Run("Hits are attached", func(t *testing.T) {
		k := &stubKnowledge{hits: []domain.KnowledgeHit{{ID: "emi_1", Content: "EMI", Relevance: 1}}}
		engine := lendflow.New(lendflow.WithKnowledge(k, 2))

		reply, err := engine.Submit(ctx, "c1", "what is emi")
		require.NoError(t, err)
		require.Len(t, reply.Knowledge, 1)
		assert.Equal(t, "emi_1", reply.Knowledge[0].ID)
		assert.Equal(t, 2, k.limit)
	})

	t.Run("Failures never fail the turn", func(t *testing.T) {
		k := &stubKnowledge{err: errors.New("index offline")}
		engine := lendflow.New(lendflow.WithKnowledge(k, 0))

		reply, err := engine.Submit(ctx, "c1", "hello")
		require.NoError(t, err)
		assert.Empty(t, reply.Knowledge)
		assert.Equal(t, 1, k.calls)
	})

	t.Run("Search uses the configured top-k", func(t *testing.T) {
		k := &stubKnowledge{}
		engine := lendflow.New(lendflow.WithKnowledge(k, 5))

		_, err := engine.Search(ctx, "prepayment", 0)
		require.NoError(t, err)
		assert.Equal(t, 5, k.limit)
	})

	t.Run("Seed documents by default", func(t *testing.T) {
		engine := lendflow.New()

		hits, err := engine.Search(ctx, "prepayment foreclosure charges", 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "prepayment_1", hits[0].ID)
	})
}

func TestEngine_Verify(t *testing.T) {
	report := bureau.DefaultReport
	report.CreditScore = 640
	engine := lendflow.New(lendflow.WithVerifier(bureau.NewStatic(bureau.WithReport("9876543210", report))))

	got, err := engine.Verify(context.Background(), "9876543210", ports.IdentifierMobile)
	require.NoError(t, err)
	assert.Equal(t, 640, got.CreditScore)
}

func TestEngine_Subscribe(t *testing.T) {
	ctx := context.Background()
	engine := lendflow.New()

	s, err := engine.Start(ctx)
	require.NoError(t, err)

	diffs, cancel := engine.Subscribe(s.ID)
	defer cancel()

	_, err = engine.Submit(ctx, s.ID, fullApplication)
	require.NoError(t, err)

	select {
	case d := <-diffs:
		assert.Equal(t, s.ID, d.ConversationID)
		require.NotNil(t, d.Stage)
		assert.Equal(t, domain.StageSanction, *d.Stage)
		require.NotNil(t, d.History)
		assert.Len(t, d.History.Appended, 2)
	case <-time.After(time.Second):
		t.Fatal("no diff received")
	}

	cancel()
	cancel()
	_, ok := <-diffs
	assert.False(t, ok, "cancel closes the channel")
}

func TestEngine_Hooks(t *testing.T) {
	var (
		mu     sync.Mutex
		stages []domain.Stage
	)
	hooks := domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) {
			mu.Lock()
			defer mu.Unlock()
			stages = append(stages, e.Stage)
		},
	}
	engine := lendflow.New(lendflow.WithLifecycleHooks(hooks))

	_, err := engine.Submit(context.Background(), "c1", fullApplication)
	require.NoError(t, err)
	assert.Equal(t, []domain.Stage{
		domain.StageNeedsAssessment,
		domain.StageVerification,
		domain.StageUnderwriting,
		domain.StageSanction,
	}, stages)
}

func TestEngine_ConcurrentSubmitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	engine := lendflow.New()

	s, err := engine.Start(ctx)
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := engine.Submit(ctx, s.ID, "hello")
			return err
		})
	}
	require.NoError(t, g.Wait())

	history, err := engine.History(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, history, 16, "no turn was lost")
}
