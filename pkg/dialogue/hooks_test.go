package dialogue_test

import (
	"context"
	"slices"
	"testing"

	"github.com/aretw0/lendflow/pkg/dialogue"
	"github.com/aretw0/lendflow/pkg/domain"
)

func TestLifecycleHooks(t *testing.T) {
	var (
		entered   []domain.Stage
		left      []domain.Stage
		cascaded  []bool
		decisions []*domain.DecisionEvent
		turns     int
	)
	hooks := domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) { entered = append(entered, e.Stage) },
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) { left = append(left, e.Stage) },
		OnHandler: func(_ context.Context, e *domain.HandlerEvent) {
			cascaded = append(cascaded, e.Cascaded)
		},
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) { decisions = append(decisions, e) },
		OnTurn:     func(_ context.Context, _ *domain.TurnEvent) { turns++ },
	}

	m := dialogue.NewMachine(dialogue.WithVerifier(goodBureau()), dialogue.WithLifecycleHooks(hooks))
	s := domain.NewSession("sess-1")
	if _, err := m.Handle(context.Background(), s, fullApplication); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	wantEntered := []domain.Stage{
		domain.StageNeedsAssessment,
		domain.StageVerification,
		domain.StageUnderwriting,
		domain.StageSanction,
	}
	if !slices.Equal(entered, wantEntered) {
		t.Errorf("entered = %v, want %v", entered, wantEntered)
	}
	wantLeft := []domain.Stage{
		domain.StageEngagement,
		domain.StageNeedsAssessment,
		domain.StageVerification,
		domain.StageUnderwriting,
	}
	if !slices.Equal(left, wantLeft) {
		t.Errorf("left = %v, want %v", left, wantLeft)
	}
	if want := []bool{false, true, true, true, true}; !slices.Equal(cascaded, want) {
		t.Errorf("cascaded = %v, want %v", cascaded, want)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision event, got %d", len(decisions))
	}
	if decisions[0].Decision != domain.DecisionApproved {
		t.Errorf("decision = %s, want approved", decisions[0].Decision)
	}
	if decisions[0].ConversationID != "sess-1" {
		t.Errorf("conversation id = %q", decisions[0].ConversationID)
	}
	if turns != 1 {
		t.Errorf("OnTurn called %d times, want 1", turns)
	}
}

func TestLifecycleHooks_NoEventsWithoutStageChange(t *testing.T) {
	var entered int
	m := dialogue.NewMachine(dialogue.WithLifecycleHooks(domain.LifecycleHooks{
		OnStageEnter: func(context.Context, *domain.StageEvent) { entered++ },
	}))
	s := domain.NewSession("sess-1")

	for _, msg := range []string{"hello", "how is the EMI calculated?", "this is too expensive"} {
		if _, err := m.Handle(context.Background(), s, msg); err != nil {
			t.Fatalf("Handle(%q) failed: %v", msg, err)
		}
	}
	if entered != 0 {
		t.Errorf("expected no stage events, got %d", entered)
	}
}
