package dialogue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lendflow/pkg/dialogue"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClassifier struct {
	fn    func(message string, cc ports.ClassifierContext) (ports.RoutingHint, error)
	calls int
	seen  []ports.ClassifierContext
}

func (c *scriptedClassifier) Analyze(_ context.Context, message string, cc ports.ClassifierContext) (ports.RoutingHint, error) {
	c.calls++
	c.seen = append(c.seen, cc)
	return c.fn(message, cc)
}

// hintFor answers hint to one message and a low-confidence guess to everything else.
func hintFor(message string, hint ports.RoutingHint) *scriptedClassifier {
	return &scriptedClassifier{fn: func(msg string, _ ports.ClassifierContext) (ports.RoutingHint, error) {
		if msg == message {
			return hint, nil
		}
		return ports.RoutingHint{NextHandler: domain.HandlerReprompt, Confidence: 0.1, Source: "test"}, nil
	}}
}

func TestClassifier_Ignored(t *testing.T) {
	tests := []struct {
		name string
		hint ports.RoutingHint
		err  error
	}{
		{"Low confidence", ports.RoutingHint{NextHandler: domain.HandlerObjection, Confidence: 0.3}, nil},
		{"Error", ports.RoutingHint{}, errors.New("model unavailable")},
		{"Skips stages", ports.RoutingHint{NextHandler: domain.HandlerSanction, Confidence: 0.95}, nil},
		{"Confirmation without offer", ports.RoutingHint{NextHandler: domain.HandlerConfirmation, Confidence: 0.95}, nil},
		{"Hypothetical without amount", ports.RoutingHint{NextHandler: domain.HandlerHypotheticalEMI, Confidence: 0.95}, nil},
		{"Modification without data", ports.RoutingHint{NextHandler: domain.HandlerModification, Confidence: 0.95}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &scriptedClassifier{fn: func(string, ports.ClassifierContext) (ports.RoutingHint, error) {
				return tt.hint, tt.err
			}}
			var events []*domain.ClassifierEvent
			m := dialogue.NewMachine(
				dialogue.WithClassifier(c),
				dialogue.WithLifecycleHooks(domain.LifecycleHooks{
					OnClassifier: func(_ context.Context, e *domain.ClassifierEvent) { events = append(events, e) },
				}),
			)
			s := domain.NewSession("sess-1")

			turn := say(t, m, s, "hello")
			assert.Equal(t, []string{domain.HandlerEngagement}, turn.Handlers)
			assert.Equal(t, domain.StageEngagement, turn.Stage)
			assert.Equal(t, 1, c.calls)
			require.Len(t, events, 1)
			assert.False(t, events[0].Accepted)
			assert.Equal(t, tt.err, events[0].Err)
		})
	}
}

func TestClassifier_Followed(t *testing.T) {
	t.Run("Objection", func(t *testing.T) {
		c := hintFor("hmm, let me see", ports.RoutingHint{NextHandler: domain.HandlerObjection, Confidence: 0.9})
		m := dialogue.NewMachine(dialogue.WithClassifier(c))
		s := domain.NewSession("sess-1")
		say(t, m, s, "I want a personal loan")

		turn := say(t, m, s, "hmm, let me see")
		assert.Equal(t, []string{domain.HandlerObjection}, turn.Handlers)
		assert.Equal(t, domain.StageNeedsAssessment, turn.Stage)
		assert.NotEmpty(t, turn.Response)
	})

	t.Run("Extracted data is merged", func(t *testing.T) {
		c := hintFor("I stay near the tech park", ports.RoutingHint{
			NextHandler:   domain.HandlerNeedsAssessment,
			ExtractedData: domain.Fields{City: "Pune"},
			Confidence:    0.85,
		})
		m := dialogue.NewMachine(dialogue.WithClassifier(c))
		s := domain.NewSession("sess-1")
		say(t, m, s, "I need a loan of 2 lakhs")

		turn := say(t, m, s, "I stay near the tech park")
		assert.Equal(t, "Pune", s.Record.City)
		assert.Equal(t, domain.StageNeedsAssessment, turn.Stage)
		assert.Contains(t, turn.Response, "city of residence (Pune)")
	})

	t.Run("Hypothetical amount", func(t *testing.T) {
		c := hintFor("something around six thousand feels right", ports.RoutingHint{
			NextHandler:           domain.HandlerHypotheticalEMI,
			HypotheticalEMIAmount: domain.Float(6000),
			Confidence:            0.8,
		})
		m := dialogue.NewMachine(dialogue.WithVerifier(goodBureau()), dialogue.WithClassifier(c))
		s := domain.NewSession("sess-1")
		say(t, m, s, fullApplication)

		turn := say(t, m, s, "something around six thousand feels right")
		assert.Equal(t, []string{domain.HandlerHypotheticalEMI}, turn.Handlers)
		require.NotNil(t, s.PendingEMIAdjustment)
		assert.Equal(t, 6000.0, s.PendingEMIAdjustment.EMI)
	})
}

func TestClassifier_UnknownHandlerIsEngagement(t *testing.T) {
	c := hintFor("tell me more", ports.RoutingHint{NextHandler: "upsell", Confidence: 0.99})
	m := dialogue.NewMachine(dialogue.WithClassifier(c))
	s := domain.NewSession("sess-1")
	say(t, m, s, "I want a personal loan")

	// Engagement is not legal once needs assessment started.
	turn := say(t, m, s, "tell me more")
	assert.Equal(t, []string{domain.HandlerNeedsAssessment}, turn.Handlers)
}

func TestClassifier_OnlyConsultedForStageDefault(t *testing.T) {
	c := hintFor("", ports.RoutingHint{})
	m := dialogue.NewMachine(dialogue.WithVerifier(goodBureau()), dialogue.WithClassifier(c))
	s := domain.NewSession("sess-1")
	say(t, m, s, fullApplication)
	require.Equal(t, 1, c.calls)

	say(t, m, s, "how is the EMI calculated?")
	say(t, m, s, "this is too expensive")
	say(t, m, s, "change salary to 90k")
	say(t, m, s, "what if I paid 6k as EMI?")
	say(t, m, s, "no")
	assert.Equal(t, 1, c.calls)

	// The classifier sees a copy of the record and recent history.
	cc := c.seen[0]
	assert.Equal(t, "sess-1", cc.ConversationID)
	assert.Equal(t, domain.StageEngagement, cc.Stage)
	require.Len(t, cc.Recent, 1)
	assert.Equal(t, fullApplication, cc.Recent[0].Content)
}
