package dialogue

import (
	"context"

	"github.com/aretw0/lendflow/pkg/detect"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/aretw0/lendflow/pkg/ports"
)

// route picks exactly one handler for the message and runs it. It reports whether the
// cascade may follow.
func (m *Machine) route(ctx context.Context, ts *turnState) bool {
	s := ts.session
	r := ts.record()
	text := ts.message
	reply := detect.ClassifyReply(text)

	if s.PendingEMIAdjustment != nil {
		switch reply {
		case detect.ReplyAffirm:
			return m.dispatch(ctx, ts, domain.HandlerConfirmation)
		case detect.ReplyDecline:
			return m.dispatch(ctx, ts, domain.HandlerRejection)
		}
	}

	if q := detect.ExplanationQuestion(text); q.Kind != detect.QuestionNone {
		if q.Kind == detect.QuestionHypotheticEMI {
			m.run(ctx, ts, domain.HandlerHypotheticalEMI, m.whatIf(q.EMI), false)
			return false
		}
		return m.dispatch(ctx, ts, string(q.Kind))
	}

	if m.isModification(ts) {
		return m.dispatch(ctx, ts, domain.HandlerModification)
	}

	// A plain "no need" answers the offer to change a completed sanction.
	if s.Stage == domain.StageSanction && r.SanctionComplete && reply == detect.ReplyDecline {
		return m.dispatch(ctx, ts, domain.HandlerClosure)
	}

	if obj := detect.Objection(text); obj != nil {
		ts.turn.Objection = obj
		m.run(ctx, ts, domain.HandlerObjection, m.objection(obj.Type), false)
		// Data given alongside the objection is still collected.
		if s.Stage.Before(domain.StageVerification) && !extract.Extract(text, r).IsEmpty() {
			return m.dispatch(ctx, ts, defaultHandler(ts, reply))
		}
		return false
	}

	return m.stageDefault(ctx, ts, reply)
}

// isModification applies the edit detector, except that before verification a bare number
// filling a missing requirement is an answer rather than an edit.
func (m *Machine) isModification(ts *turnState) bool {
	r := ts.record()
	if !detect.IsModification(ts.message, r) {
		return false
	}
	if ts.session.Stage.Before(domain.StageVerification) && !detect.ExplicitEdit(ts.message) {
		return extract.Extract(ts.message, r).IsEmpty()
	}
	return true
}

// defaultHandler names the handler the current stage runs for an ordinary message.
func defaultHandler(ts *turnState, reply detect.Reply) string {
	s := ts.session
	r := ts.record()

	if r.VerificationSource == VerificationFallback &&
		!s.Stage.Before(domain.StageVerification) &&
		detect.IsRetryVerification(ts.message) {
		return handlerRetryVerification
	}

	switch s.Stage {
	case domain.StageEngagement:
		return domain.HandlerEngagement
	case domain.StageNeedsAssessment:
		if reply == detect.ReplyDecline {
			return domain.HandlerReprompt
		}
		return domain.HandlerNeedsAssessment
	case domain.StageVerification, domain.StageUnderwriting:
		if reply == detect.ReplyDecline {
			return domain.HandlerReprompt
		}
		return string(s.Stage)
	case domain.StageSanction:
		if r.SanctionComplete {
			return domain.HandlerClosure
		}
		return domain.HandlerSanction
	}
	return domain.HandlerClosure
}

// handlerRetryVerification re-runs a verification that fell back to the conservative default.
const handlerRetryVerification = "retry_verification"

// stageDefault runs the stage's default handler, or a legal classifier substitute.
func (m *Machine) stageDefault(ctx context.Context, ts *turnState, reply detect.Reply) bool {
	name := defaultHandler(ts, reply)
	if hint, ok := m.consult(ctx, ts, name); ok {
		ts.hint = &hint
		name = hint.NextHandler
	}
	return m.dispatch(ctx, ts, name)
}

// consult asks the classifier for a hint and reports whether it may replace fallback.
func (m *Machine) consult(ctx context.Context, ts *turnState, fallback string) (ports.RoutingHint, bool) {
	if m.classifier == nil {
		return ports.RoutingHint{}, false
	}
	s := ts.session

	start := m.now()
	hint, err := m.classifier.Analyze(ctx, ts.message, m.classifierContext(s))
	hint.NextHandler = normalizeHandler(hint.NextHandler)

	accepted := err == nil &&
		hint.Confidence >= m.threshold &&
		m.legal(ts, hint, fallback)

	switch {
	case err != nil:
		m.logger.Warn("classifier failed, using deterministic routing",
			"conversation_id", s.ID, "err", err)
	case !accepted:
		m.logger.Debug("classifier hint ignored",
			"conversation_id", s.ID,
			"handler", hint.NextHandler,
			"confidence", hint.Confidence,
			"default", fallback)
	default:
		m.logger.Debug("classifier hint followed",
			"conversation_id", s.ID,
			"handler", hint.NextHandler,
			"confidence", hint.Confidence,
			"reasoning", hint.Reasoning)
	}

	if m.hooks.OnClassifier != nil {
		m.hooks.OnClassifier(ctx, &domain.ClassifierEvent{
			EventBase:  m.base(domain.EventClassifier, s.ID),
			Source:     hint.Source,
			Accepted:   accepted,
			Confidence: hint.Confidence,
			Duration:   m.now().Sub(start),
			Err:        err,
		})
	}
	return hint, accepted
}

func (m *Machine) classifierContext(s *domain.Session) ports.ClassifierContext {
	recent := s.History
	if len(recent) > recentMessages {
		recent = recent[len(recent)-recentMessages:]
	}
	return ports.ClassifierContext{
		ConversationID:    s.ID,
		Stage:             s.Stage,
		Record:            s.Record.Clone(),
		PendingAdjustment: s.PendingEMIAdjustment != nil,
		Ended:             s.ConversationEnded,
		Recent:            append([]domain.Message(nil), recent...),
	}
}

var knownHandlers = map[string]bool{
	domain.HandlerEngagement:          true,
	domain.HandlerNeedsAssessment:     true,
	domain.HandlerVerification:        true,
	domain.HandlerUnderwriting:        true,
	domain.HandlerSanction:            true,
	domain.HandlerClosure:             true,
	domain.HandlerObjection:           true,
	domain.HandlerModification:        true,
	domain.HandlerEMIExplanation:      true,
	domain.HandlerDecisionExplanation: true,
	domain.HandlerHypotheticalEMI:     true,
	domain.HandlerConfirmation:        true,
	domain.HandlerRejection:           true,
	domain.HandlerReprompt:            true,
}

// normalizeHandler maps unknown handler tags to engagement.
func normalizeHandler(tag string) string {
	if knownHandlers[tag] {
		return tag
	}
	return domain.HandlerEngagement
}

// legal reports whether a classifier may send this message to hint.NextHandler.
func (m *Machine) legal(ts *turnState, hint ports.RoutingHint, fallback string) bool {
	s := ts.session
	switch hint.NextHandler {
	case domain.HandlerEngagement:
		return s.Stage == domain.StageEngagement
	case domain.HandlerNeedsAssessment:
		return s.Stage.Before(domain.StageVerification)
	case domain.HandlerVerification, domain.HandlerUnderwriting,
		domain.HandlerSanction, domain.HandlerClosure:
		return hint.NextHandler == fallback
	case domain.HandlerModification:
		return s.Record.HasAnyField()
	case domain.HandlerHypotheticalEMI:
		return domain.Deref(hint.HypotheticalEMIAmount) > 0
	case domain.HandlerConfirmation, domain.HandlerRejection:
		return s.PendingEMIAdjustment != nil
	case domain.HandlerObjection, domain.HandlerEMIExplanation,
		domain.HandlerDecisionExplanation, domain.HandlerReprompt:
		return true
	}
	return false
}

// dispatch runs a named handler and reports whether the cascade may follow.
func (m *Machine) dispatch(ctx context.Context, ts *turnState, name string) bool {
	s := ts.session
	switch name {
	case domain.HandlerEngagement:
		m.run(ctx, ts, name, m.engagement, false)
		return true
	case domain.HandlerNeedsAssessment:
		m.enter(ctx, ts, domain.StageNeedsAssessment)
		m.run(ctx, ts, name, m.needsAssessment, false)
		return true
	case domain.HandlerVerification:
		m.run(ctx, ts, name, m.verification, false)
		return true
	case handlerRetryVerification:
		ts.record().ResetDownstreamFrom(domain.StageVerification)
		s.ConversationEnded = false
		m.enter(ctx, ts, domain.StageVerification)
		m.run(ctx, ts, domain.HandlerVerification, m.verification, false)
		return true
	case domain.HandlerUnderwriting:
		m.run(ctx, ts, name, m.underwriting, false)
		return true
	case domain.HandlerSanction:
		m.run(ctx, ts, name, m.sanction, false)
		return true
	case domain.HandlerClosure:
		m.run(ctx, ts, name, m.closure, false)
	case domain.HandlerObjection:
		kind := ""
		if obj := detect.Objection(ts.message); obj != nil {
			ts.turn.Objection = obj
			kind = obj.Type
		}
		m.run(ctx, ts, name, m.objection(kind), false)
	case domain.HandlerModification:
		m.run(ctx, ts, name, m.modification, false)
	case domain.HandlerEMIExplanation:
		m.run(ctx, ts, name, m.explainEMI, false)
	case domain.HandlerDecisionExplanation:
		m.run(ctx, ts, name, m.explainDecision, false)
	case domain.HandlerHypotheticalEMI:
		amount := 0.0
		if ts.hint != nil {
			amount = domain.Deref(ts.hint.HypotheticalEMIAmount)
		}
		m.run(ctx, ts, name, m.whatIf(amount), false)
	case domain.HandlerConfirmation:
		m.run(ctx, ts, name, m.confirmAdjustment, false)
		return true
	case domain.HandlerRejection:
		m.run(ctx, ts, name, m.rejectAdjustment, false)
	default:
		m.run(ctx, ts, domain.HandlerReprompt, m.reprompt, false)
	}
	return false
}
