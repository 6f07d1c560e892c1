package dialogue

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/lendflow/pkg/detect"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/aretw0/lendflow/pkg/rules"
)

func (m *Machine) objection(kind string) handlerFunc {
	return func(_ context.Context, _ *turnState) domain.Result {
		return domain.Result{
			Handler:    domain.HandlerObjection,
			Response:   detect.ObjectionReply(kind),
			NextAction: "address_concern",
			Actions:    []string{"provide_reassurance", "offer_additional_info"},
		}
	}
}

// emiPreview is the installment the current record would carry at sanction terms.
type emiPreview struct {
	EMI    float64
	Tenure int
	Rate   float64
	OK     bool
}

func (m *Machine) preview(r *domain.ApplicationRecord) emiPreview {
	loan := domain.Deref(r.LoanAmount)
	if loan <= 0 {
		return emiPreview{}
	}
	rate := m.rules.Config().Sanction.InterestRate
	tenure := m.tenure(r)
	return emiPreview{
		EMI:    rules.RoundMoney(rules.EMI(loan, rate, tenure)),
		Tenure: tenure,
		Rate:   rate,
		OK:     true,
	}
}

func (m *Machine) modification(ctx context.Context, ts *turnState) domain.Result {
	s := ts.session
	r := ts.record()

	changes := extract.ExtractChanges(ts.message)
	if ts.hint != nil {
		changes = changes.Merge(ts.hint.ExtractedData)
	}
	if changes.IsEmpty() {
		if !s.Stage.Before(domain.StageSanction) {
			return m.reopen(ctx, ts)
		}
		if s.Stage.Before(domain.StageVerification) && !r.RequirementsComplete() {
			return domain.Result{
				Handler:    domain.HandlerModification,
				Response:   requirementsPrompt(r),
				NextAction: NextGatherRemaining,
				Display:    requirementsDisplay(r),
			}
		}
		return domain.Result{
			Handler:    domain.HandlerModification,
			Response:   "Sure. What would you like to change? You can update your " + humanList(humanFields(domain.RequiredFields)) + ".",
			NextAction: NextGatherChanges,
		}
	}

	before := m.preview(r)
	changed := r.ApplyExtractedFields(changes, true)
	if len(changed) == 0 {
		return domain.Result{
			Handler:    domain.HandlerModification,
			Response:   "Those details already match your application. Is there anything else you'd like to change?",
			NextAction: NextGatherChanges,
			Display:    requirementsDisplay(r),
		}
	}

	earliest := domain.FieldStage(changed[0])
	for _, f := range changed[1:] {
		if st := domain.FieldStage(f); st.Before(earliest) {
			earliest = st
		}
	}
	cleared := r.ResetDownstreamFrom(earliest)
	if len(cleared) > 0 {
		m.enter(ctx, ts, domain.StageNeedsAssessment)
	}
	if slices.Contains(changed, domain.FieldLoanAmount) {
		s.PendingEMIAdjustment = nil
	}
	s.ConversationEnded = false
	after := m.preview(r)

	m.logger.Info("application modified",
		"conversation_id", s.ID,
		"fields", fieldNames(changed),
		"cleared", cleared)

	updates := make([]string, 0, len(changed))
	for _, f := range changed {
		updates = append(updates, fmt.Sprintf("%s to %s", f.Humanize(), fieldValue(r, f)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've updated your %s.", humanList(updates))
	switch {
	case before.OK && after.OK && before.EMI == after.EMI:
		fmt.Fprintf(&b, " Your estimated EMI stays at %s per month over %d months.", Rupees(after.EMI), after.Tenure)
	case before.OK && after.OK:
		fmt.Fprintf(&b, " Your estimated EMI changes from %s to %s per month over %d months.", Rupees(before.EMI), Rupees(after.EMI), after.Tenure)
	case after.OK:
		fmt.Fprintf(&b, " Your estimated EMI is %s per month over %d months.", Rupees(after.EMI), after.Tenure)
	}

	actions := []string{"apply_changes"}
	switch {
	case len(cleared) > 0:
		stages := make([]string, 0, len(cleared))
		for _, st := range cleared {
			stages = append(stages, humanize(string(st)))
		}
		fmt.Fprintf(&b, " Since this affects your %s, I'll need to run those again. Shall I proceed with the updated details?", humanList(stages))
		actions = append(actions, "reset_downstream")
	case r.RequirementsComplete():
		b.WriteString(" Shall I proceed with the updated details?")
	default:
		fmt.Fprintf(&b, " I still need your %s.", humanList(humanFields(r.MissingRequirements())))
	}

	data := map[string]any{
		"changed":        fieldNames(changed),
		"cleared_stages": cleared,
	}
	if before.OK {
		data["emi_before"] = before.EMI
	}
	if after.OK {
		data["emi_after"] = after.EMI
		data["tenure_months"] = after.Tenure
		data["interest_rate"] = after.Rate
	}
	return domain.Result{
		Handler:    domain.HandlerModification,
		Response:   b.String(),
		NextAction: "confirm_changes",
		Actions:    actions,
		Display:    &domain.Display{Kind: domain.DisplayEMIPreview, Data: data},
	}
}

const emiFormula = "Your EMI is calculated with the standard reducing-balance formula: EMI = P × r × (1 + r)^n / ((1 + r)^n − 1), where P is the loan amount, r is the monthly interest rate (annual rate ÷ 12 ÷ 100) and n is the tenure in months."

func (m *Machine) explainEMI(_ context.Context, ts *turnState) domain.Result {
	r := ts.record()
	res := domain.Result{
		Handler:    domain.HandlerEMIExplanation,
		NextAction: "explain_emi",
		Actions:    []string{"explain_emi_formula"},
	}

	loan := domain.Deref(r.LoanAmount)
	if loan <= 0 {
		res.Response = emiFormula + " Tell me your loan amount and I'll work it out for you."
		return res
	}

	rate := m.rules.Config().Sanction.InterestRate
	if r.InterestRate != nil {
		rate = *r.InterestRate
	}
	tenure := m.tenure(r)
	if r.TenureMonths != nil {
		tenure = *r.TenureMonths
	}
	emi := rules.RoundMoney(rules.EMI(loan, rate, tenure))
	total := rules.RoundMoney(emi * float64(tenure))

	res.Response = fmt.Sprintf("%s For your loan of %s at %s over %d months, r = %s, so your EMI comes to %s per month and you repay %s in total.",
		emiFormula, Rupees(loan), Percent(rate), tenure,
		strconv.FormatFloat(rate/12/100, 'f', 6, 64), Rupees(emi), Rupees(total))
	res.Display = &domain.Display{
		Kind: domain.DisplayEMIPreview,
		Data: map[string]any{
			"loan_amount":   loan,
			"interest_rate": rate,
			"tenure_months": tenure,
			"emi_after":     emi,
			"schedule":      rules.AmortizationSchedule(loan, rate, tenure, scheduleRows),
		},
	}
	return res
}

func (m *Machine) explainDecision(_ context.Context, ts *turnState) domain.Result {
	r := ts.record()
	res := domain.Result{
		Handler:    domain.HandlerDecisionExplanation,
		NextAction: "explain_decision",
		Actions:    []string{"explain_decision"},
	}
	if r.Decision == "" {
		res.Response = "We haven't made a decision on your application yet. Once your details are verified and assessed, I can walk you through it."
		res.NextAction = "continue_application"
		return res
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your application is %s (%s). %s.",
		humanize(string(r.Decision)), humanize(r.ApprovalPath), r.DecisionReason)
	fmt.Fprintf(&b, " Your credit score of %d puts you in the %s risk category with a risk score of %d, and the EMI would take %.0f%% of your monthly income.",
		domain.Deref(r.CreditScore), r.RiskCategory, domain.Deref(r.RiskScore), domain.Deref(r.DTIRatio)*100)
	if r.Escalation != nil && r.Escalation.Required {
		reasons := make([]string, 0, len(r.Escalation.Reasons))
		for _, reason := range r.Escalation.Reasons {
			reasons = append(reasons, humanize(reason))
		}
		fmt.Fprintf(&b, " It has also been flagged for a relationship manager (%s).", humanList(reasons))
	}
	if r.Decision == domain.DecisionRejected && r.EligibleLimit != nil {
		fmt.Fprintf(&b, " Bringing your loan amount closer to your eligible limit of %s may help.", Rupees(*r.EligibleLimit))
	}
	res.Response = b.String()
	res.Display = decisionDisplay(r)
	return res
}

// whatIf answers "what can I borrow for this EMI" across the tenure ladder and keeps the
// suggested terms as a pending adjustment.
func (m *Machine) whatIf(emi float64) handlerFunc {
	return func(_ context.Context, ts *turnState) domain.Result {
		s := ts.session
		if emi <= 0 {
			return domain.Result{
				Handler:    domain.HandlerHypotheticalEMI,
				Response:   "Could you tell me the monthly EMI you have in mind?",
				NextAction: "ask_emi",
			}
		}

		policy := m.rules.Config().Sanction
		ladder := slices.Clone(policy.TenureLadder)
		slices.Sort(ladder)

		options := make([]domain.TenureOption, 0, len(ladder))
		for _, n := range ladder {
			options = append(options, domain.TenureOption{
				TenureMonths: n,
				Principal:    rules.RoundMoney(rules.ReversePrincipal(emi, policy.InterestRate, n)),
			})
		}

		loan := domain.Deref(s.Record.LoanAmount)
		adj := &domain.EMIAdjustment{
			EMI:          emi,
			InterestRate: policy.InterestRate,
			Options:      options,
			CreatedAt:    m.now(),
		}
		fits := false
		for _, o := range options {
			if loan > 0 && o.Principal >= loan {
				adj.LoanAmount, adj.TenureMonths, fits = loan, o.TenureMonths, true
				break
			}
		}
		if !fits {
			longest := options[len(options)-1]
			adj.LoanAmount, adj.TenureMonths = math.Floor(longest.Principal), longest.TenureMonths
		}
		s.PendingEMIAdjustment = adj

		var b strings.Builder
		fmt.Fprintf(&b, "With an EMI of %s at %s, you could borrow:\n", Rupees(emi), Percent(policy.InterestRate))
		for _, o := range options {
			fmt.Fprintf(&b, "- %d months: %s\n", o.TenureMonths, Rupees(o.Principal))
		}
		switch {
		case fits:
			fmt.Fprintf(&b, "\nYour current loan of %s fits that EMI over %d months. Would you like me to set your tenure to %d months?",
				Rupees(loan), adj.TenureMonths, adj.TenureMonths)
		case loan > 0:
			fmt.Fprintf(&b, "\nTo keep the EMI at %s your loan would need to come down to %s over %d months. Would you like me to adjust your application?",
				Rupees(emi), Rupees(adj.LoanAmount), adj.TenureMonths)
		default:
			fmt.Fprintf(&b, "\nWould you like me to set your loan to %s over %d months?", Rupees(adj.LoanAmount), adj.TenureMonths)
		}

		return domain.Result{
			Handler:    domain.HandlerHypotheticalEMI,
			Response:   b.String(),
			NextAction: "confirm_emi_adjustment",
			Actions:    []string{"calculate_reverse_emi"},
			Display: &domain.Display{
				Kind: domain.DisplayEMIOptions,
				Data: map[string]any{
					"emi":              emi,
					"interest_rate":    policy.InterestRate,
					"options":          options,
					"suggested_loan":   adj.LoanAmount,
					"suggested_tenure": adj.TenureMonths,
				},
			},
		}
	}
}

// lastComplete is the furthest stage whose outputs are still valid.
func lastComplete(r *domain.ApplicationRecord) domain.Stage {
	switch {
	case r.SanctionComplete:
		return domain.StageSanction
	case r.UnderwritingComplete:
		return domain.StageUnderwriting
	case r.VerificationComplete:
		return domain.StageVerification
	}
	return domain.StageNeedsAssessment
}

func (m *Machine) confirmAdjustment(ctx context.Context, ts *turnState) domain.Result {
	s := ts.session
	r := ts.record()
	adj := s.PendingEMIAdjustment
	if adj == nil {
		return m.reprompt(ctx, ts)
	}
	s.PendingEMIAdjustment = nil

	// The decision depends on the installment through DTI, so new terms re-run underwriting.
	termsChanged := domain.Deref(r.LoanAmount) != adj.LoanAmount || m.tenure(r) != adj.TenureMonths
	r.LoanAmount = domain.Float(adj.LoanAmount)
	r.PreferredTenureMonths = domain.Int(adj.TenureMonths)

	from := domain.StageSanction
	if termsChanged {
		from = domain.StageUnderwriting
	}
	r.ResetDownstreamFrom(from)
	s.ConversationEnded = false
	if target := lastComplete(r); target.Before(s.Stage) {
		m.enter(ctx, ts, target)
	}

	m.logger.Info("emi adjustment applied",
		"conversation_id", s.ID,
		"loan_amount", adj.LoanAmount,
		"tenure_months", adj.TenureMonths)

	response := fmt.Sprintf("Done! I've updated your application to a loan of %s over %d months.", Rupees(adj.LoanAmount), adj.TenureMonths)
	if r.VerificationComplete {
		response += " Let me recalculate your offer."
	}
	return domain.Result{
		Handler:    domain.HandlerConfirmation,
		Response:   response,
		NextAction: "recalculate_offer",
		Actions:    []string{"apply_emi_adjustment"},
	}
}

func (m *Machine) rejectAdjustment(_ context.Context, ts *turnState) domain.Result {
	ts.session.PendingEMIAdjustment = nil
	return domain.Result{
		Handler:    domain.HandlerRejection,
		Response:   "No problem, I'll keep your current loan terms. Is there anything else I can help you with?",
		NextAction: "continue_application",
		Actions:    []string{"discard_emi_adjustment"},
	}
}

// reprompt repeats what the current stage is waiting for, without touching the record.
func (m *Machine) reprompt(_ context.Context, ts *turnState) domain.Result {
	s := ts.session
	r := ts.record()
	res := domain.Result{Handler: domain.HandlerReprompt}

	switch s.Stage {
	case domain.StageEngagement:
		res.Response, res.NextAction = engagementPrompt, NextGatherRequirements
	case domain.StageNeedsAssessment:
		if r.RequirementsComplete() {
			res.Response = "Okay, I'll hold off for now. Tell me if there's anything you'd like to change, or let me know when you're ready to continue."
		} else {
			res.Response = requirementsPrompt(r)
		}
		res.NextAction = NextGatherRemaining
	case domain.StageSanction, domain.StageClosure:
		res.Response, res.NextAction = finalizePrompt, NextConfirmOrModify
	default:
		res.Response = "No problem. Let me know if you have any questions about your application, or tell me what you'd like to change."
		res.NextAction = "await_input"
	}
	return res
}
