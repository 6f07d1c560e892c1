package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lendflow/pkg/detect"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/aretw0/lendflow/pkg/rules"
)

// Verification sources recorded on the application.
const (
	VerificationBureau   = "bureau"
	VerificationFallback = "fallback"
)

const (
	engagementPrompt = "Hello! I'm here to help you with your personal loan application. To get started, could you please tell me the loan amount you're looking for, your monthly salary, your employment type and the city you live in?"
	verifyingNotice  = "I'm now verifying your details with our system. This will help determine your eligible loan amount."
	closingMessage   = "Congratulations! Your loan application is complete. Your sanction letter is ready for download. A relationship manager will contact you shortly to complete the documentation process."
	finalizePrompt   = "Would you like to finalize your application, or make any changes?"
	changesPrompt    = "No problem. What would you like to change? You can update your loan amount, monthly salary, employment status or city of residence."
)

// Next actions.
const (
	NextGatherRequirements  = "gather_requirements"
	NextGatherRemaining     = "gather_remaining_requirements"
	NextStartVerification   = "start_verification"
	NextStartUnderwriting   = "start_underwriting"
	NextPrepareSanction     = "prepare_sanction"
	NextReviewOptions       = "review_options"
	NextGenerateLetter      = "generate_sanction_letter"
	NextCompleteApplication = "complete_application"
	NextConfirmOrModify     = "confirm_or_modify"
	NextGatherChanges       = "gather_changes"
)

func (m *Machine) engagement(_ context.Context, ts *turnState) domain.Result {
	if ts.loanIntent {
		// Needs assessment picks the message up in the cascade.
		return domain.Result{Handler: domain.HandlerEngagement}
	}
	// Details given before any loan intent are kept but do not start the journey.
	if changed := ts.record().ApplyExtractedFields(extract.Extract(ts.message, ts.record()), false); len(changed) > 0 {
		m.logger.Debug("requirements collected",
			"conversation_id", ts.session.ID,
			"fields", fieldNames(changed))
	}
	return domain.Result{
		Handler:    domain.HandlerEngagement,
		Response:   engagementPrompt,
		NextAction: NextGatherRequirements,
		Actions:    []string{"ask_loan_amount", "ask_salary", "ask_employment_status", "ask_city"},
	}
}

func (m *Machine) needsAssessment(_ context.Context, ts *turnState) domain.Result {
	r := ts.record()

	fields := extract.Extract(ts.message, r)
	if ts.hint != nil {
		fields = fields.Merge(ts.hint.ExtractedData)
	}
	if changed := r.ApplyExtractedFields(fields, false); len(changed) > 0 {
		m.logger.Debug("requirements collected",
			"conversation_id", ts.session.ID,
			"fields", fieldNames(changed))
	}

	res := domain.Result{
		Handler: domain.HandlerNeedsAssessment,
		Actions: []string{"continue_gathering_info"},
		Display: requirementsDisplay(r),
	}
	if r.RequirementsComplete() {
		res.Response = fmt.Sprintf(
			"Thank you for providing the details. I see you're looking for a loan of %s with a monthly salary of %s. Now I'll verify your eligibility.",
			Rupees(domain.Deref(r.LoanAmount)), Rupees(domain.Deref(r.Salary)))
		res.NextAction = NextStartVerification
		return res
	}
	res.Response = requirementsPrompt(r)
	res.NextAction = NextGatherRemaining
	return res
}

// requirementsPrompt acknowledges what was collected and asks for the rest.
func requirementsPrompt(r *domain.ApplicationRecord) string {
	missing := humanList(humanFields(r.MissingRequirements()))
	got := r.CollectedRequirements()
	if len(got) == 0 {
		return "To get started, could you please tell me your " + missing + "?"
	}

	parts := make([]string, 0, len(got))
	for _, f := range got {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Humanize(), fieldValue(r, f)))
	}
	return fmt.Sprintf("Thanks! So far I have your %s. Could you please provide your %s to proceed with your application?",
		humanList(parts), missing)
}

func requirementsDisplay(r *domain.ApplicationRecord) *domain.Display {
	return &domain.Display{
		Kind: domain.DisplayRequirements,
		Data: map[string]any{
			"collected": collected(r),
			"missing":   fieldNames(r.MissingRequirements()),
		},
	}
}

func (m *Machine) verification(ctx context.Context, ts *turnState) domain.Result {
	r := ts.record()
	res := domain.Result{
		Handler:    domain.HandlerVerification,
		NextAction: NextStartUnderwriting,
		Actions:    []string{"verify_credit", "verify_kyc", "calculate_eligibility"},
	}

	if r.VerificationComplete {
		res.Response = fmt.Sprintf("Your details are already verified. With a credit score of %d you're eligible for a loan up to %s.",
			domain.Deref(r.CreditScore), Rupees(domain.Deref(r.EligibleLimit)))
		res.Actions = nil
		res.Display = verificationDisplay(r)
		return res
	}
	if !r.RequirementsComplete() {
		res.Response = requirementsPrompt(r)
		res.NextAction = NextGatherRemaining
		res.Actions = nil
		return res
	}

	identifier, kind := identify(ts.session)
	result, err := m.verify(ctx, identifier, kind)
	source := VerificationBureau
	if err != nil {
		m.logger.Warn("credit verification failed, using conservative default",
			"conversation_id", ts.session.ID,
			"identifier_type", kind,
			"err", err)
		result = m.fallbackVerification(r)
		source = VerificationFallback
	}

	r.CreditScore = domain.Int(result.CreditScore)
	r.KYCStatus = result.KYCStatus
	r.SalaryVerified = result.SalaryVerified
	r.EligibleLimit = domain.Float(result.EligibleLimit)
	r.RiskFlag = result.RiskFlag
	r.DocumentStatus = result.DocumentStatus
	r.VerificationSource = source
	if result.Segment != "" {
		if ov := m.rules.ApplyLimitOverride(result.EligibleLimit, result.Segment); ov.Approved {
			r.EligibleLimit = domain.Float(ov.NewLimit)
			r.LimitOverride = result.Segment
		}
	}
	if err := r.MarkStageComplete(domain.StageVerification); err != nil {
		m.logger.Error("verification incomplete", "conversation_id", ts.session.ID, "err", err)
	}

	var b strings.Builder
	b.WriteString(verifyingNotice)
	b.WriteString("\n\n")
	if source == VerificationFallback {
		fmt.Fprintf(&b, "I couldn't reach our credit bureau just now, so I've used a conservative assessment based on your declared salary: you're eligible for a loan up to %s. You can say \"retry verification\" at any time to check again.",
			Rupees(domain.Deref(r.EligibleLimit)))
		res.Actions = append(res.Actions, "offer_verification_retry")
	} else {
		salary := "declared"
		if r.SalaryVerified {
			salary = "verified"
		}
		fmt.Fprintf(&b, "Great news! Your verification is complete. Based on your credit score of %d and %s salary, you're eligible for a loan up to %s.",
			domain.Deref(r.CreditScore), salary, Rupees(domain.Deref(r.EligibleLimit)))
		if r.LimitOverride != "" {
			fmt.Fprintf(&b, " This includes the uplift for %s customers.", humanize(r.LimitOverride))
		}
	}
	res.Response = b.String()
	res.Display = verificationDisplay(r)
	return res
}

func (m *Machine) verify(ctx context.Context, identifier string, kind ports.IdentifierType) (ports.VerificationResult, error) {
	if m.verifier == nil {
		return ports.VerificationResult{}, errNoVerifier
	}
	res, err := m.verifier.Verify(ctx, identifier, kind)
	if err != nil {
		return ports.VerificationResult{}, err
	}
	if res.KYCStatus == "" || res.DocumentStatus == "" {
		return ports.VerificationResult{}, fmt.Errorf("incomplete verification result for %s", kind)
	}
	return res, nil
}

// fallbackVerification is the conservative result used when the bureau is unavailable.
func (m *Machine) fallbackVerification(r *domain.ApplicationRecord) ports.VerificationResult {
	fb := m.rules.Config().Fallback
	return ports.VerificationResult{
		CreditScore:    fb.CreditScore,
		KYCStatus:      fb.KYCStatus,
		EligibleLimit:  m.rules.FallbackLimit(domain.Deref(r.Salary)),
		RiskFlag:       fb.RiskFlag,
		DocumentStatus: fb.DocumentStatus,
	}
}

// identify picks the customer identifier for the bureau: mobile, then email, then the
// conversation id.
func identify(s *domain.Session) (string, ports.IdentifierType) {
	if v := s.Customer[CustomerMobile]; v != "" {
		return v, ports.IdentifierMobile
	}
	if v := s.Customer[CustomerEmail]; v != "" {
		return v, ports.IdentifierEmail
	}
	return s.ID, ports.IdentifierCustomer
}

func verificationDisplay(r *domain.ApplicationRecord) *domain.Display {
	return &domain.Display{
		Kind: domain.DisplayVerification,
		Data: map[string]any{
			"credit_score":        domain.Deref(r.CreditScore),
			"kyc_status":          r.KYCStatus,
			"salary_verified":     r.SalaryVerified,
			"eligible_limit":      domain.Deref(r.EligibleLimit),
			"document_status":     r.DocumentStatus,
			"verification_source": r.VerificationSource,
			"limit_override":      r.LimitOverride,
		},
	}
}

func (m *Machine) underwriting(ctx context.Context, ts *turnState) domain.Result {
	r := ts.record()
	if !r.VerificationComplete {
		return domain.Result{
			Handler:    domain.HandlerUnderwriting,
			Response:   "I need to finish verifying your details before I can assess your application.",
			NextAction: NextStartVerification,
		}
	}
	if r.UnderwritingComplete {
		return decisionResult(r)
	}

	cfg := m.rules.Config()
	loan := domain.Deref(r.LoanAmount)
	emi := rules.EMI(loan, cfg.Sanction.InterestRate, m.tenure(r))

	risk := m.rules.EvaluateCreditRisk(rules.RiskInput{
		CreditScore:   domain.Deref(r.CreditScore),
		MonthlyIncome: domain.Deref(r.Salary),
		EMI:           emi,
	})
	path := m.rules.DetermineApprovalPath(rules.ApprovalInput{
		LoanAmount:     loan,
		EligibleLimit:  domain.Deref(r.EligibleLimit),
		CreditScore:    domain.Deref(r.CreditScore),
		DocumentStatus: r.DocumentStatus,
		PreApproved:    r.PreApproved,
	})
	esc := m.rules.DetermineEscalation(rules.EscalationInput{
		LoanAmount:  loan,
		RiskScore:   risk.Score,
		ComplexCase: r.ComplexCase,
	})

	r.ApprovalPath = string(path.Path)
	r.Decision = path.Path.Decision()
	r.DecisionReason = path.Reason
	r.RiskCategory = string(risk.Category)
	r.RiskScore = domain.Int(risk.Score)
	r.DTIRatio = domain.Float(risk.DTIRatio)
	r.Escalation = nil
	if esc.Required {
		r.Escalation = &esc
	}
	if err := r.MarkStageComplete(domain.StageUnderwriting); err != nil {
		m.logger.Error("underwriting incomplete", "conversation_id", ts.session.ID, "err", err)
	}

	m.logger.Info("underwriting decision",
		"conversation_id", ts.session.ID,
		"decision", r.Decision,
		"approval_path", r.ApprovalPath,
		"risk_category", r.RiskCategory,
		"escalated", esc.Required,
		"rules_version", cfg.Version)
	if m.hooks.OnDecision != nil {
		m.hooks.OnDecision(ctx, &domain.DecisionEvent{
			EventBase:    m.base(domain.EventDecision, ts.session.ID),
			Decision:     r.Decision,
			ApprovalPath: r.ApprovalPath,
			Escalated:    esc.Required,
		})
	}
	return decisionResult(r)
}

// decisionResult renders the stored underwriting outcome.
func decisionResult(r *domain.ApplicationRecord) domain.Result {
	res := domain.Result{
		Handler:    domain.HandlerUnderwriting,
		NextAction: NextPrepareSanction,
		Actions:    []string{"apply_business_rules", "calculate_risk", "make_decision"},
		Display:    decisionDisplay(r),
	}

	switch r.Decision {
	case domain.DecisionApproved:
		res.Response = "Great news! Your loan application has been approved instantly based on your strong credentials."
	case domain.DecisionConditional:
		res.Response = "Your application qualifies for conditional approval. We'll need to review your salary slip to finalize the approval."
	case domain.DecisionRejected:
		res.Response = fmt.Sprintf("I'm sorry, we're unable to approve your application as it stands. %s. You can ask me why, or change your loan amount to try again.", r.DecisionReason)
		res.NextAction = NextReviewOptions
	default:
		res.Response = "We're processing your application and will verify a few more details before making a decision."
	}

	if r.Escalation != nil && r.Escalation.Required {
		reasons := make([]string, 0, len(r.Escalation.Reasons))
		for _, reason := range r.Escalation.Reasons {
			reasons = append(reasons, humanize(reason))
		}
		res.Response += fmt.Sprintf(" Because of the %s flags on this application, a relationship manager will also review it.", humanList(reasons))
		res.Actions = append(res.Actions, "escalate_to_relationship_manager")
	}
	return res
}

func decisionDisplay(r *domain.ApplicationRecord) *domain.Display {
	data := map[string]any{
		"decision":      string(r.Decision),
		"approval_path": r.ApprovalPath,
		"reason":        r.DecisionReason,
		"risk_category": r.RiskCategory,
		"risk_score":    domain.Deref(r.RiskScore),
		"dti_ratio":     domain.Deref(r.DTIRatio),
	}
	if r.Escalation != nil {
		data["escalation"] = *r.Escalation
	}
	return &domain.Display{Kind: domain.DisplayDecision, Data: data}
}

// tenure is the customer's chosen tenure, else the policy default.
func (m *Machine) tenure(r *domain.ApplicationRecord) int {
	if n := domain.Deref(r.PreferredTenureMonths); n > 0 {
		return n
	}
	return m.rules.Config().Sanction.TenureMonths
}

func (m *Machine) sanction(_ context.Context, ts *turnState) domain.Result {
	r := ts.record()
	if !r.UnderwritingComplete || r.Decision == domain.DecisionRejected {
		return domain.Result{
			Handler:    domain.HandlerSanction,
			Response:   "Your application needs a positive underwriting decision before I can prepare a sanction.",
			NextAction: NextReviewOptions,
		}
	}

	if !r.SanctionComplete {
		policy := m.rules.Config().Sanction
		loan := domain.Deref(r.LoanAmount)
		tenure := m.tenure(r)

		r.InterestRate = domain.Float(policy.InterestRate)
		r.TenureMonths = domain.Int(tenure)
		r.EMIAmount = domain.Float(rules.RoundMoney(rules.EMI(loan, policy.InterestRate, tenure)))
		r.ProcessingFee = domain.Float(m.rules.ProcessingFee(loan))
		r.DocumentRequirements = m.rules.SanctionDocuments(r.Decision == domain.DecisionApproved, r.ProvidedDocuments)
		if err := r.MarkStageComplete(domain.StageSanction); err != nil {
			m.logger.Error("sanction incomplete", "conversation_id", ts.session.ID, "err", err)
		}
		r.SanctionLetterGenerated = r.SanctionComplete
	}

	var b strings.Builder
	b.WriteString("Your loan has been sanctioned! Here are the details:\n")
	fmt.Fprintf(&b, "- Sanctioned Amount: %s\n", Rupees(domain.Deref(r.LoanAmount)))
	fmt.Fprintf(&b, "- Interest Rate: %s\n", Percent(domain.Deref(r.InterestRate)))
	fmt.Fprintf(&b, "- Monthly EMI: %s\n", Rupees(domain.Deref(r.EMIAmount)))
	fmt.Fprintf(&b, "- Tenure: %d months\n", domain.Deref(r.TenureMonths))
	fmt.Fprintf(&b, "- Processing Fee: %s\n", Rupees(domain.Deref(r.ProcessingFee)))
	if len(r.DocumentRequirements) > 0 {
		docs := make([]string, 0, len(r.DocumentRequirements))
		for _, d := range r.DocumentRequirements {
			docs = append(docs, humanize(d))
		}
		fmt.Fprintf(&b, "- Documents Required: %s\n", humanList(docs))
	}
	b.WriteString("\nI'll now generate your sanction letter for download. ")
	b.WriteString(finalizePrompt)

	return domain.Result{
		Handler:    domain.HandlerSanction,
		Response:   b.String(),
		NextAction: NextGenerateLetter,
		Actions:    []string{"calculate_sanction", "generate_document"},
		Display:    sanctionDisplay(r),
	}
}

// scheduleRows is how much of the amortization schedule the sanction display carries.
const scheduleRows = 12

func sanctionDisplay(r *domain.ApplicationRecord) *domain.Display {
	loan := domain.Deref(r.LoanAmount)
	rate := domain.Deref(r.InterestRate)
	tenure := domain.Deref(r.TenureMonths)
	return &domain.Display{
		Kind: domain.DisplaySanction,
		Data: map[string]any{
			"loan_amount":           loan,
			"interest_rate":         rate,
			"emi_amount":            domain.Deref(r.EMIAmount),
			"tenure_months":         tenure,
			"processing_fee":        domain.Deref(r.ProcessingFee),
			"document_requirements": r.DocumentRequirements,
			"schedule":              rules.AmortizationSchedule(loan, rate, tenure, scheduleRows),
		},
	}
}

func (m *Machine) closure(ctx context.Context, ts *turnState) domain.Result {
	s := ts.session
	switch detect.ClassifyReply(ts.message) {
	case detect.ReplyWantChanges:
		return m.reopen(ctx, ts)
	case detect.ReplyAffirm, detect.ReplyDecline:
		// "yes, finalize" and "no more changes" both close the application.
		if !s.ConversationEnded {
			m.logger.Info("application closed", "conversation_id", s.ID)
		}
		s.ConversationEnded = true
		m.enter(ctx, ts, domain.StageClosure)
		return domain.Result{
			Handler:    domain.HandlerClosure,
			Response:   closingMessage,
			NextAction: NextCompleteApplication,
			Actions:    []string{"send_confirmation", "schedule_follow_up"},
		}
	}

	if s.ConversationEnded {
		return domain.Result{
			Handler:    domain.HandlerClosure,
			Response:   "Your application is complete and your sanction letter is ready. If you'd like to change anything, just tell me what to update.",
			NextAction: NextCompleteApplication,
		}
	}
	return domain.Result{
		Handler:    domain.HandlerClosure,
		Response:   finalizePrompt,
		NextAction: NextConfirmOrModify,
	}
}

// reopen clears every decision and returns to needs assessment so the customer can edit.
func (m *Machine) reopen(ctx context.Context, ts *turnState) domain.Result {
	s := ts.session
	cleared := s.Record.ResetDownstreamFrom(domain.StageVerification)
	s.ConversationEnded = false
	m.enter(ctx, ts, domain.StageNeedsAssessment)
	m.logger.Info("application reopened", "conversation_id", s.ID, "cleared", cleared)
	return domain.Result{
		Handler:    domain.HandlerClosure,
		Response:   changesPrompt,
		NextAction: NextGatherChanges,
		Actions:    []string{"reopen_application"},
		Display:    requirementsDisplay(&s.Record),
	}
}
