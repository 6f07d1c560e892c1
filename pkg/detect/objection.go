package detect

import (
	"regexp"

	"github.com/aretw0/lendflow/pkg/domain"
)

// Objection categories.
const (
	ObjectionCost          = "cost_concern"
	ObjectionUncertainty   = "uncertainty"
	ObjectionDelay         = "delay"
	ObjectionNotInterested = "not_interested"
	ObjectionCredit        = "credit_concern"
	ObjectionProcess       = "process_concern"
	ObjectionAlternative   = "alternative"
)

// ObjectionRule maps a pattern to a category and its reassurance reply.
type ObjectionRule struct {
	Type    string
	Pattern *regexp.Regexp
	Reply   string
}

// ObjectionRules are evaluated in order; the first match wins.
var ObjectionRules = []ObjectionRule{
	{
		Type:    ObjectionCost,
		Pattern: regexp.MustCompile(`(?i)\b(expensive|costly|too much|high|prices?|fees?)\b`),
		Reply:   "I understand you're concerned about the cost. We offer competitive rates starting from 10.5%, and I can show you how our EMI calculator works to find an affordable option for you.",
	},
	{
		Type:    ObjectionUncertainty,
		Pattern: regexp.MustCompile(`(?i)\b(not sure|unsure|doubt|think about it|consider)\b`),
		Reply:   "It's completely normal to want time to consider. I can provide you with all the details and answer any questions you might have to help you make an informed decision.",
	},
	{
		Type:    ObjectionDelay,
		Pattern: regexp.MustCompile(`(?i)\b(need to think|think about|consider|consult|discuss)\b`),
		Reply:   "I understand you need time to think about it. Would it help if I provided you with a summary of the benefits and terms so you can review them?",
	},
	{
		Type:    ObjectionNotInterested,
		Pattern: regexp.MustCompile(`(?i)\b(not interested|not need|no need|not looking)\b`),
		Reply:   "I understand. Is there a specific reason you're not interested? Perhaps I can address any concerns you might have.",
	},
	{
		Type:    ObjectionCredit,
		Pattern: regexp.MustCompile(`(?i)\b(bad credit|credit score|credit history)\b`),
		Reply:   "Don't worry about your credit score. We have solutions for various credit profiles, and I can guide you on how to improve your eligibility.",
	},
	{
		Type:    ObjectionProcess,
		Pattern: regexp.MustCompile(`(?i)\b(complicated|difficult|complex|hard|tricky)\b`),
		Reply:   "I assure you that our loan process is simple and straightforward. I'll guide you through each step, and you'll find it quite easy.",
	},
	{
		Type:    ObjectionAlternative,
		Pattern: regexp.MustCompile(`(?i)\b(other banks?|another bank|other institution|another place|competitors?)\b`),
		Reply:   "I understand you might be comparing options. I can highlight what makes our personal loan offering unique and why many customers choose us.",
	},
}

// DefaultObjectionReply is used for categories without a dedicated reply.
const DefaultObjectionReply = "I understand your concern. Can you please share more details so I can assist you better?"

// Objection returns the first objection category the message matches, or nil.
func Objection(message string) *domain.ObjectionInfo {
	for _, r := range ObjectionRules {
		if r.Pattern.MatchString(message) {
			return &domain.ObjectionInfo{Type: r.Type, Pattern: r.Pattern.String()}
		}
	}
	return nil
}

// ObjectionReply returns the reassurance reply for a category.
func ObjectionReply(kind string) string {
	for _, r := range ObjectionRules {
		if r.Type == kind {
			return r.Reply
		}
	}
	return DefaultObjectionReply
}
