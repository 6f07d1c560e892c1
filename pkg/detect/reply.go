package detect

import (
	"regexp"
	"strings"
)

// Reply classifies a short answer to an offer or a confirmation prompt.
type Reply int

const (
	ReplyNone Reply = iota
	ReplyAffirm
	ReplyDecline
	ReplyWantChanges
)

func (r Reply) String() string {
	switch r {
	case ReplyAffirm:
		return "affirm"
	case ReplyDecline:
		return "decline"
	case ReplyWantChanges:
		return "want_changes"
	}
	return "none"
}

var (
	wantChanges = regexp.MustCompile(`(?i)\b(i (?:want|would like|need|wanna) to (?:make )?(?:some )?(?:changes?|change something|modify|edit)|(?:make|need|want) (?:some |a few )?changes|change (?:something|some details|my details|the details)|not (?:quite )?right|let me (?:change|edit|fix)|go back|start over|edit (?:my )?(?:details|application))\b`)
	declines    = regexp.MustCompile(`^(no|nope|nah|no thanks?|no thank you|not now|skip|cancel|no need|nothing|nothing else|no changes?|no more changes|that'?s all|that is all|all good|i'?m good|not really|don'?t)( (thanks?|thank you|please))*$`)
	affirms     = regexp.MustCompile(`^(yes|yeah|yep|yup|ya|y|ok|okay|k|sure|confirm|confirmed|go ahead|please do|proceed|sounds good|looks good|great|perfect|done|fine|alright|all right|accept|i accept|do it|let'?s do it|let'?s go|agreed|that'?s right|absolutely|of course)\b`)
	editVerbs   = regexp.MustCompile(`\b(change|modify|update|instead)\b`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}' ]+`)
)

// maxAffirmWords bounds how long an affirmation may be ("yes please go ahead").
const maxAffirmWords = 5

// ClassifyReply recognizes yes / no / "I want changes" answers. Anything else is none.
func ClassifyReply(message string) Reply {
	if wantChanges.MatchString(message) {
		return ReplyWantChanges
	}
	norm := normalize(message)
	if norm == "" {
		return ReplyNone
	}
	if declines.MatchString(norm) {
		return ReplyDecline
	}
	// "ok, change salary to 80k" is an edit, not a yes.
	if anyNumber.MatchString(norm) || editVerbs.MatchString(norm) {
		return ReplyNone
	}
	if affirms.MatchString(norm) && len(strings.Fields(norm)) <= maxAffirmWords {
		return ReplyAffirm
	}
	return ReplyNone
}

// normalize lower-cases, strips punctuation and collapses whitespace.
func normalize(message string) string {
	s := punctuation.ReplaceAllString(strings.ToLower(message), " ")
	return strings.Join(strings.Fields(s), " ")
}

var retryVerification = regexp.MustCompile(`(?i)\b(retry|re-?run|redo|try again)\b.{0,20}\b(verif\w*|check)\b|\b(verif\w*|check)\b.{0,20}\b(again|retry)\b`)

// IsRetryVerification reports whether the customer asks to re-run a failed verification.
func IsRetryVerification(message string) bool {
	return retryVerification.MatchString(message)
}
