package domain

import "strings"

// Stage is a discrete phase of the loan journey.
type Stage string

const (
	StageEngagement      Stage = "engagement"
	StageNeedsAssessment Stage = "needs_assessment"
	StageVerification    Stage = "verification"
	StageUnderwriting    Stage = "underwriting"
	StageSanction        Stage = "sanction"
	StageClosure         Stage = "closure"
)

// Stages lists every stage in journey order.
var Stages = []Stage{
	StageEngagement,
	StageNeedsAssessment,
	StageVerification,
	StageUnderwriting,
	StageSanction,
	StageClosure,
}

// Index returns the position of the stage in journey order.
// Unknown stages sort before engagement.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Before reports whether s comes strictly before other.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// Next returns the following stage. Closure has no successor.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i >= len(Stages)-1 {
		return s, false
	}
	return Stages[i+1], true
}

// IsTerminal reports whether the stage ends the journey.
func (s Stage) IsTerminal() bool {
	return s == StageClosure
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

func (s Stage) String() string {
	return string(s)
}

// ParseStage maps a tag to a Stage. Unknown or empty tags map to engagement,
// which is the safe default for routing.
func ParseStage(tag string) Stage {
	st := Stage(strings.ToLower(strings.TrimSpace(tag)))
	if !st.Valid() {
		return StageEngagement
	}
	return st
}
