// Package detect holds the deterministic message classifiers the dialogue router consults:
// objections, explanation questions, modification requests, yes/no replies and loan intent.
//
// Detectors are pure functions over ordered regular expression tables. They never mutate
// session state.
package detect
