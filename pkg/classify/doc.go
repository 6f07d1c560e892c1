// Package classify provides the intent classifiers that may advise the dialogue router.
//
// Deterministic is always available and built from the detectors. Resilient wraps an external
// classifier (an LLM) with a timeout, a single retry, a circuit breaker and a fallback, so a
// slow or failing model degrades to the deterministic path instead of failing the turn.
package classify
