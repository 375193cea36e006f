// Package gate decides whether a classified and resolved action may execute
// immediately or must be confirmed by the user first. It is pure: no oracle,
// no store, no state.
package gate

const (
	// MinIntentConfidence is the classification bar; below it the turn asks
	// instead of mutating.
	MinIntentConfidence = 0.8

	// MinAddResolveConfidence and MinRemoveResolveConfidence are the
	// resolution bars per mode. A value exactly at the bar executes; the
	// rule is strictly-less-than on both paths.
	MinAddResolveConfidence    = 0.70
	MinRemoveResolveConfidence = 0.75

	// MaxUnconfirmedItems is the blast-radius guard: a single action touching
	// more distinct articles than this always requires confirmation, even at
	// confidence 1.0.
	MaxUnconfirmedItems = 2
)

// Decision carries the gate verdict and why it was reached.
type Decision struct {
	Confirm bool
	Reason  string
}

// Check evaluates whether execution must be blocked behind a confirmation.
// confidence is the intent classification confidence; flagged aggregates
// every ambiguity flag raised upstream (classifier ambiguity, a resolution
// below its mode bar, an ambiguous multi-action sub-reference);
// affectedCount is the number of distinct articles the action would touch.
// When Confirm is true no mutation may happen this turn.
func Check(confidence float64, flagged bool, affectedCount int) Decision {
	switch {
	case flagged:
		return Decision{Confirm: true, Reason: "flagged ambiguous"}
	case confidence < MinIntentConfidence:
		return Decision{Confirm: true, Reason: "low intent confidence"}
	case affectedCount > MaxUnconfirmedItems:
		return Decision{Confirm: true, Reason: "blast radius"}
	default:
		return Decision{Confirm: false}
	}
}

// BelowAddBar reports whether an add-path resolution confidence forces a
// confirmation on its own.
func BelowAddBar(confidence float64) bool {
	return confidence < MinAddResolveConfidence
}

// BelowRemoveBar reports whether a remove-path resolution confidence forces a
// confirmation on its own.
func BelowRemoveBar(confidence float64) bool {
	return confidence < MinRemoveResolveConfidence
}
