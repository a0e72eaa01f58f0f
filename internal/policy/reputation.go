package policy

// Outcome is the result of an authentication event as seen by the scorer.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Reputation step sizes. Failures cost less per event than a success earns,
// but a run of failures drags the score down faster than logins restore it.
const (
	ReputationReward  = 0.10
	ReputationPenalty = 0.05
	ReputationMin     = 0.0
	ReputationMax     = 1.0
)

// Score returns the next reputation score for the given outcome.
// The result is always within [ReputationMin, ReputationMax].
func Score(previous float64, outcome Outcome) float64 {
	var next float64
	switch outcome {
	case OutcomeSuccess:
		next = previous + ReputationReward
	case OutcomeFailure:
		next = previous - ReputationPenalty
	default:
		next = previous
	}
	return clamp(next)
}

func clamp(v float64) float64 {
	if v > ReputationMax {
		return ReputationMax
	}
	if v < ReputationMin {
		return ReputationMin
	}
	return v
}
