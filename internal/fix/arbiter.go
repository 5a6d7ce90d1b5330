package fix

const (
	// RelocationSeconds is the age gap beyond which a newer fix always wins.
	RelocationSeconds = 60
	// SevereAccuracyLoss is the accuracy degradation (meters) a newer fix from
	// the same provider may carry and still be accepted.
	SevereAccuracyLoss = 200.0
)

// Accept decides whether candidate should replace current. A nil current
// always accepts. The rules run in order and the first match wins.
func Accept(current *Fix, candidate Fix) bool {
	if current == nil {
		return true
	}

	timeDelta := candidate.Timestamp - current.Timestamp
	newer := timeDelta > 0

	// Relocation: the held fix is too old to compete.
	if timeDelta > RelocationSeconds {
		return true
	}

	accDelta := accuracyDelta(*current, candidate)
	if accDelta < 0 {
		return true
	}
	if newer && accDelta <= 0 {
		return true
	}
	if newer && accDelta <= SevereAccuracyLoss && candidate.Provider == current.Provider {
		return true
	}
	return false
}

// accuracyDelta is candidate minus current accuracy; unknown on either side
// compares as equal.
func accuracyDelta(current, candidate Fix) float64 {
	if !current.HasAccuracy() || !candidate.HasAccuracy() {
		return 0
	}
	return candidate.Accuracy - current.Accuracy
}
