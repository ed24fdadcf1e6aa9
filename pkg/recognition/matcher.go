package recognition

// MatchResult is the outcome of comparing probe embeddings against the
// store. It is produced once per recognition cycle and never persisted.
type MatchResult struct {
	IdentityID int
	Found      bool
	Score      float64
}

// Accepted reports whether the result clears threshold.
func (m MatchResult) Accepted(threshold float64) bool {
	return m.Found && m.Score >= threshold
}

// BestMatch scans identities in order and returns the one with the highest
// score for probe. On equal scores the identity seen first wins, so the
// result is deterministic for a given store order.
func BestMatch(probe Embedding, identities []Identity) MatchResult {
	return BestMatchAny([]Embedding{probe}, identities)
}

// BestMatchAny is BestMatch over several probes, one per detected face.
// The global maximum over all (probe, identity) pairs wins; ties resolve to
// the earlier probe, then the earlier identity.
func BestMatchAny(probes []Embedding, identities []Identity) MatchResult {
	var result MatchResult

	for _, probe := range probes {
		for _, identity := range identities {
			score := identity.Score(probe)
			if !result.Found || score > result.Score {
				result = MatchResult{
					IdentityID: identity.ID,
					Found:      true,
					Score:      score,
				}
			}
		}
	}

	return result
}
