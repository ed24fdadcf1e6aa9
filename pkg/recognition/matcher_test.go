package recognition

import (
	"math"
	"testing"
)

func TestBestMatch(t *testing.T) {
	identities := []Identity{
		{ID: 1, Embeddings: []Embedding{{0, 1, 0}}},
		{ID: 2, Embeddings: []Embedding{{0, 0, 1}, {1, 0.1, 0}}},
		{ID: 3, Embeddings: []Embedding{{-1, 0, 0}}},
	}

	result := BestMatch(Embedding{1, 0, 0}, identities)
	if !result.Found {
		t.Fatal("expected a result")
	}
	if result.IdentityID != 2 {
		t.Errorf("expected identity 2, got %d", result.IdentityID)
	}
	if result.Score < 0.99 {
		t.Errorf("expected score close to 1, got %f", result.Score)
	}
}

func TestBestMatch_TieKeepsStoreOrder(t *testing.T) {
	identities := []Identity{
		{ID: 7, Embeddings: []Embedding{{1, 0}}},
		{ID: 3, Embeddings: []Embedding{{2, 0}}},
	}

	result := BestMatch(Embedding{1, 0}, identities)
	if result.IdentityID != 7 {
		t.Errorf("expected first identity in store order to win the tie, got %d", result.IdentityID)
	}
}

func TestBestMatch_EmptyStore(t *testing.T) {
	result := BestMatch(Embedding{1, 0}, nil)
	if result.Found {
		t.Error("expected no result for an empty store")
	}
	if result.Accepted(0.63) {
		t.Error("an empty result must never be accepted")
	}
}

func TestBestMatch_NegativeScoresStillReported(t *testing.T) {
	identities := []Identity{{ID: 1, Embeddings: []Embedding{{-1, 0}}}}

	result := BestMatch(Embedding{1, 0}, identities)
	if !result.Found || math.Abs(result.Score+1) > 1e-6 {
		t.Errorf("expected score -1, got %+v", result)
	}
}

func TestBestMatchAny(t *testing.T) {
	identities := []Identity{
		{ID: 1, Embeddings: []Embedding{{1, 0}}},
		{ID: 2, Embeddings: []Embedding{{0, 1}}},
	}
	probes := []Embedding{{1, 1}, {0, 1}}

	result := BestMatchAny(probes, identities)
	if result.IdentityID != 2 || math.Abs(result.Score-1) > 1e-6 {
		t.Errorf("expected identity 2 with score 1, got %+v", result)
	}

	if BestMatchAny(nil, identities).Found {
		t.Error("expected no result without probes")
	}
}

func TestMatchResult_Accepted(t *testing.T) {
	tests := []struct {
		name   string
		result MatchResult
		want   bool
	}{
		{"above threshold", MatchResult{IdentityID: 2, Found: true, Score: 0.82}, true},
		{"exactly threshold", MatchResult{IdentityID: 2, Found: true, Score: 0.63}, true},
		{"below threshold", MatchResult{IdentityID: 2, Found: true, Score: 0.40}, false},
		{"not found", MatchResult{Score: 0.99}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Accepted(0.63); got != tt.want {
				t.Errorf("Accepted() = %v, want %v", got, tt.want)
			}
		})
	}
}
