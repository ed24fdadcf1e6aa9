package recognition

import (
	"math"
	"time"
)

// Embedding is a fixed-length face feature vector. dlib produces 128 dimensions.
type Embedding []float32

// Identity is an enrolled person: a numeric id and one or more embeddings
// captured during enrollment.
type Identity struct {
	ID         int         `json:"id"`
	Embeddings []Embedding `json:"embeddings"`
	EnrolledAt time.Time   `json:"enrolled_at"`
}

// Clone returns a deep copy of the identity.
func (i Identity) Clone() Identity {
	out := Identity{
		ID:         i.ID,
		EnrolledAt: i.EnrolledAt,
		Embeddings: make([]Embedding, len(i.Embeddings)),
	}
	for n, e := range i.Embeddings {
		out.Embeddings[n] = e.Clone()
	}
	return out
}

// Clone returns a copy of the embedding that does not share memory with e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Vectors of different length, empty vectors and zero vectors score -1 so
// they can never pass a match threshold.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to absorb floating point error
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// Score is the identity's similarity to probe: the maximum over its own
// stored embeddings. An identity without embeddings scores -1.
func (i Identity) Score(probe Embedding) float64 {
	best := -1.0
	for _, e := range i.Embeddings {
		if s := CosineSimilarity(probe, e); s > best {
			best = s
		}
	}
	return best
}
