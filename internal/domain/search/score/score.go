package score

import (
	"math"

	"github.com/grambazaar/bazarsearch/internal/domain/geo"
)

// Ranking constants. Similarity dominates, proximity is a tie-breaking bonus;
// proximity decays linearly to zero at 10 km.
const (
	SimilarityWeight = 0.7
	ProximityWeight  = 0.3
	ProximityDecayKM = 10.0
)

// Score holds the per-candidate ranking scores. All scores are in [0,1].
// DistanceKM is nil when either side has no coordinates.
type Score struct {
	Similarity    float64
	DistanceKM    *float64
	DistanceScore float64
	Combined      float64
	DimMismatch   bool
}

// Compute scores one (query, candidate) pair.
// Returns ok=false when maxDistanceKM is set and the candidate lies beyond it
// (hard exclusion). Every degenerate input — empty or mismatched embeddings,
// zero-magnitude vectors, missing coordinates — degrades to a zero score
// contribution instead of an error.
func Compute(
	queryEmb, candidateEmb []float32,
	searcher, candidate *geo.Point,
	maxDistanceKM float64,
) (Score, bool) {
	var s Score
	s.Similarity, s.DimMismatch = Similarity(queryEmb, candidateEmb)

	if searcher != nil && candidate != nil {
		km := geo.DistanceKM(*searcher, *candidate)
		if maxDistanceKM > 0 && km > maxDistanceKM {
			return Score{}, false
		}
		s.DistanceKM = &km
		s.DistanceScore = Proximity(km)
	}

	s.Combined = SimilarityWeight*s.Similarity + ProximityWeight*s.DistanceScore
	return s, true
}

// Similarity returns the cosine similarity of two vectors remapped from
// [-1,1] into [0,1]. Empty vectors, zero-magnitude vectors and length
// mismatches all yield 0. mismatch reports a length mismatch between two
// non-empty vectors (worth alerting on, but never an error here).
func Similarity(a, b []float32) (sim float64, mismatch bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	if len(a) != len(b) {
		return 0, true
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2, false
}

// Proximity maps a distance in kilometers to a [0,1] score:
// 1 at zero distance, decaying linearly to 0 at ProximityDecayKM and beyond.
func Proximity(km float64) float64 {
	if km == 0 {
		return 1
	}
	return math.Max(0, 1-km/ProximityDecayKM)
}
