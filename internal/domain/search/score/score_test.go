package score

import (
	"math"
	"testing"

	"github.com/grambazaar/bazarsearch/internal/domain/geo"
)

func almost(a, b, eps float64) bool {
	if a > b {
		return a-b < eps
	}
	return b-a < eps
}

func TestSimilarity_IdenticalVectors(t *testing.T) {
	sim, mismatch := Similarity([]float32{1, 0}, []float32{1, 0})
	if mismatch {
		t.Error("unexpected mismatch flag")
	}
	if !almost(sim, 1, 1e-9) {
		t.Fatalf("want 1 got %f", sim)
	}
}

func TestSimilarity_OppositeVectors(t *testing.T) {
	sim, _ := Similarity([]float32{1, 0}, []float32{-1, 0})
	if !almost(sim, 0, 1e-9) {
		t.Fatalf("want 0 got %f", sim)
	}
}

func TestSimilarity_OrthogonalVectors(t *testing.T) {
	sim, _ := Similarity([]float32{1, 0}, []float32{0, 1})
	if !almost(sim, 0.5, 1e-9) {
		t.Fatalf("want 0.5 got %f", sim)
	}
}

func TestSimilarity_EmptyVectors(t *testing.T) {
	if sim, mismatch := Similarity(nil, []float32{1, 0}); sim != 0 || mismatch {
		t.Errorf("nil query: sim=%f mismatch=%v", sim, mismatch)
	}
	if sim, mismatch := Similarity([]float32{1, 0}, nil); sim != 0 || mismatch {
		t.Errorf("nil candidate: sim=%f mismatch=%v", sim, mismatch)
	}
	if sim, mismatch := Similarity(nil, nil); sim != 0 || mismatch {
		t.Errorf("both nil: sim=%f mismatch=%v", sim, mismatch)
	}
}

func TestSimilarity_LengthMismatch(t *testing.T) {
	sim, mismatch := Similarity([]float32{1, 0, 0}, []float32{1, 0})
	if sim != 0 {
		t.Errorf("sim = %f, want 0", sim)
	}
	if !mismatch {
		t.Error("expected mismatch flag")
	}
}

func TestSimilarity_ZeroVector_NoNaN(t *testing.T) {
	sim, mismatch := Similarity([]float32{0, 0}, []float32{1, 0})
	if math.IsNaN(sim) {
		t.Fatal("got NaN")
	}
	if sim != 0 || mismatch {
		t.Errorf("sim=%f mismatch=%v, want 0 false", sim, mismatch)
	}
}

func TestProximity(t *testing.T) {
	tests := []struct {
		km   float64
		want float64
	}{
		{0, 1},
		{5, 0.5},
		{10, 0},
		{25, 0},
	}
	for _, tt := range tests {
		if got := Proximity(tt.km); !almost(got, tt.want, 1e-9) {
			t.Errorf("Proximity(%f) = %f, want %f", tt.km, got, tt.want)
		}
	}
}

func TestCompute_NoLocation_SimilarityOnly(t *testing.T) {
	s, ok := Compute([]float32{1, 0}, []float32{1, 0}, nil, nil, 0)
	if !ok {
		t.Fatal("unexpected exclusion")
	}
	if s.DistanceKM != nil {
		t.Error("expected nil DistanceKM")
	}
	if s.DistanceScore != 0 {
		t.Errorf("DistanceScore = %f, want 0", s.DistanceScore)
	}
	if !almost(s.Combined, SimilarityWeight, 1e-9) {
		t.Errorf("Combined = %f, want %f", s.Combined, SimilarityWeight)
	}
}

func TestCompute_SamePoint_NoEmbeddings(t *testing.T) {
	p := geo.Point{Latitude: 0, Longitude: 0}
	s, ok := Compute(nil, nil, &p, &p, 0)
	if !ok {
		t.Fatal("unexpected exclusion")
	}
	if s.Similarity != 0 {
		t.Errorf("Similarity = %f, want 0", s.Similarity)
	}
	if s.DistanceScore != 1 {
		t.Errorf("DistanceScore = %f, want 1", s.DistanceScore)
	}
	if !almost(s.Combined, ProximityWeight, 1e-9) {
		t.Errorf("Combined = %f, want %f", s.Combined, ProximityWeight)
	}
}

func TestCompute_HardDistanceCutoff(t *testing.T) {
	searcher := geo.Point{Latitude: 0, Longitude: 0}
	// ~0.054 degrees of latitude is ~6 km
	candidate := geo.Point{Latitude: 0.054, Longitude: 0}
	if km := geo.DistanceKM(searcher, candidate); km < 5.5 || km > 6.5 {
		t.Fatalf("fixture distance = %f, want ~6 km", km)
	}

	// Perfect similarity does not save a candidate beyond the cutoff.
	_, ok := Compute([]float32{1, 0}, []float32{1, 0}, &searcher, &candidate, 5)
	if ok {
		t.Error("expected exclusion beyond max distance")
	}

	// Without a cutoff the same candidate scores.
	s, ok := Compute([]float32{1, 0}, []float32{1, 0}, &searcher, &candidate, 0)
	if !ok {
		t.Fatal("unexpected exclusion without cutoff")
	}
	if s.DistanceKM == nil {
		t.Fatal("expected DistanceKM")
	}
}

func TestCompute_BeyondDecay_StillRanked(t *testing.T) {
	searcher := geo.Point{Latitude: 0, Longitude: 0}
	// ~0.27 degrees is ~30 km, far beyond the 10 km decay
	candidate := geo.Point{Latitude: 0.27, Longitude: 0}
	s, ok := Compute([]float32{1, 0}, []float32{1, 0}, &searcher, &candidate, 0)
	if !ok {
		t.Fatal("candidate beyond decay must still rank")
	}
	if s.DistanceScore != 0 {
		t.Errorf("DistanceScore = %f, want 0", s.DistanceScore)
	}
	if !almost(s.Combined, SimilarityWeight, 1e-9) {
		t.Errorf("Combined = %f, want %f", s.Combined, SimilarityWeight)
	}
}

func TestCompute_ScoreBounds(t *testing.T) {
	searcher := geo.Point{Latitude: 23.8, Longitude: 90.4}
	vecs := [][]float32{nil, {0, 0}, {1, 0}, {-1, 0}, {0.3, -0.7}, {1, 0, 0}}
	points := []*geo.Point{nil, {Latitude: 23.8, Longitude: 90.4}, {Latitude: 23.9, Longitude: 90.5}}
	for _, q := range vecs {
		for _, c := range vecs {
			for _, loc := range points {
				s, ok := Compute(q, c, &searcher, loc, 0)
				if !ok {
					t.Fatal("no cutoff set, nothing may be excluded")
				}
				for name, v := range map[string]float64{
					"similarity": s.Similarity,
					"distance":   s.DistanceScore,
					"combined":   s.Combined,
				} {
					if v < 0 || v > 1 || math.IsNaN(v) {
						t.Fatalf("%s score out of bounds: %f", name, v)
					}
				}
			}
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	searcher := geo.Point{Latitude: 23.8, Longitude: 90.4}
	candidate := geo.Point{Latitude: 23.75, Longitude: 90.39}
	q := []float32{0.3, 0.2, -0.5}
	c := []float32{0.1, 0.9, 0.2}

	first, ok1 := Compute(q, c, &searcher, &candidate, 8)
	second, ok2 := Compute(q, c, &searcher, &candidate, 8)
	if ok1 != ok2 || first.Combined != second.Combined ||
		first.Similarity != second.Similarity || first.DistanceScore != second.DistanceScore {
		t.Error("repeated invocations must produce identical scores")
	}
}
