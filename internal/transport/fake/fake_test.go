package fake

import (
	"context"
	"math"
	"testing"
)

func TestEmbedder_Deterministic(t *testing.T) {
	emb := NewEmbedder(64)

	a, err := emb.Embed(context.Background(), "fresh hilsa fish")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := emb.Embed(context.Background(), "fresh hilsa fish")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(a.Embedding) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(a.Embedding))
	}
	for i := range a.Embedding {
		if a.Embedding[i] != b.Embedding[i] {
			t.Fatalf("embeddings differ at index %d", i)
		}
	}
}

func TestEmbedder_UnitVector(t *testing.T) {
	emb := NewEmbedder(32)

	res, err := emb.Embed(context.Background(), "red lentils")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	var mag float64
	for _, v := range res.Embedding {
		mag += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(mag)-1) > 1e-5 {
		t.Errorf("expected unit vector, magnitude = %f", math.Sqrt(mag))
	}
}

func TestEmbedder_SharedWordsCorrelate(t *testing.T) {
	emb := NewEmbedder(64)

	fish, _ := emb.Embed(context.Background(), "fresh hilsa fish from the river")
	alsoFish, _ := emb.Embed(context.Background(), "dried hilsa fish")
	pots, _ := emb.Embed(context.Background(), "handmade clay pots")

	if dot(fish.Embedding, alsoFish.Embedding) <= dot(fish.Embedding, pots.Embedding) {
		t.Error("expected texts sharing words to be more similar than unrelated texts")
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestExtractor_Heuristics(t *testing.T) {
	ex := NewExtractor()

	draft, err := ex.Extract(context.Background(), "Fresh tomatoes, 50 taka per kg. Locally grown.")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if draft.Name != "Fresh tomatoes" {
		t.Errorf("Name = %q, want %q", draft.Name, "Fresh tomatoes")
	}
	if draft.Price.IsZero() {
		t.Error("expected a price to be extracted")
	}
	if draft.Unit != "kg" {
		t.Errorf("Unit = %q, want %q", draft.Unit, "kg")
	}
	if draft.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", draft.Quantity)
	}
	if len(draft.Keywords) == 0 {
		t.Error("expected keywords")
	}
}

func TestExtractor_Defaults(t *testing.T) {
	ex := NewExtractor()

	draft, err := ex.Extract(context.Background(), "old bicycle")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if draft.Unit != "piece" {
		t.Errorf("Unit = %q, want %q", draft.Unit, "piece")
	}
	if !draft.Price.IsZero() {
		t.Errorf("Price = %s, want zero", draft.Price)
	}
	if draft.Category != "General" {
		t.Errorf("Category = %q, want %q", draft.Category, "General")
	}
}
