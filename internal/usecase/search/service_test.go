package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/geo"
	"github.com/grambazaar/bazarsearch/internal/domain/product"
	"github.com/grambazaar/bazarsearch/internal/domain/search/query"
	"github.com/grambazaar/bazarsearch/internal/domain/search/result"
)

// productID returns the ID of an item's product via an addressable copy.
func productID(i result.Item) string {
	p := i.Product()
	return p.ID()
}

// --- Mocks ---

type mockCatalog struct {
	products     []product.Product
	err          error
	lastDistrict string
	lastCategory string
}

func (m *mockCatalog) Query(_ context.Context, district, category string) ([]product.Product, error) {
	m.lastDistrict = district
	m.lastCategory = category
	return m.products, m.err
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockQueryLog struct {
	err      error
	recorded chan []result.Item
}

func newMockQueryLog(err error) *mockQueryLog {
	return &mockQueryLog{err: err, recorded: make(chan []result.Item, 1)}
}

func (m *mockQueryLog) Record(_ context.Context, _ *query.Query, items []result.Item) error {
	m.recorded <- items
	return m.err
}

// --- Fixtures ---

type candidateSpec struct {
	id        string
	district  string
	category  string
	embedding []float32
	location  *geo.Point
	active    bool
	sold      bool
}

func makeProduct(spec candidateSpec) product.Product {
	return product.Reconstruct(
		spec.id, "seller-1", "name-"+spec.id, "desc", spec.category, spec.district,
		decimal.NewFromInt(100), 1, "piece", "", spec.location, spec.embedding,
		spec.active, spec.sold, time.Time{},
	)
}

func liveCandidate(id string, embedding []float32) product.Product {
	return makeProduct(candidateSpec{
		id: id, district: "Dhaka", embedding: embedding, active: true,
	})
}

func mustQuery(t *testing.T, location *geo.Point, district, category string, maxKM float64, limit int) *query.Query {
	t.Helper()
	q, err := query.New("fresh fish", location, district, category, maxKM, limit)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func newService(catalog *mockCatalog, embed *mockEmbedder) *Service {
	return New(catalog, embed, zap.NewNop())
}

// --- Rank tests ---

func TestRank_SimilarityOrdering(t *testing.T) {
	// Identical embedding ranks above the opposite one.
	q := mustQuery(t, nil, "", "", 0, 10)
	candidates := []product.Product{
		liveCandidate("opposite", []float32{-1, 0}),
		liveCandidate("identical", []float32{1, 0}),
	}

	items, stats := Rank(q, []float32{1, 0}, candidates)
	if len(items) != 2 {
		t.Fatalf("expected 2 results, got %d", len(items))
	}
	if productID(items[0]) != "identical" || productID(items[1]) != "opposite" {
		t.Errorf("order = [%s, %s], want [identical, opposite]",
			productID(items[0]), productID(items[1]))
	}
	if s := items[0].Score(); s.Similarity != 1.0 {
		t.Errorf("identical similarity = %f, want 1", s.Similarity)
	}
	if s := items[1].Score(); s.Similarity != 0.0 {
		t.Errorf("opposite similarity = %f, want 0", s.Similarity)
	}
	if stats.Scored != 2 {
		t.Errorf("scored = %d, want 2", stats.Scored)
	}
}

func TestRank_ProximityOnly_NoEmbeddings(t *testing.T) {
	origin := geo.Point{Latitude: 0, Longitude: 0}
	q := mustQuery(t, &origin, "", "", 0, 10)
	candidates := []product.Product{
		makeProduct(candidateSpec{id: "here", district: "Dhaka", location: &origin, active: true}),
	}

	items, _ := Rank(q, nil, candidates)
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	s := items[0].Score()
	if s.Similarity != 0 || s.DistanceScore != 1 {
		t.Errorf("scores = (sim %f, dist %f), want (0, 1)", s.Similarity, s.DistanceScore)
	}
	if got, want := s.Combined, 0.3; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("combined = %f, want 0.3", got)
	}
}

func TestRank_UnavailableNeverReturned(t *testing.T) {
	q := mustQuery(t, nil, "", "", 0, 10)
	candidates := []product.Product{
		makeProduct(candidateSpec{id: "sold", district: "Dhaka", embedding: []float32{1, 0}, active: true, sold: true}),
		makeProduct(candidateSpec{id: "inactive", district: "Dhaka", embedding: []float32{1, 0}}),
		liveCandidate("live", []float32{0, 1}),
	}

	items, _ := Rank(q, []float32{1, 0}, candidates)
	if len(items) != 1 || productID(items[0]) != "live" {
		t.Fatalf("only the live candidate may rank, got %d items", len(items))
	}
}

func TestRank_DistrictAndCategoryFilters(t *testing.T) {
	q := mustQuery(t, nil, "Dhaka", "Fish", 0, 10)
	candidates := []product.Product{
		makeProduct(candidateSpec{id: "match", district: "Dhaka", category: "Fish", active: true}),
		makeProduct(candidateSpec{id: "wrong-district", district: "Khulna", category: "Fish", active: true}),
		makeProduct(candidateSpec{id: "wrong-category", district: "Dhaka", category: "Fruit", active: true}),
	}

	items, _ := Rank(q, nil, candidates)
	if len(items) != 1 || productID(items[0]) != "match" {
		t.Fatalf("filters must AND, got %d items", len(items))
	}
}

func TestRank_HardDistanceCutoff(t *testing.T) {
	searcher := geo.Point{Latitude: 0, Longitude: 0}
	near := geo.Point{Latitude: 0.018, Longitude: 0} // ~2 km
	far := geo.Point{Latitude: 0.054, Longitude: 0}  // ~6 km
	q := mustQuery(t, &searcher, "", "", 5, 10)
	candidates := []product.Product{
		makeProduct(candidateSpec{id: "near", district: "Dhaka", location: &near, active: true}),
		// Perfect similarity does not save a candidate beyond the cutoff.
		makeProduct(candidateSpec{id: "far", district: "Dhaka", embedding: []float32{1, 0}, location: &far, active: true}),
	}

	items, stats := Rank(q, []float32{1, 0}, candidates)
	if len(items) != 1 || productID(items[0]) != "near" {
		t.Fatalf("candidate beyond max distance must be excluded, got %d items", len(items))
	}
	if stats.ExcludedByDistance != 1 {
		t.Errorf("excluded = %d, want 1", stats.ExcludedByDistance)
	}
	if km := items[0].Score().DistanceKM; km == nil || *km > 5 {
		t.Error("returned candidate must be within the cutoff")
	}
}

func TestRank_LimitTruncates(t *testing.T) {
	q := mustQuery(t, nil, "", "", 0, 2)
	embs := [][]float32{{1, 0}, {0.9, 0.1}, {0.5, 0.5}, {0, 1}, {-1, 0}}
	candidates := make([]product.Product, len(embs))
	for i, e := range embs {
		candidates[i] = liveCandidate(string(rune('a'+i)), e)
	}

	items, stats := Rank(q, []float32{1, 0}, candidates)
	if len(items) != 2 {
		t.Fatalf("expected 2 results, got %d", len(items))
	}
	// Top-2 by combined score with ranks 1 and 2.
	if productID(items[0]) != "a" || productID(items[1]) != "b" {
		t.Errorf("order = [%s, %s], want [a, b]", productID(items[0]), productID(items[1]))
	}
	if items[0].Rank() != 1 || items[1].Rank() != 2 {
		t.Errorf("ranks = [%d, %d], want [1, 2]", items[0].Rank(), items[1].Rank())
	}
	if stats.Scored != 5 {
		t.Errorf("scored = %d, want 5 (truncation happens after scoring)", stats.Scored)
	}
}

func TestRank_MonotonicOrdering(t *testing.T) {
	searcher := geo.Point{Latitude: 23.8, Longitude: 90.4}
	q := mustQuery(t, &searcher, "", "", 0, 50)
	embs := [][]float32{{1, 0}, {-1, 0}, {0, 1}, {0.2, 0.8}, nil, {0.7, -0.7}}
	candidates := make([]product.Product, 0, len(embs))
	for i, e := range embs {
		loc := &geo.Point{Latitude: 23.8 + float64(i)*0.01, Longitude: 90.4}
		candidates = append(candidates, makeProduct(candidateSpec{
			id: string(rune('a' + i)), district: "Dhaka", embedding: e, location: loc, active: true,
		}))
	}

	items, _ := Rank(q, []float32{0.6, 0.4}, candidates)
	for i := 1; i < len(items); i++ {
		if items[i].Score().Combined > items[i-1].Score().Combined {
			t.Fatalf("not sorted descending at %d: %f > %f",
				i, items[i].Score().Combined, items[i-1].Score().Combined)
		}
		if items[i].Rank() != items[i-1].Rank()+1 {
			t.Fatalf("ranks not consecutive at %d", i)
		}
	}
}

func TestRank_StableForExactTies(t *testing.T) {
	// No embeddings and no location: every candidate scores exactly 0.
	q := mustQuery(t, nil, "", "", 0, 10)
	candidates := []product.Product{
		makeProduct(candidateSpec{id: "first", district: "Dhaka", active: true}),
		makeProduct(candidateSpec{id: "second", district: "Dhaka", active: true}),
		makeProduct(candidateSpec{id: "third", district: "Dhaka", active: true}),
	}

	items, _ := Rank(q, nil, candidates)
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if productID(items[i]) != w {
			t.Fatalf("tie order broken: position %d = %s, want %s", i, productID(items[i]), w)
		}
	}
}

func TestRank_EmptyCandidates(t *testing.T) {
	q := mustQuery(t, nil, "", "", 0, 10)
	items, stats := Rank(q, []float32{1, 0}, nil)
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %d", len(items))
	}
	if stats.Candidates != 0 {
		t.Errorf("candidates = %d, want 0", stats.Candidates)
	}
}

func TestRank_DimMismatchCounted(t *testing.T) {
	q := mustQuery(t, nil, "", "", 0, 10)
	candidates := []product.Product{
		liveCandidate("ragged", []float32{1, 0, 0}),
		liveCandidate("ok", []float32{1, 0}),
	}

	items, stats := Rank(q, []float32{1, 0}, candidates)
	if len(items) != 2 {
		t.Fatalf("mismatch must degrade, not drop: got %d items", len(items))
	}
	if stats.DimMismatches != 1 {
		t.Errorf("dim mismatches = %d, want 1", stats.DimMismatches)
	}
	if productID(items[0]) != "ok" {
		t.Errorf("ragged candidate must score 0 similarity and sort below")
	}
}

func TestRank_Deterministic(t *testing.T) {
	searcher := geo.Point{Latitude: 23.8, Longitude: 90.4}
	q := mustQuery(t, &searcher, "", "", 0, 10)
	loc := geo.Point{Latitude: 23.75, Longitude: 90.42}
	candidates := []product.Product{
		makeProduct(candidateSpec{id: "a", district: "Dhaka", embedding: []float32{0.1, 0.9}, location: &loc, active: true}),
		makeProduct(candidateSpec{id: "b", district: "Dhaka", embedding: []float32{0.8, 0.2}, active: true}),
	}

	first, _ := Rank(q, []float32{0.5, 0.5}, candidates)
	second, _ := Rank(q, []float32{0.5, 0.5}, candidates)
	if len(first) != len(second) {
		t.Fatal("lengths differ between invocations")
	}
	for i := range first {
		if productID(first[i]) != productID(second[i]) ||
			first[i].Score().Combined != second[i].Score().Combined {
			t.Fatal("repeated invocations must return identical ordering and scores")
		}
	}
}

// --- Service tests ---

func TestSearch_HappyPath(t *testing.T) {
	catalog := &mockCatalog{products: []product.Product{liveCandidate("a", []float32{1, 0})}}
	embed := &mockEmbedder{vec: []float32{1, 0}}
	svc := newService(catalog, embed)

	q := mustQuery(t, nil, "Dhaka", "Fish", 0, 10)
	items, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	if !embed.called {
		t.Error("expected Embed to be called")
	}
	if catalog.lastDistrict != "Dhaka" || catalog.lastCategory != "Fish" {
		t.Errorf("filters not pushed to catalog: (%q, %q)", catalog.lastDistrict, catalog.lastCategory)
	}
}

func TestSearch_EmbedFailure_DegradesToProximity(t *testing.T) {
	origin := geo.Point{Latitude: 0, Longitude: 0}
	catalog := &mockCatalog{products: []product.Product{
		makeProduct(candidateSpec{id: "near", district: "Dhaka", embedding: []float32{1, 0}, location: &origin, active: true}),
	}}
	embed := &mockEmbedder{err: errors.New("provider down")}
	svc := newService(catalog, embed)

	q := mustQuery(t, &origin, "", "", 0, 10)
	items, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("embed failure must not fail the search: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	if s := items[0].Score(); s.Similarity != 0 || s.DistanceScore != 1 {
		t.Errorf("expected proximity-only scoring, got sim=%f dist=%f", s.Similarity, s.DistanceScore)
	}
}

func TestSearch_CatalogFailure_IsTerminal(t *testing.T) {
	catalog := &mockCatalog{err: errors.New("connection refused")}
	embed := &mockEmbedder{vec: []float32{1, 0}}
	svc := newService(catalog, embed)

	q := mustQuery(t, nil, "", "", 0, 10)
	if _, err := svc.Search(context.Background(), q); err == nil {
		t.Fatal("expected error from catalog failure")
	}
}

func TestSearch_ZeroResults_NotAnError(t *testing.T) {
	catalog := &mockCatalog{}
	embed := &mockEmbedder{vec: []float32{1, 0}}
	svc := newService(catalog, embed)

	q := mustQuery(t, nil, "", "", 0, 10)
	items, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %d", len(items))
	}
}

func TestSearch_QueryLogRecorded(t *testing.T) {
	catalog := &mockCatalog{products: []product.Product{liveCandidate("a", []float32{1, 0})}}
	embed := &mockEmbedder{vec: []float32{1, 0}}
	qlog := newMockQueryLog(nil)
	svc := newService(catalog, embed).WithQueryLog(qlog)

	q := mustQuery(t, nil, "", "", 0, 10)
	if _, err := svc.Search(context.Background(), q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case items := <-qlog.recorded:
		if len(items) != 1 {
			t.Errorf("logged %d items, want 1", len(items))
		}
	case <-time.After(time.Second):
		t.Fatal("query log was never called")
	}
}

func TestSearch_QueryLogFailure_DoesNotAffectRanking(t *testing.T) {
	catalog := &mockCatalog{products: []product.Product{liveCandidate("a", []float32{1, 0})}}
	embed := &mockEmbedder{vec: []float32{1, 0}}
	qlog := newMockQueryLog(errors.New("redis down"))
	svc := newService(catalog, embed).WithQueryLog(qlog)

	q := mustQuery(t, nil, "", "", 0, 10)
	items, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("log failure must not surface: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	<-qlog.recorded
}
