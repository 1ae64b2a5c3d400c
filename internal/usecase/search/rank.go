package search

import (
	"sort"

	"github.com/grambazaar/bazarsearch/internal/domain/product"
	"github.com/grambazaar/bazarsearch/internal/domain/search/query"
	"github.com/grambazaar/bazarsearch/internal/domain/search/result"
	"github.com/grambazaar/bazarsearch/internal/domain/search/score"
)

// Stats summarizes one ranking pass for observability.
type Stats struct {
	Candidates         int // snapshot size before filtering
	Scored             int // candidates that received a score
	ExcludedByDistance int // dropped by the max-distance cutoff
	DimMismatches      int // embedding length mismatches (silently zeroed similarity)
}

// Rank produces the ordered, limited result list for a query over a candidate
// snapshot. It is a pure function: no I/O, no shared state, safe for
// concurrent invocation. An empty query embedding degrades ranking to pure
// proximity ordering.
func Rank(q *query.Query, queryEmb []float32, candidates []product.Product) ([]result.Item, Stats) {
	stats := Stats{Candidates: len(candidates)}

	type scored struct {
		product product.Product
		score   score.Score
	}
	survivors := make([]scored, 0, len(candidates))

	for _, c := range candidates {
		if !c.Available() {
			continue
		}
		if q.District() != "" && c.District() != q.District() {
			continue
		}
		if q.Category() != "" && c.Category() != q.Category() {
			continue
		}

		s, ok := score.Compute(queryEmb, c.Embedding(), q.Location(), c.Location(), q.MaxDistanceKM())
		if !ok {
			stats.ExcludedByDistance++
			continue
		}
		if s.DimMismatch {
			stats.DimMismatches++
		}
		stats.Scored++
		survivors = append(survivors, scored{product: c, score: s})
	}

	// Stable sort keeps the original relative order for exact score ties.
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score.Combined > survivors[j].score.Combined
	})

	if len(survivors) > q.Limit() {
		survivors = survivors[:q.Limit()]
	}

	items := make([]result.Item, len(survivors))
	for i, s := range survivors {
		items[i] = result.New(i+1, s.product, s.score)
	}
	return items, stats
}
