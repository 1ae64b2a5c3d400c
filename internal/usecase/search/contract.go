package search

import (
	"context"

	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/product"
	"github.com/grambazaar/bazarsearch/internal/domain/search/query"
	"github.com/grambazaar/bazarsearch/internal/domain/search/result"
)

// Catalog is the storage contract for candidate retrieval. Query must return
// fully materialized product snapshots from a single consistent read.
type Catalog interface {
	Query(ctx context.Context, district, category string) ([]product.Product, error)
}

// Embedder vectorizes query text into an embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// QueryLog persists queries and their ranked results for analytics.
// Recording is fire-and-forget: a failure never affects the returned ranking.
type QueryLog interface {
	Record(ctx context.Context, q *query.Query, items []result.Item) error
}
