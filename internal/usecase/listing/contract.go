package listing

import (
	"context"

	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/product"
)

// CatalogWriter is the storage contract for new listings.
type CatalogWriter interface {
	Insert(ctx context.Context, p product.Product) error
}

// Embedder vectorizes listing text into an embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
