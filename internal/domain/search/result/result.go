package result

import (
	"github.com/grambazaar/bazarsearch/internal/domain/product"
	"github.com/grambazaar/bazarsearch/internal/domain/search/score"
)

// Item is a single ranked search hit: a product snapshot with its scores
// and 1-based rank position. Items are ephemeral computed values; persisting
// them is the query log's concern.
type Item struct {
	rank    int
	product product.Product
	score   score.Score
}

// New creates a ranked item.
func New(rank int, p product.Product, s score.Score) Item {
	return Item{rank: rank, product: p, score: s}
}

// Rank returns the 1-based rank position.
func (i *Item) Rank() int { return i.rank }

// Product returns the ranked product snapshot.
func (i *Item) Product() product.Product { return i.product }

// Score returns the ranking scores.
func (i *Item) Score() score.Score { return i.score }
