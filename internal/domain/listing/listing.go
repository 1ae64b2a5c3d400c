package listing

import (
	"context"

	"github.com/shopspring/decimal"
)

// Draft is the structured listing data extracted from free-form seller input.
type Draft struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Quantity    int
	Unit        string
	Keywords    []string
	Confidence  float64
}

// Extractor turns free-form seller text into a structured listing draft.
// Implementations may call an external generative API or return canned data.
type Extractor interface {
	Extract(ctx context.Context, text string) (Draft, error)
}
