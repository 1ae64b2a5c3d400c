package fake

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/grambazaar/bazarsearch/internal/domain/listing"
)

// Extractor builds a listing draft from seller text with simple
// heuristics instead of a language model. Good enough for development
// and load testing.
type Extractor struct{}

// NewExtractor creates a heuristic listing extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

var knownUnits = map[string]bool{
	"kg": true, "piece": true, "dozen": true, "liter": true, "litre": true,
	"gram": true, "pair": true, "set": true, "bag": true,
}

// Extract implements listing.Extractor. The first sentence becomes the
// name, the first number the price, and any recognized unit word the unit.
func (e *Extractor) Extract(_ context.Context, text string) (listing.Draft, error) {
	trimmed := strings.TrimSpace(text)

	name := trimmed
	if idx := strings.IndexAny(trimmed, ".,\n"); idx > 0 {
		name = trimmed[:idx]
	}
	if len(name) > 80 {
		name = name[:80]
	}

	draft := listing.Draft{
		Name:        strings.TrimSpace(name),
		Description: trimmed,
		Category:    "General",
		Quantity:    1,
		Unit:        "piece",
		Confidence:  0.5,
	}

	for _, word := range strings.Fields(strings.ToLower(trimmed)) {
		word = strings.Trim(word, ".,!?")
		if knownUnits[word] {
			draft.Unit = word
			continue
		}
		if draft.Price.IsZero() {
			if n, err := strconv.ParseFloat(word, 64); err == nil && n > 0 {
				draft.Price = decimal.NewFromFloat(n)
			}
		}
	}

	words := strings.Fields(strings.ToLower(draft.Name))
	if len(words) > 5 {
		words = words[:5]
	}
	draft.Keywords = words

	return draft, nil
}
