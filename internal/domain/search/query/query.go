package query

import (
	"fmt"

	"github.com/grambazaar/bazarsearch/internal/domain/geo"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxLimit       = 100
)

// Query is a validated search query.
// The embedding is attached after construction by the search service;
// an empty embedding means "no semantic signal", never an error.
type Query struct {
	text          string
	location      *geo.Point
	district      string
	category      string
	maxDistanceKM float64
	limit         int
}

// New validates and normalizes search parameters.
// Defaults: limit=20, clamped to 100. maxDistanceKM of 0 means no distance
// cutoff; negative values are rejected.
func New(
	text string,
	location *geo.Point,
	district, category string,
	maxDistanceKM float64,
	limit int,
) (Query, error) {
	if text == "" {
		return Query{}, fmt.Errorf("query text is required")
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if location != nil && !location.Valid() {
		return Query{}, fmt.Errorf("invalid search coordinates (%f, %f)",
			location.Latitude, location.Longitude)
	}
	if maxDistanceKM < 0 {
		return Query{}, fmt.Errorf("max_distance_km must be positive")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Query{
		text:          text,
		location:      location,
		district:      district,
		category:      category,
		maxDistanceKM: maxDistanceKM,
		limit:         limit,
	}, nil
}

// Text returns the raw query text.
func (q *Query) Text() string { return q.text }

// Location returns the searcher coordinates (nil when not supplied).
func (q *Query) Location() *geo.Point { return q.location }

// District returns the district filter (empty means no constraint).
func (q *Query) District() string { return q.district }

// Category returns the category filter (empty means no constraint).
func (q *Query) Category() string { return q.category }

// MaxDistanceKM returns the hard distance cutoff (0 means none).
func (q *Query) MaxDistanceKM() float64 { return q.maxDistanceKM }

// Limit returns the maximum results to return.
func (q *Query) Limit() int { return q.limit }
