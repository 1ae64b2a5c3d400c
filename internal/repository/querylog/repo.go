// Package querylog is the Redis-backed analytics sink for search queries
// and their ranked results.
package querylog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grambazaar/bazarsearch/internal/domain/search/query"
	"github.com/grambazaar/bazarsearch/internal/domain/search/result"
)

const logKey = "bazarsearch:query_log"

// Entry is one logged search query with its ranked results.
type Entry struct {
	ID            string        `json:"id"`
	QueryText     string        `json:"query_text"`
	District      string        `json:"district,omitempty"`
	Category      string        `json:"category,omitempty"`
	MaxDistanceKM float64       `json:"max_distance_km,omitempty"`
	Latitude      *float64      `json:"latitude,omitempty"`
	Longitude     *float64      `json:"longitude,omitempty"`
	ResultsCount  int           `json:"results_count"`
	Results       []EntryResult `json:"results"`
	CreatedAt     time.Time     `json:"created_at"`
}

// EntryResult is one ranked hit within a logged query.
type EntryResult struct {
	ProductID  string   `json:"product_id"`
	Rank       int      `json:"rank"`
	Similarity float64  `json:"similarity_score"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
	Combined   float64  `json:"combined_score"`
}

// store is the consumer interface for the query log.
type store interface {
	LPush(ctx context.Context, key string, value []byte) error
	LTrim(ctx context.Context, key string, maxLen int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

// Repo persists query log entries as a capped Redis list, newest first.
type Repo struct {
	store      store
	maxEntries int64
}

// New creates a query log repository capped at maxEntries.
func New(s store, maxEntries int) *Repo {
	return &Repo{store: s, maxEntries: int64(maxEntries)}
}

// Record appends one query with its ranked results and trims the log.
func (r *Repo) Record(ctx context.Context, q *query.Query, items []result.Item) error {
	entry := Entry{
		ID:            uuid.NewString(),
		QueryText:     q.Text(),
		District:      q.District(),
		Category:      q.Category(),
		MaxDistanceKM: q.MaxDistanceKM(),
		ResultsCount:  len(items),
		Results:       make([]EntryResult, len(items)),
		CreatedAt:     time.Now().UTC(),
	}
	if loc := q.Location(); loc != nil {
		entry.Latitude = &loc.Latitude
		entry.Longitude = &loc.Longitude
	}
	for i, item := range items {
		s := item.Score()
		p := item.Product()
		entry.Results[i] = EntryResult{
			ProductID:  p.ID(),
			Rank:       item.Rank(),
			Similarity: s.Similarity,
			DistanceKM: s.DistanceKM,
			Combined:   s.Combined,
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal query log entry: %w", err)
	}
	if err := r.store.LPush(ctx, logKey, data); err != nil {
		return fmt.Errorf("push query log entry: %w", err)
	}
	if err := r.store.LTrim(ctx, logKey, r.maxEntries); err != nil {
		return fmt.Errorf("trim query log: %w", err)
	}
	return nil
}

// Recent returns up to n logged queries, newest first.
func (r *Repo) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := r.store.LRange(ctx, logKey, 0, int64(n)-1)
	if err != nil {
		return nil, fmt.Errorf("read query log: %w", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		var e Entry
		if err := json.Unmarshal(row, &e); err != nil {
			return nil, fmt.Errorf("unmarshal query log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
