package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grambazaar/bazarsearch/internal/domain/search/query"
	"github.com/grambazaar/bazarsearch/internal/domain/search/result"
	"github.com/grambazaar/bazarsearch/internal/metrics"
)

// queryLogTimeout bounds the detached fire-and-forget log write.
const queryLogTimeout = 5 * time.Second

// Service orchestrates a search: embed the query, pull a candidate snapshot,
// rank, and hand the outcome to the query log.
type Service struct {
	catalog Catalog
	embed   Embedder
	log     QueryLog
	logger  *zap.Logger
}

// New creates a search service.
func New(catalog Catalog, embed Embedder, logger *zap.Logger) *Service {
	return &Service{catalog: catalog, embed: embed, logger: logger}
}

// WithQueryLog attaches an analytics sink for queries and ranked results.
func (s *Service) WithQueryLog(log QueryLog) *Service {
	s.log = log
	return s
}

// Search runs the full ranking pipeline for a validated query.
// An embedding provider failure degrades the search to proximity-only
// ranking; a catalog failure is terminal. Zero results is a valid outcome,
// not an error.
func (s *Service) Search(ctx context.Context, q *query.Query) ([]result.Item, error) {
	start := time.Now()

	var queryEmb []float32
	embRes, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		// No semantic signal: rank on proximity alone rather than failing.
		metrics.SearchDegradedTotal.Inc()
		s.logger.Warn("query embedding failed, ranking without semantic signal",
			zap.Error(err))
	} else {
		queryEmb = embRes.Embedding
	}

	candidates, err := s.catalog.Query(ctx, q.District(), q.Category())
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	items, stats := Rank(q, queryEmb, candidates)

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchCandidatesScanned.Observe(float64(stats.Candidates))
	metrics.SearchExcludedByDistanceTotal.Add(float64(stats.ExcludedByDistance))
	metrics.SearchDimMismatchTotal.Add(float64(stats.DimMismatches))
	if stats.DimMismatches > 0 {
		s.logger.Warn("embedding length mismatches scored as zero similarity",
			zap.Int("count", stats.DimMismatches))
	}

	s.recordAsync(ctx, q, items)

	return items, nil
}

// recordAsync writes to the query log in the background. The write is
// detached from the request context so a client disconnect does not cancel
// it, and a log failure never affects the returned ranking.
func (s *Service) recordAsync(ctx context.Context, q *query.Query, items []result.Item) {
	if s.log == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryLogTimeout)
	go func() {
		defer cancel()
		if err := s.log.Record(logCtx, q, items); err != nil {
			s.logger.Warn("query log record failed", zap.Error(err))
		}
	}()
}
