// Package chi exposes the search and listing services over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/geo"
	"github.com/grambazaar/bazarsearch/internal/domain/search/query"
	"github.com/grambazaar/bazarsearch/internal/domain/search/result"
	healthuc "github.com/grambazaar/bazarsearch/internal/usecase/health"
	listinguc "github.com/grambazaar/bazarsearch/internal/usecase/listing"
	searchuc "github.com/grambazaar/bazarsearch/internal/usecase/search"
)

// Error response codes.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeExtractionFailed = "extraction_failed"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the marketplace search API.
type Server struct {
	search        *searchuc.Service
	listings      *listinguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	listings *listinguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		listings: listings,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidListing, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrExtractionFailed, http.StatusBadGateway, codeExtractionFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Routes mounts all handlers on a chi router.
func (s *Server) Routes(r chirouter.Router) {
	r.Post("/v1/search", s.SearchProducts)
	r.Post("/v1/listings", s.CreateListing)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// searchRequest is the POST /v1/search payload.
type searchRequest struct {
	Query         string   `json:"query"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	District      string   `json:"district,omitempty"`
	Category      string   `json:"category,omitempty"`
	MaxDistanceKM float64  `json:"max_distance_km,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// searchResultRow is one ranked product in the search response.
type searchResultRow struct {
	Rank            int      `json:"rank"`
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category,omitempty"`
	District        string   `json:"district"`
	Price           string   `json:"price"`
	Unit            string   `json:"unit"`
	ImageURL        string   `json:"image_url,omitempty"`
	CombinedScore   float64  `json:"combined_score"`
	SimilarityScore float64  `json:"similarity_score"`
	DistanceScore   float64  `json:"distance_score"`
	DistanceKM      *float64 `json:"distance_km,omitempty"`
}

type searchResponse struct {
	Results []searchResultRow `json:"results"`
	Total   int               `json:"total"`
}

// SearchProducts handles POST /v1/search.
func (s *Server) SearchProducts(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	loc, err := pointFromRequest(req.Latitude, req.Longitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	q, err := query.New(req.Query, loc, req.District, req.Category, req.MaxDistanceKM, req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	items, err := s.search.Search(r.Context(), &q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	rows := make([]searchResultRow, len(items))
	for i := range items {
		rows[i] = resultToRow(&items[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results: rows,
		Total:   len(rows),
	})
}

// createListingRequest is the POST /v1/listings payload.
type createListingRequest struct {
	SellerID  string   `json:"seller_id"`
	Text      string   `json:"text"`
	District  string   `json:"district"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// createListingResponse echoes the catalogued product.
type createListingResponse struct {
	ID          string `json:"id"`
	SellerID    string `json:"seller_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	District    string `json:"district"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit"`
	ImageURL    string `json:"image_url,omitempty"`
	Embedded    bool   `json:"embedded"`
}

// CreateListing handles POST /v1/listings.
func (s *Server) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	loc, err := pointFromRequest(req.Latitude, req.Longitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	p, err := s.listings.CreateFromText(r.Context(), listinguc.Input{
		SellerID:  req.SellerID,
		Text:      req.Text,
		District:  req.District,
		Location:  loc,
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/listings/"+p.ID())
	writeJSON(w, http.StatusCreated, createListingResponse{
		ID:          p.ID(),
		SellerID:    p.SellerID(),
		Name:        p.Name(),
		Description: p.Description(),
		Category:    p.Category(),
		District:    p.District(),
		Price:       p.Price().String(),
		Quantity:    p.Quantity(),
		Unit:        p.Unit(),
		ImageURL:    p.ImageURL(),
		Embedded:    len(p.Embedding()) > 0,
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// pointFromRequest builds a validated geo point from optional coordinates.
// Both must be present or both absent.
func pointFromRequest(lat, lon *float64) (*geo.Point, error) {
	if lat == nil && lon == nil {
		return nil, nil
	}
	if lat == nil || lon == nil {
		return nil, errors.New("latitude and longitude must be provided together")
	}
	p := &geo.Point{Latitude: *lat, Longitude: *lon}
	if !p.Valid() {
		return nil, errors.New("coordinates out of range")
	}
	return p, nil
}

func resultToRow(item *result.Item) searchResultRow {
	p := item.Product()
	sc := item.Score()
	return searchResultRow{
		Rank:            item.Rank(),
		ID:              p.ID(),
		Name:            p.Name(),
		Description:     p.Description(),
		Category:        p.Category(),
		District:        p.District(),
		Price:           p.Price().String(),
		Unit:            p.Unit(),
		ImageURL:        p.ImageURL(),
		CombinedScore:   sc.Combined,
		SimilarityScore: sc.Similarity,
		DistanceScore:   sc.DistanceScore,
		DistanceKM:      sc.DistanceKM,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrProductNotFound,
		domain.ErrInvalidQuery,
		domain.ErrInvalidListing,
		domain.ErrVectorDimMismatch,
		domain.ErrExtractionFailed,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
