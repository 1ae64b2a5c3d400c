package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a bazarsearch server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchRequest is the payload for Search.
type SearchRequest struct {
	Query         string   `json:"query"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	District      string   `json:"district,omitempty"`
	Category      string   `json:"category,omitempty"`
	MaxDistanceKM float64  `json:"max_distance_km,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// SearchResult is one ranked product.
type SearchResult struct {
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

// SearchResponse is the Search result set.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// Search runs a ranked product search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/v1/search", req, &resp); err != nil {
		return SearchResponse{}, err
	}
	return resp, nil
}

// CreateListingRequest is the payload for CreateListing.
type CreateListingRequest struct {
	SellerID  string   `json:"seller_id"`
	Text      string   `json:"text"`
	District  string   `json:"district"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// Listing is a catalogued product as returned by the server.
type Listing struct {
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

// CreateListing ingests a free-form text listing.
func (c *Client) CreateListing(ctx context.Context, req CreateListingRequest) (Listing, error) {
	var resp Listing
	if err := c.post(ctx, "/v1/listings", req, &resp); err != nil {
		return Listing{}, err
	}
	return resp, nil
}

// HealthReport is the server health snapshot.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health fetches the server health report. A degraded or unhealthy
// server still returns a report, not an error.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return HealthReport{}, fmt.Errorf("sdk: build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthReport{}, fmt.Errorf("sdk: health request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	var report HealthReport
	if err := json.NewDecoder(httpResp.Body).Decode(&report); err != nil {
		return HealthReport{}, fmt.Errorf("sdk: decode health response: %w", err)
	}
	return report, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sdk: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("sdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sdk: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return apiErrorFromResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sdk: decode response: %w", err)
	}
	return nil
}

func apiErrorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Code != "" {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
