package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/listing"
	"github.com/grambazaar/bazarsearch/internal/metrics"
)

const extractionPrompt = `Extract structured product information from the following seller text.
Return ONLY a valid JSON object with these exact fields (no markdown, no code blocks):

{
  "name": "product name",
  "description": "detailed product description",
  "category": "suggested category",
  "price": numeric value only,
  "quantity": numeric value only,
  "unit": "piece/kg/dozen/liter/etc",
  "keywords": ["keyword1", "keyword2"],
  "confidence": 0.0-1.0
}

Text: %s

Remember: Return ONLY the JSON object, nothing else.`

// Extractor turns free-form seller text into a structured listing draft
// using an OpenAI-compatible chat completion API.
type Extractor struct {
	client   *openai.Client
	model    string
	provider string
	retries  uint
	logger   *zap.Logger
}

// ExtractorConfig holds the extraction provider settings.
type ExtractorConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Retries  uint
	Logger   *zap.Logger
}

// NewExtractor creates an OpenAI-compatible listing extractor.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 1
	}

	return &Extractor{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		retries:  retries,
		logger:   cfg.Logger,
	}
}

// extractedListing mirrors the JSON object the model is asked to produce.
type extractedListing struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
	Unit        string   `json:"unit"`
	Keywords    []string `json:"keywords"`
	Confidence  float64  `json:"confidence"`
}

// Extract implements listing.Extractor.
func (e *Extractor) Extract(ctx context.Context, text string) (listing.Draft, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(extractionPrompt, text),
			},
		},
		Temperature: 0,
	}

	start := time.Now()

	var resp openai.ChatCompletionResponse
	err := retry.Do(
		func() error {
			var callErr error
			resp, callErr = e.client.CreateChatCompletion(ctx, req)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(e.retries),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying extraction request",
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", e.retries),
				zap.Error(err))
		}),
	)
	if err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		return listing.Draft{}, fmt.Errorf("chat completion: %w: %w", err, domain.ErrExtractionFailed)
	}

	if len(resp.Choices) == 0 {
		metrics.ExtractionRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		return listing.Draft{}, fmt.Errorf("empty completion response: %w", domain.ErrExtractionFailed)
	}

	raw := stripCodeFences(resp.Choices[0].Message.Content)

	var parsed extractedListing
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		metrics.ExtractionRequestsTotal.WithLabelValues(e.provider, e.model, "parse_error").Inc()
		return listing.Draft{}, fmt.Errorf("parse extracted listing: %w: %w", err, domain.ErrExtractionFailed)
	}

	metrics.ExtractionRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	e.logger.Debug("listing extracted",
		zap.String("model", e.model),
		zap.Float64("confidence", parsed.Confidence),
		zap.Duration("duration", time.Since(start)))

	return listing.Draft{
		Name:        parsed.Name,
		Description: parsed.Description,
		Category:    parsed.Category,
		Price:       decimal.NewFromFloat(parsed.Price),
		Quantity:    parsed.Quantity,
		Unit:        parsed.Unit,
		Keywords:    parsed.Keywords,
		Confidence:  parsed.Confidence,
	}, nil
}

// stripCodeFences removes a surrounding markdown code block from a model
// response. Some models wrap JSON in ```json fences despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
