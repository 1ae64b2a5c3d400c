package listing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grambazaar/bazarsearch/internal/domain"
	domlisting "github.com/grambazaar/bazarsearch/internal/domain/listing"
	"github.com/grambazaar/bazarsearch/internal/domain/geo"
	"github.com/grambazaar/bazarsearch/internal/domain/product"
)

// Input is the raw seller submission for a new listing.
type Input struct {
	SellerID  string
	Text      string
	District  string
	Location  *geo.Point
	ImageURLs []string
}

// Service turns raw seller input into a catalogued product: extract
// structured fields, embed the listing text, and store the snapshot.
type Service struct {
	extractor domlisting.Extractor
	embed     Embedder
	catalog   CatalogWriter
	logger    *zap.Logger
}

// New creates a listing ingestion service.
func New(extractor domlisting.Extractor, embed Embedder, catalog CatalogWriter, logger *zap.Logger) *Service {
	return &Service{extractor: extractor, embed: embed, catalog: catalog, logger: logger}
}

// CreateFromText ingests a free-form text listing.
// The first provided image URL becomes the primary image — an explicit
// policy applied once at creation time, not an ordering convention.
// An embedding failure stores the product unembedded rather than rejecting
// the listing; such products rank on proximity alone until re-embedded.
func (s *Service) CreateFromText(ctx context.Context, in Input) (product.Product, error) {
	if in.SellerID == "" {
		return product.Product{}, fmt.Errorf("%w: seller ID is required", domain.ErrInvalidListing)
	}
	if in.Text == "" {
		return product.Product{}, fmt.Errorf("%w: text is required", domain.ErrInvalidListing)
	}
	if in.District == "" {
		return product.Product{}, fmt.Errorf("%w: district is required", domain.ErrInvalidListing)
	}

	draft, err := s.extractor.Extract(ctx, in.Text)
	if err != nil {
		return product.Product{}, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}

	var embedding []float32
	embRes, err := s.embed.Embed(ctx, draft.Name+". "+draft.Description)
	if err != nil {
		s.logger.Warn("listing embedding failed, storing unembedded",
			zap.String("seller_id", in.SellerID), zap.Error(err))
	} else {
		embedding = embRes.Embedding
	}

	var primaryImage string
	if len(in.ImageURLs) > 0 {
		primaryImage = in.ImageURLs[0]
	}

	p, err := product.New(
		uuid.NewString(), in.SellerID,
		draft.Name, draft.Description, draft.Category, in.District,
		draft.Price, draft.Quantity, draft.Unit,
		primaryImage, in.Location, embedding,
	)
	if err != nil {
		return product.Product{}, fmt.Errorf("%w: %w", domain.ErrInvalidListing, err)
	}

	if err := s.catalog.Insert(ctx, p); err != nil {
		return product.Product{}, fmt.Errorf("insert product: %w", err)
	}

	s.logger.Info("listing created",
		zap.String("product_id", p.ID()),
		zap.String("district", p.District()),
		zap.Bool("embedded", len(embedding) > 0),
		zap.Float64("extraction_confidence", draft.Confidence),
	)
	return p, nil
}
