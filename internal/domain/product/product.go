package product

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grambazaar/bazarsearch/internal/domain/geo"
)

// MaxNameLength is the maximum product name length.
const MaxNameLength = 255

// Product is a marketplace listing snapshot (immutable value object).
// Snapshots are fully materialized: the embedding and coordinates are
// resolved at load time, never fetched lazily.
type Product struct {
	id          string
	sellerID    string
	name        string
	description string
	category    string
	district    string
	price       decimal.Decimal
	quantity    int
	unit        string
	imageURL    string
	location    *geo.Point
	embedding   []float32
	active      bool
	sold        bool
	createdAt   time.Time
}

// New validates and creates a Product.
// Name, description and district are required. Quantity defaults to 1,
// unit to "piece". A location, when present, must hold valid coordinates.
func New(
	id, sellerID, name, description, category, district string,
	price decimal.Decimal, quantity int, unit string,
	imageURL string, location *geo.Point, embedding []float32,
) (Product, error) {
	if id == "" {
		return Product{}, fmt.Errorf("product ID is required")
	}
	if sellerID == "" {
		return Product{}, fmt.Errorf("seller ID is required")
	}
	if name == "" {
		return Product{}, fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLength {
		return Product{}, fmt.Errorf("name too long (max %d)", MaxNameLength)
	}
	if description == "" {
		return Product{}, fmt.Errorf("description is required")
	}
	if district == "" {
		return Product{}, fmt.Errorf("district is required")
	}
	if price.IsNegative() {
		return Product{}, fmt.Errorf("price must not be negative")
	}
	if quantity <= 0 {
		quantity = 1
	}
	if unit == "" {
		unit = "piece"
	}
	if location != nil && !location.Valid() {
		return Product{}, fmt.Errorf("invalid coordinates (%f, %f)",
			location.Latitude, location.Longitude)
	}

	return Product{
		id:          id,
		sellerID:    sellerID,
		name:        name,
		description: description,
		category:    category,
		district:    district,
		price:       price,
		quantity:    quantity,
		unit:        unit,
		imageURL:    imageURL,
		location:    location,
		embedding:   embedding,
		active:      true,
		sold:        false,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Product without validation (storage hydration).
func Reconstruct(
	id, sellerID, name, description, category, district string,
	price decimal.Decimal, quantity int, unit string,
	imageURL string, location *geo.Point, embedding []float32,
	active, sold bool, createdAt time.Time,
) Product {
	return Product{
		id: id, sellerID: sellerID, name: name, description: description,
		category: category, district: district,
		price: price, quantity: quantity, unit: unit,
		imageURL: imageURL, location: location, embedding: embedding,
		active: active, sold: sold, createdAt: createdAt,
	}
}

// ID returns the product identifier.
func (p *Product) ID() string { return p.id }

// SellerID returns the seller identifier.
func (p *Product) SellerID() string { return p.sellerID }

// Name returns the product name.
func (p *Product) Name() string { return p.name }

// Description returns the product description.
func (p *Product) Description() string { return p.description }

// Category returns the category name (empty when uncategorized).
func (p *Product) Category() string { return p.category }

// District returns the listing district.
func (p *Product) District() string { return p.district }

// Price returns the listing price.
func (p *Product) Price() decimal.Decimal { return p.price }

// Quantity returns the available quantity.
func (p *Product) Quantity() int { return p.quantity }

// Unit returns the sale unit (piece, kg, dozen...).
func (p *Product) Unit() string { return p.unit }

// ImageURL returns the primary image URL (empty when none).
func (p *Product) ImageURL() string { return p.imageURL }

// Location returns the listing coordinates (nil when the seller gave none).
func (p *Product) Location() *geo.Point { return p.location }

// Embedding returns the semantic vector (nil when the product was never embedded).
func (p *Product) Embedding() []float32 { return p.embedding }

// Active reports whether the listing is live.
func (p *Product) Active() bool { return p.active }

// Sold reports whether the listing has been sold.
func (p *Product) Sold() bool { return p.sold }

// CreatedAt returns the creation timestamp.
func (p *Product) CreatedAt() time.Time { return p.createdAt }

// Available reports whether the product is eligible for search results.
func (p *Product) Available() bool { return p.active && !p.sold }
