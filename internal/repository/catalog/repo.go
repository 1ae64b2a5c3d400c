// Package catalog is the Postgres-backed product store.
package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/geo"
	"github.com/grambazaar/bazarsearch/internal/domain/product"
)

// Schema creates the products table. Applied at startup; idempotent.
// The embedding is a typed fixed-length vector (validated on every write),
// stored as packed little-endian float32.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id          UUID PRIMARY KEY,
	seller_id   TEXT NOT NULL,
	name        VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	category    VARCHAR(100) NOT NULL DEFAULT '',
	district    VARCHAR(100) NOT NULL,
	price       NUMERIC(10,2) NOT NULL,
	quantity    INTEGER NOT NULL DEFAULT 1,
	unit        VARCHAR(50) NOT NULL DEFAULT 'piece',
	image_url   TEXT NOT NULL DEFAULT '',
	latitude    NUMERIC(9,6),
	longitude   NUMERIC(9,6),
	embedding   BYTEA,
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	sold        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_products_district_active ON products (district, active);
CREATE INDEX IF NOT EXISTS idx_products_category_active ON products (category, active);
CREATE INDEX IF NOT EXISTS idx_products_seller ON products (seller_id);
`

const selectColumns = `id, seller_id, name, description, category, district,
	price, quantity, unit, image_url, latitude, longitude, embedding,
	active, sold, created_at`

// Repo stores products in Postgres.
type Repo struct {
	db  *sql.DB
	dim int
}

// New creates a catalog repository. vectorDim is the embedding dimension
// enforced on every insert; 0 disables the check (fake provider).
func New(database *sql.DB, vectorDim int) *Repo {
	return &Repo{db: database, dim: vectorDim}
}

// EnsureSchema applies the table schema.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Insert stores a new product. Ragged embeddings are rejected here, at write
// time, so query-time scoring never discovers them.
func (r *Repo) Insert(ctx context.Context, p product.Product) error {
	if r.dim > 0 && len(p.Embedding()) > 0 && len(p.Embedding()) != r.dim {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(p.Embedding()), r.dim)
	}

	var lat, lon sql.NullFloat64
	if loc := p.Location(); loc != nil {
		lat = sql.NullFloat64{Float64: loc.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: loc.Longitude, Valid: true}
	}

	query := `INSERT INTO products (id, seller_id, name, description, category, district,
		price, quantity, unit, image_url, latitude, longitude, embedding, active, sold, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID(), p.SellerID(), p.Name(), p.Description(), p.Category(), p.District(),
		p.Price().String(), p.Quantity(), p.Unit(), p.ImageURL(),
		lat, lon, encodeVector(p.Embedding()), p.Active(), p.Sold(), p.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Get loads one product by ID.
func (r *Repo) Get(ctx context.Context, id string) (product.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return product.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return product.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Query returns available candidate snapshots, optionally constrained by
// district and category. One statement, one consistent read: the ranker must
// never see a snapshot mixing stale and fresh rows.
func (r *Repo) Query(ctx context.Context, district, category string) ([]product.Product, error) {
	query, args := buildCandidateQuery(district, category)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return products, nil
}

// MarkSold flags a product as sold.
func (r *Repo) MarkSold(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE products SET sold = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("mark sold: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// buildCandidateQuery assembles the candidate SELECT with optional filters.
func buildCandidateQuery(district, category string) (string, []any) {
	query := "SELECT " + selectColumns + " FROM products WHERE active AND NOT sold"
	var args []any
	if district != "" {
		args = append(args, district)
		query += fmt.Sprintf(" AND district = $%d", len(args))
	}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (product.Product, error) {
	var (
		id, sellerID, name, description, category, district, unit, imageURL string
		priceStr                                                            string
		quantity                                                            int
		lat, lon                                                            sql.NullFloat64
		embData                                                             []byte
		active, sold                                                        bool
		createdAt                                                           time.Time
	)
	if err := row.Scan(
		&id, &sellerID, &name, &description, &category, &district,
		&priceStr, &quantity, &unit, &imageURL, &lat, &lon, &embData,
		&active, &sold, &createdAt,
	); err != nil {
		return product.Product{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return product.Product{}, fmt.Errorf("parse price %q: %w", priceStr, err)
	}

	var location *geo.Point
	if lat.Valid && lon.Valid {
		location = &geo.Point{Latitude: lat.Float64, Longitude: lon.Float64}
	}

	embedding, err := decodeVector(embData)
	if err != nil {
		return product.Product{}, err
	}

	return product.Reconstruct(
		id, sellerID, name, description, category, district,
		price, quantity, unit, imageURL, location, embedding,
		active, sold, createdAt,
	), nil
}

func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
