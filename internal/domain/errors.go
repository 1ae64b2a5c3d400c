package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals a missing product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidQuery signals invalid search parameters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidListing signals invalid listing input.
	ErrInvalidListing = errors.New("invalid listing")
	// ErrVectorDimMismatch signals a vector dimension mismatch at write time.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrExtractionFailed signals that the listing extractor could not produce structured data.
	ErrExtractionFailed = errors.New("listing extraction failed")
)
