// Package db defines the key-value storage contract used for the embedding
// cache and the query log.
package db

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for storage operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op constants map to Redis command names for error context.
const (
	OpGet    = "GET"
	OpSet    = "SET"
	OpLPush  = "LPUSH"
	OpLTrim  = "LTRIM"
	OpLRange = "LRANGE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Store is the key-value contract implemented by the Redis driver.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// LPush prepends a value to a list; LTrim caps the list length.
	LPush(ctx context.Context, key string, value []byte) error
	LTrim(ctx context.Context, key string, maxLen int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}
