// Package cache holds the short-lived key/value stores behind the stock ledger.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by GetInt when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// IntCache stores small integer values with a TTL.
type IntCache interface {
	GetInt(ctx context.Context, key string) (int, error)
	SetInt(ctx context.Context, key string, value int, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
