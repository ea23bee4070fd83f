package credential

import (
	"context"
	"errors"
)

// The store holds exactly one secret per installation, keyed by Key.
const Key = "openai_api_key"

var (
	// ErrNotFound is returned by Get when no secret has been saved.
	ErrNotFound = errors.New("credential not found")
	// ErrEmptySecret is returned by Save for empty or whitespace-only input.
	ErrEmptySecret = errors.New("credential must not be empty")
)

// Store persists the API credential across process restarts.
type Store interface {
	Get(ctx context.Context) (string, error)
	Save(ctx context.Context, secret string) error
	Clear(ctx context.Context) error
	Close() error
}
