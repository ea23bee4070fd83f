package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the credential in PostgreSQL for deployments where
// the service does not own local disk.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		secret TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init credential schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context) (string, error) {
	var secret string
	err := s.pool.QueryRow(ctx,
		`SELECT secret FROM credentials WHERE key=$1`, Key,
	).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query credential: %w", err)
	}
	if secret == "" {
		return "", ErrNotFound
	}
	return secret, nil
}

func (s *PostgresStore) Save(ctx context.Context, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrEmptySecret
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (key, secret, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET secret=EXCLUDED.secret, updated_at=now()`,
		Key, secret,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM credentials WHERE key=$1`, Key); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
