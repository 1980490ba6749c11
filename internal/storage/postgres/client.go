// Package postgres provides a PostgreSQL catalog backend. Lexical retrieval
// uses ts_rank over to_tsvector and vector retrieval uses the pgvector
// cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

// Client defines the subset of database/sql the store needs.
type Client interface {
	// Query executes a query that returns rows and passes them to the handler.
	// The rows are closed after the handler returns.
	Query(ctx context.Context, fn HandlerFunc, query string, args ...any) error

	// QueryRow executes a query that returns at most one row.
	QueryRow(ctx context.Context, dest []any, query string, args ...any) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}

// HandlerFunc processes query results.
type HandlerFunc func(*sql.Rows) error

type sqlClient struct {
	db *sql.DB
}

// Open creates a Client using the pgx driver and verifies the connection.
func Open(ctx context.Context, connString string) (Client, error) {
	if connString == "" {
		return nil, errors.New("postgres: connection string is empty")
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping database: %w", err)
	}

	return &sqlClient{db: db}, nil
}

// NewClient wraps an existing pool. Tests use it with go-sqlmock.
func NewClient(db *sql.DB) Client {
	return &sqlClient{db: db}
}

func (c *sqlClient) Query(ctx context.Context, handler HandlerFunc, query string, args ...any) error {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if err := handler(rows); err != nil {
		return err
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}

func (c *sqlClient) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	return c.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (c *sqlClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqlClient) Close() error {
	return c.db.Close()
}
