// Package postgres wraps database/sql with lib/pq: pooled connections,
// transactions and the chapter table schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/config"
	"github.com/lib/pq"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// ChapterTable returns the configured chapter table name, quoted for use in
// SQL text.
func (c *Client) ChapterTable() string {
	return pq.QuoteIdentifier(c.cfg.ChapterTable)
}

// ChapterTableName returns the unquoted chapter table name.
func (c *Client) ChapterTableName() string {
	return c.cfg.ChapterTable
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Migrate creates the chapter table and its lookup index when missing.
//
// One row per verse is allowed; count_of_chapter repeats the chapter's total
// character count on every row of that chapter.
func (c *Client) Migrate(ctx context.Context) error {
	table := c.ChapterTable()
	index := pq.QuoteIdentifier(c.cfg.ChapterTable + "_book_chapter_idx")
	return c.InTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				idx              BIGINT PRIMARY KEY,
				long_label       TEXT   NOT NULL,
				book             INT    NOT NULL,
				chapter          INT    NOT NULL,
				count_of_chapter BIGINT NOT NULL CHECK (count_of_chapter >= 0)
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (book, chapter, idx)`, index, table),
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}
