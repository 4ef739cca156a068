package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/postgres"
	"github.com/lib/pq"
)

// PostgresSource reads chapters from the chapter table. The table may hold one
// row per verse; the first row of each (book, chapter) pair represents the
// chapter and carries its total character count.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgres(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

func (s *PostgresSource) chapterQuery() string {
	table := s.db.ChapterTable()
	return fmt.Sprintf(`
		SELECT b.idx, b.long_label, b.chapter, b.count_of_chapter
		FROM %[1]s b
		INNER JOIN (
			SELECT book, chapter, MIN(idx) AS min_idx
			FROM %[1]s
			GROUP BY book, chapter
		) sub
		ON b.book = sub.book AND b.chapter = sub.chapter AND b.idx = sub.min_idx
		ORDER BY b.idx`, table)
}

func (s *PostgresSource) FetchUnits(ctx context.Context) (plan.UnitList, error) {
	rows, err := s.db.DB.QueryContext(ctx, s.chapterQuery())
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	units := make(plan.UnitList, 0, 1189)
	for rows.Next() {
		var u plan.Unit
		if err := rows.Scan(&u.Index, &u.Label, &u.GroupLabel, &u.Size); err != nil {
			return nil, fmt.Errorf("scanning chapter row: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chapter rows: %w", err)
	}
	s.logger.Debug("chapters fetched", "count", len(units))
	return units, nil
}

// Import replaces the chapter table contents with units in one transaction
// using COPY. book is derived from label changes in order.
func (s *PostgresSource) Import(ctx context.Context, units plan.UnitList) error {
	if err := Validate(units); err != nil {
		return err
	}
	table := s.db.ChapterTable()
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing chapters: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.db.ChapterTableName(), "idx", "long_label", "book", "chapter", "count_of_chapter"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		book := 0
		for i, u := range units {
			if i == 0 || u.Label != units[i-1].Label {
				book++
			}
			if _, err := stmt.ExecContext(ctx, u.Index, u.Label, book, u.GroupLabel, u.Size); err != nil {
				stmt.Close()
				return fmt.Errorf("copying chapter %d: %w", u.Index, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("closing copy: %w", err)
		}
		s.logger.Info("chapters imported", "count", len(units), "books", book)
		return nil
	})
}

// Ping reports whether the chapter table is reachable.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
