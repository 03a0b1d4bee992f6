package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookedin/internal/models"
	"bookedin/internal/storage"
)

type copyStore struct {
	ext sqlx.ExtContext
}

// FindAvailable picks any available copy of the title. Inside a transaction
// the row is locked so two concurrent checkouts of the last remaining copy
// cannot both see it as available.
func (s *copyStore) FindAvailable(ctx context.Context, isbn string) (*models.BookCopy, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableCopies).
		Prepared(true).
		Select("id", "isbn", "title", "author", "available", "added_at").
		Where(goqu.Ex{"isbn": isbn, "available": true}).
		Order(goqu.C("added_at").Asc(), goqu.C("id").Asc()).
		Limit(1).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var row models.BookCopy
	if err := sqlx.GetContext(ctx, s.ext, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query available copy: %w", err)
	}
	return &row, nil
}

// MarkUnavailable flips the copy out of circulation. The conditional WHERE
// keeps a lost race from lending the same copy twice.
func (s *copyStore) MarkUnavailable(ctx context.Context, copyID uuid.UUID) error {
	return s.setAvailable(ctx, copyID, false, true)
}

func (s *copyStore) MarkAvailable(ctx context.Context, copyID uuid.UUID) error {
	return s.setAvailable(ctx, copyID, true, false)
}

func (s *copyStore) setAvailable(ctx context.Context, copyID uuid.UUID, available, conditional bool) error {
	where := goqu.Ex{"id": copyID}
	if conditional {
		where["available"] = !available
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		Update(tableCopies).
		Prepared(true).
		Set(goqu.Record{"available": available}).
		Where(where).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	result, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update copy availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if conditional {
			return storage.ErrConflict
		}
		return storage.ErrNotFound
	}
	return nil
}

func (s *copyStore) Add(ctx context.Context, copies []models.BookCopy) error {
	if len(copies) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(copies))
	for _, c := range copies {
		rows = append(rows, goqu.Record{
			"id":        c.ID,
			"isbn":      c.ISBN,
			"title":     c.Title,
			"author":    c.Author,
			"available": c.Available,
			"added_at":  c.AddedAt,
		})
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(tableCopies).
		Prepared(true).
		Rows(rows...).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.ext.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert copies: %w", err)
	}
	return nil
}

func (s *copyStore) Counts(ctx context.Context) (int, int, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableCopies).
		Prepared(true).
		Select(
			goqu.COUNT(goqu.Star()).As("total"),
			goqu.L("COUNT(*) FILTER (WHERE available)").As("available"),
		).
		ToSQL()
	if err != nil {
		return 0, 0, fmt.Errorf("build count query: %w", err)
	}

	var counts struct {
		Total     int `db:"total"`
		Available int `db:"available"`
	}
	if err := sqlx.GetContext(ctx, s.ext, &counts, query, args...); err != nil {
		return 0, 0, fmt.Errorf("count copies: %w", err)
	}
	return counts.Total, counts.Available, nil
}
