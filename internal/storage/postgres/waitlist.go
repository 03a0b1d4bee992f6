package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookedin/internal/models"
	"bookedin/internal/storage"
)

type waitlistStore struct {
	ext sqlx.ExtContext
}

// Enqueue inserts a waiting entry. The unique (isbn, username) constraint
// enforces the one-pending-request-per-borrower rule.
func (s *waitlistStore) Enqueue(ctx context.Context, entry *models.WaitlistEntry) error {
	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(tableWaitlist).
		Prepared(true).
		Rows(goqu.Record{
			"id":           entry.ID,
			"isbn":         entry.ISBN,
			"username":     entry.Username,
			"requested_at": entry.RequestedAt,
			"status":       entry.Status,
			"notified_at":  entry.NotifiedAt,
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.ext.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// Head returns the earliest waiting entry for the title, locking it when
// called inside a transaction so reconciliation can flip it safely.
func (s *waitlistStore) Head(ctx context.Context, isbn string) (*models.WaitlistEntry, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableWaitlist).
		Prepared(true).
		Select("id", "isbn", "username", "requested_at", "status", "notified_at").
		Where(goqu.Ex{"isbn": isbn, "status": models.WaitlistWaiting}).
		Order(goqu.C("requested_at").Asc(), goqu.C("id").Asc()).
		Limit(1).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, s.ext, &entry, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query waitlist head: %w", err)
	}
	return &entry, nil
}

func (s *waitlistStore) MarkNotified(ctx context.Context, entryID uuid.UUID, notifiedAt time.Time) error {
	query, args, err := goqu.Dialect(dialectPostgres).
		Update(tableWaitlist).
		Prepared(true).
		Set(goqu.Record{"status": models.WaitlistNotified, "notified_at": notifiedAt}).
		Where(goqu.Ex{"id": entryID, "status": models.WaitlistWaiting}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	result, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update waitlist entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (s *waitlistStore) PendingCount(ctx context.Context) (int, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableWaitlist).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star()).As("pending")).
		Where(goqu.C("status").In(models.WaitlistWaiting, models.WaitlistNotified)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count struct {
		Pending int `db:"pending"`
	}
	if err := sqlx.GetContext(ctx, s.ext, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return count.Pending, nil
}
