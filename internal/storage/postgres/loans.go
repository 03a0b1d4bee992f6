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

type loanLedger struct {
	ext sqlx.ExtContext
}

func (s *loanLedger) Create(ctx context.Context, loan *models.Loan) error {
	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(tableLoans).
		Prepared(true).
		Rows(goqu.Record{
			"id":          loan.ID,
			"copy_id":     loan.CopyID,
			"username":    loan.Username,
			"borrowed_at": loan.BorrowedAt,
			"due_at":      loan.DueAt,
			"returned_at": loan.ReturnedAt,
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.ext.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (s *loanLedger) OpenByTitle(ctx context.Context, isbn string) (*models.Loan, error) {
	return s.findOpen(ctx, isbn, "")
}

func (s *loanLedger) OpenByTitleAndBorrower(ctx context.Context, isbn, username string) (*models.Loan, error) {
	return s.findOpen(ctx, isbn, username)
}

func (s *loanLedger) findOpen(ctx context.Context, isbn, username string) (*models.Loan, error) {
	where := []exp.Expression{
		goqu.Ex{"c.isbn": isbn},
		goqu.I("l.returned_at").IsNull(),
	}
	if username != "" {
		where = append(where, goqu.Ex{"l.username": username})
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		From(goqu.T(tableLoans).As("l")).
		Prepared(true).
		Select(
			goqu.I("l.id"),
			goqu.I("l.copy_id"),
			goqu.I("l.username"),
			goqu.I("l.borrowed_at"),
			goqu.I("l.due_at"),
			goqu.I("l.returned_at"),
		).
		Join(goqu.T(tableCopies).As("c"), goqu.On(goqu.I("l.copy_id").Eq(goqu.I("c.id")))).
		Where(where...).
		Order(goqu.I("l.borrowed_at").Asc(), goqu.I("l.id").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var loan models.Loan
	if err := sqlx.GetContext(ctx, s.ext, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query open loan: %w", err)
	}
	return &loan, nil
}

// Close stamps the return date. The IS NULL guard keeps a closed loan from
// ever being closed twice.
func (s *loanLedger) Close(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) error {
	return s.updateOpen(ctx, loanID, goqu.Record{"returned_at": returnedAt})
}

func (s *loanLedger) ExtendDueDate(ctx context.Context, loanID uuid.UUID, dueAt time.Time) error {
	return s.updateOpen(ctx, loanID, goqu.Record{"due_at": dueAt})
}

func (s *loanLedger) updateOpen(ctx context.Context, loanID uuid.UUID, set goqu.Record) error {
	query, args, err := goqu.Dialect(dialectPostgres).
		Update(tableLoans).
		Prepared(true).
		Set(set).
		Where(goqu.Ex{"id": loanID}, goqu.C("returned_at").IsNull()).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	result, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
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

func (s *loanLedger) OpenCount(ctx context.Context) (int, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableLoans).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star()).As("open")).
		Where(goqu.C("returned_at").IsNull()).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count struct {
		Open int `db:"open"`
	}
	if err := sqlx.GetContext(ctx, s.ext, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count open loans: %w", err)
	}
	return count.Open, nil
}
