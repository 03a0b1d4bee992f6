package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"bookedin/internal/storage"
)

const dialectPostgres = "postgres"

const (
	tableCopies   = "copies"
	tableLoans    = "loans"
	tableWaitlist = "waitlist"
	tableMembers  = "members"
)

// Store implements storage.Store on a PostgreSQL database. Outside a
// transaction every operation runs directly against the pool; WithinTx
// binds a derived Store to a single transaction.
type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// New wraps an open sqlx database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

func (s *Store) Copies() storage.CopyStore        { return &copyStore{ext: s.ext} }
func (s *Store) Loans() storage.LoanLedger        { return &loanLedger{ext: s.ext} }
func (s *Store) Waitlist() storage.WaitlistStore  { return &waitlistStore{ext: s.ext} }
func (s *Store) Members() storage.MemberDirectory { return &memberDirectory{ext: s.ext} }

// WithinTx runs fn against a Store bound to one transaction and commits it
// if fn succeeds. Any error rolls everything back. A nested call joins the
// enclosing transaction instead of opening a second one.
func (s *Store) WithinTx(ctx context.Context, fn func(storage.Store) error) error {
	if _, inTx := s.ext.(*sqlx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
