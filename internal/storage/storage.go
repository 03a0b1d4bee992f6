package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"bookedin/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness rule.
	ErrDuplicate = errors.New("storage: duplicate entry")
	// ErrConflict is returned when a conditional update loses to a
	// concurrent writer, e.g. flipping a copy that is no longer available.
	ErrConflict = errors.New("storage: conflicting concurrent update")
)

// CopyStore manages book copy rows and their availability flag.
type CopyStore interface {
	// FindAvailable returns any available copy of the title, or ErrNotFound.
	// Inside a transaction the selected row is locked until commit.
	FindAvailable(ctx context.Context, isbn string) (*models.BookCopy, error)

	// MarkUnavailable flips the copy to unavailable. Returns ErrConflict if
	// the copy was not available, so a lost race never double-lends a copy.
	MarkUnavailable(ctx context.Context, copyID uuid.UUID) error

	// MarkAvailable flips the copy back to available.
	MarkAvailable(ctx context.Context, copyID uuid.UUID) error

	// Add inserts new copy rows, typically when a title enters the catalog.
	Add(ctx context.Context, copies []models.BookCopy) error

	// Counts returns the total and available copy counts.
	Counts(ctx context.Context) (total, available int, err error)
}

// LoanLedger manages loan rows, one per borrowing episode.
type LoanLedger interface {
	Create(ctx context.Context, loan *models.Loan) error

	// OpenByTitle returns the oldest open loan for any copy of the title.
	// The return desk resolves loans by title only, not by borrower.
	OpenByTitle(ctx context.Context, isbn string) (*models.Loan, error)

	// OpenByTitleAndBorrower returns the open loan held by a specific
	// borrower for the title. Renewals require both to match.
	OpenByTitleAndBorrower(ctx context.Context, isbn, username string) (*models.Loan, error)

	// Close stamps the return date. A closed loan stays closed; closing an
	// already-closed loan returns ErrConflict.
	Close(ctx context.Context, loanID uuid.UUID, returnedAt time.Time) error

	// ExtendDueDate replaces the due date of an open loan in place.
	ExtendDueDate(ctx context.Context, loanID uuid.UUID, dueAt time.Time) error

	OpenCount(ctx context.Context) (int, error)
}

// WaitlistStore manages per-title waiting entries.
type WaitlistStore interface {
	// Enqueue inserts a new waiting entry. Returns ErrDuplicate if the
	// borrower already has an entry for the title.
	Enqueue(ctx context.Context, entry *models.WaitlistEntry) error

	// Head returns the waiting entry with the earliest request time for the
	// title, or ErrNotFound when nobody is waiting.
	Head(ctx context.Context, isbn string) (*models.WaitlistEntry, error)

	// MarkNotified transitions a waiting entry to notified and stamps the
	// notification time. Returns ErrConflict if the entry is not waiting.
	MarkNotified(ctx context.Context, entryID uuid.UUID, notifiedAt time.Time) error

	// PendingCount counts entries in waiting or notified status.
	PendingCount(ctx context.Context) (int, error)
}

// MemberDirectory resolves and registers borrowers.
type MemberDirectory interface {
	// Create inserts a member. Returns ErrDuplicate on a username collision.
	Create(ctx context.Context, member *models.Member) error

	GetByUsername(ctx context.Context, username string) (*models.Member, error)
}

// Store bundles the leaf stores behind one backing database. WithinTx runs
// fn against a store bound to a single transaction: the writes fn performs
// commit together or roll back together, and no partial state is ever
// observable outside the transaction. Calling WithinTx on an already
// transaction-bound store joins the enclosing transaction.
type Store interface {
	Copies() CopyStore
	Loans() LoanLedger
	Waitlist() WaitlistStore
	Members() MemberDirectory

	WithinTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
