// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"bookedin/internal/models"
)

// Service is the circulation engine: the transactional operations that move
// a book copy between available and checked out, plus the per-title
// waitlist.
type Service interface {
	// Checkout lends any available copy of the title to the borrower. The
	// caller computes the due date; no default loan period is applied here.
	Checkout(ctx context.Context, isbn, username string, dueAt time.Time) (*models.Loan, error)

	// Return closes the oldest open loan for the title, whoever holds it.
	// Condition and fine are advisory and are not persisted.
	Return(ctx context.Context, isbn, username, condition string, fine float64) error

	// Renew moves the due date of the borrower's open loan for the title.
	// A loan due today is still renewable; one due yesterday is not.
	Renew(ctx context.Context, isbn, username string, newDueAt time.Time) error

	// JoinWaitlist records the borrower's request to be notified when the
	// title becomes available.
	JoinWaitlist(ctx context.Context, isbn, username string) error

	// Summary reports the counts dashboards display.
	Summary(ctx context.Context) (*models.CirculationSummary, error)
}
