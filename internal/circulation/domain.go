// internal/circulation/domain.go
package circulation

import "errors"

// Failures returned by the circulation service. Handlers match on these
// with errors.Is; anything else is a storage or connectivity failure that
// was rolled back and wrapped on the way up.
var (
	// ErrNotAvailable means no copy of the title is free at checkout time.
	ErrNotAvailable = errors.New("no copy of this title is available")

	// ErrLoanNotFound means the return or renewal target is not an open loan.
	ErrLoanNotFound = errors.New("no open loan found")

	// ErrOverdue rejects a renewal whose due date has already passed.
	// Overdue books must be returned, not renewed.
	ErrOverdue = errors.New("loan is overdue and cannot be renewed")

	// ErrDuplicateEntry rejects a waitlist join while a previous request by
	// the same borrower is still pending.
	ErrDuplicateEntry = errors.New("borrower already has a pending waitlist entry")

	// ErrBorrowerInvalid means the borrower identifier does not resolve to a
	// registered member.
	ErrBorrowerInvalid = errors.New("unknown borrower")
)
