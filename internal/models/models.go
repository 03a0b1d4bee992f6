package models

import (
	"time"

	"github.com/google/uuid"
)

// BookCopy is one physical, lendable unit of a title. Every copy of the same
// title shares the ISBN; title metadata rides along on each copy row.
type BookCopy struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ISBN      string    `db:"isbn" json:"isbn"`
	Title     string    `db:"title" json:"title"`
	Author    string    `db:"author" json:"author"`
	Available bool      `db:"available" json:"available"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}

// Loan is one borrowing episode. A nil ReturnedAt means the loan is open and
// the copy is out; a closed loan is never reopened.
type Loan struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CopyID     uuid.UUID  `db:"copy_id" json:"copy_id"`
	Username   string     `db:"username" json:"username"`
	BorrowedAt time.Time  `db:"borrowed_at" json:"borrowed_at"`
	DueAt      time.Time  `db:"due_at" json:"due_at"`
	ReturnedAt *time.Time `db:"returned_at" json:"returned_at,omitempty"`
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool {
	return l.ReturnedAt == nil
}

// Waitlist entry statuses. An entry never moves back to waiting once
// notified, and nothing transitions entries to expired automatically.
const (
	WaitlistWaiting  = "waiting"
	WaitlistNotified = "notified"
	WaitlistExpired  = "expired"
)

// WaitlistEntry records one borrower's request to be told when a title
// becomes available. At most one entry per (ISBN, username) pair exists.
type WaitlistEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ISBN        string     `db:"isbn" json:"isbn"`
	Username    string     `db:"username" json:"username"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	Status      string     `db:"status" json:"status"`
	NotifiedAt  *time.Time `db:"notified_at" json:"notified_at,omitempty"`
}

// Member is a registered library member who can borrow books.
type Member struct {
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Salt         string    `db:"salt" json:"-"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// CirculationSummary is the snapshot a dashboard re-queries whenever an
// event (or its fallback timer) fires.
type CirculationSummary struct {
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
	OpenLoans       int `json:"open_loans"`
	PendingWaitlist int `json:"pending_waitlist"`
}
