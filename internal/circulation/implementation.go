// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bookedin/internal/eventbus"
	"bookedin/internal/models"
	"bookedin/internal/storage"
)

// service implements the Service interface.
type service struct {
	store  storage.Store
	bus    *eventbus.Bus
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	checkouts metric.Int64Counter
	returns   metric.Int64Counter
	renewals  metric.Int64Counter
}

// Option customizes the service.
type Option func(*service)

// WithClock replaces the wall clock. Tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new circulation service instance. Events are
// published on bus only after the corresponding transaction has committed.
func NewService(store storage.Store, bus *eventbus.Bus, logger *zap.Logger, opts ...Option) Service {
	s := &service{
		store:  store,
		bus:    bus,
		logger: logger,
		tracer: otel.Tracer("bookedin/circulation"),
		now:    time.Now,
	}

	meter := otel.Meter("bookedin/circulation")
	s.checkouts, _ = meter.Int64Counter("circulation.checkouts",
		metric.WithDescription("Completed checkouts"))
	s.returns, _ = meter.Int64Counter("circulation.returns",
		metric.WithDescription("Completed returns"))
	s.renewals, _ = meter.Int64Counter("circulation.renewals",
		metric.WithDescription("Completed renewals"))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout flips one available copy to unavailable and opens the loan in a
// single transaction. No partial state survives a failure.
func (s *service) Checkout(ctx context.Context, isbn, username string, dueAt time.Time) (*models.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.checkout",
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.String("member.username", username),
		),
	)
	defer span.End()

	if _, err := s.store.Members().GetByUsername(ctx, username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBorrowerInvalid
		}
		return nil, fmt.Errorf("resolve borrower: %w", err)
	}

	var loan *models.Loan
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		freeCopy, err := tx.Copies().FindAvailable(ctx, isbn)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotAvailable
			}
			return fmt.Errorf("find available copy: %w", err)
		}

		// Conditional flip: if a concurrent checkout won the copy between
		// the read and the update, this reports a conflict instead of
		// lending the same copy twice.
		if err := tx.Copies().MarkUnavailable(ctx, freeCopy.ID); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrNotAvailable
			}
			return fmt.Errorf("flip copy availability: %w", err)
		}

		loan = &models.Loan{
			ID:         uuid.New(),
			CopyID:     freeCopy.ID,
			Username:   username,
			BorrowedAt: s.now(),
			DueAt:      dueAt,
		}
		if err := tx.Loans().Create(ctx, loan); err != nil {
			return fmt.Errorf("create loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.checkouts.Add(ctx, 1)
	s.logger.Info("book checked out",
		zap.String("isbn", isbn),
		zap.String("username", username),
		zap.Time("due_at", dueAt),
	)
	s.bus.Publish(eventbus.BookCheckedOut, eventbus.Payload{
		"isbn":     isbn,
		"copy_id":  loan.CopyID.String(),
		"username": username,
		"action":   "checkout",
	})
	s.bus.Publish(eventbus.DataChanged, nil)

	return loan, nil
}

// Return closes the loan and flips the copy back in one transaction, then
// notifies the waitlist head for the title.
func (s *service) Return(ctx context.Context, isbn, username, condition string, fine float64) error {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.String("member.username", username),
		),
	)
	defer span.End()

	// The return desk resolves the loan by title only: the librarian scans
	// the book, not the borrower's card.
	var loan *models.Loan
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		loan, err = tx.Loans().OpenByTitle(ctx, isbn)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrLoanNotFound
			}
			return fmt.Errorf("find open loan: %w", err)
		}
		if err := tx.Loans().Close(ctx, loan.ID, s.now()); err != nil {
			return fmt.Errorf("close loan: %w", err)
		}
		if err := tx.Copies().MarkAvailable(ctx, loan.CopyID); err != nil {
			return fmt.Errorf("flip copy availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Condition and fine are advisory; nothing durable records them.
	if condition == "Damaged" || condition == "Poor" {
		s.logger.Warn("copy returned in bad condition",
			zap.String("isbn", isbn),
			zap.String("condition", condition),
		)
	}
	if fine > 0 {
		s.logger.Info("fine assessed at return desk",
			zap.String("isbn", isbn),
			zap.String("username", username),
			zap.Float64("fine", fine),
		)
	}

	s.returns.Add(ctx, 1)
	s.logger.Info("book returned",
		zap.String("isbn", isbn),
		zap.String("username", username),
	)
	s.bus.Publish(eventbus.BookReturned, eventbus.Payload{
		"isbn":     isbn,
		"copy_id":  loan.CopyID.String(),
		"username": username,
		"action":   "return",
	})
	s.bus.Publish(eventbus.DataChanged, nil)

	s.reconcileWaitlist(ctx, isbn)
	return nil
}

// reconcileWaitlist moves the earliest waiting entry for the title to
// notified. The returned copy is NOT reserved for the notified borrower:
// anyone may still check it out first. A failure here is logged and does
// not undo the return, which has already committed.
func (s *service) reconcileWaitlist(ctx context.Context, isbn string) {
	var notified string
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		head, err := tx.Waitlist().Head(ctx, isbn)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("find waitlist head: %w", err)
		}
		if err := tx.Waitlist().MarkNotified(ctx, head.ID, s.now()); err != nil {
			return fmt.Errorf("mark entry notified: %w", err)
		}
		notified = head.Username
		return nil
	})
	if err != nil {
		s.logger.Error("waitlist reconciliation failed",
			zap.String("isbn", isbn),
			zap.Error(err),
		)
		return
	}
	if notified != "" {
		s.logger.Info("waitlist head notified",
			zap.String("isbn", isbn),
			zap.String("username", notified),
		)
	}
}

// Renew updates the due date in place. The loan identity, borrow date and
// copy binding are unchanged.
func (s *service) Renew(ctx context.Context, isbn, username string, newDueAt time.Time) error {
	ctx, span := s.tracer.Start(ctx, "circulation.renew",
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.String("member.username", username),
		),
	)
	defer span.End()

	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		// Unlike Return, renewal requires title AND borrower to match.
		loan, err := tx.Loans().OpenByTitleAndBorrower(ctx, isbn, username)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrLoanNotFound
			}
			return fmt.Errorf("find open loan: %w", err)
		}

		// Overdue means due strictly before today: a loan due today is
		// still renewable.
		if dateOnly(loan.DueAt).Before(dateOnly(s.now())) {
			return ErrOverdue
		}

		if err := tx.Loans().ExtendDueDate(ctx, loan.ID, newDueAt); err != nil {
			return fmt.Errorf("extend due date: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.renewals.Add(ctx, 1)
	s.logger.Info("loan renewed",
		zap.String("isbn", isbn),
		zap.String("username", username),
		zap.Time("due_at", newDueAt),
	)
	s.bus.Publish(eventbus.BookRenewed, eventbus.Payload{
		"isbn":     isbn,
		"username": username,
		"action":   "renew",
	})
	s.bus.Publish(eventbus.DataChanged, nil)

	return nil
}

// JoinWaitlist records a waiting entry stamped with the current time.
func (s *service) JoinWaitlist(ctx context.Context, isbn, username string) error {
	ctx, span := s.tracer.Start(ctx, "circulation.join_waitlist",
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.String("member.username", username),
		),
	)
	defer span.End()

	entry := &models.WaitlistEntry{
		ID:          uuid.New(),
		ISBN:        isbn,
		Username:    username,
		RequestedAt: s.now(),
		Status:      models.WaitlistWaiting,
	}
	if err := s.store.Waitlist().Enqueue(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("enqueue waitlist entry: %w", err)
	}

	s.logger.Info("joined waitlist",
		zap.String("isbn", isbn),
		zap.String("username", username),
	)
	return nil
}

// Summary re-runs the read queries a dashboard displays.
func (s *service) Summary(ctx context.Context) (*models.CirculationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.summary")
	defer span.End()

	total, available, err := s.store.Copies().Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count copies: %w", err)
	}
	open, err := s.store.Loans().OpenCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count open loans: %w", err)
	}
	pending, err := s.store.Waitlist().PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending waitlist entries: %w", err)
	}

	return &models.CirculationSummary{
		TotalCopies:     total,
		AvailableCopies: available,
		OpenLoans:       open,
		PendingWaitlist: pending,
	}, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
