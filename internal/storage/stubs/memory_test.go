package stubs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookedin/internal/models"
	"bookedin/internal/storage"
)

var seedTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newCopy(isbn string, available bool) models.BookCopy {
	return models.BookCopy{
		ID:        uuid.New(),
		ISBN:      isbn,
		Available: available,
		AddedAt:   seedTime,
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	c := newCopy("978-0441172719", true)
	require.NoError(t, mem.Copies().Add(ctx, []models.BookCopy{c}))

	boom := errors.New("boom")
	err := mem.WithinTx(ctx, func(tx storage.Store) error {
		if err := tx.Copies().MarkUnavailable(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.Loans().Create(ctx, &models.Loan{
			ID:         uuid.New(),
			CopyID:     c.ID,
			Username:   "alice",
			BorrowedAt: seedTime,
			DueAt:      seedTime.AddDate(0, 0, 14),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	copies := mem.AllCopies()
	require.Len(t, copies, 1)
	assert.True(t, copies[0].Available, "flip must be rolled back")
	assert.Empty(t, mem.AllLoans(), "loan insert must be rolled back")
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	c := newCopy("978-0441172719", true)
	require.NoError(t, mem.Copies().Add(ctx, []models.BookCopy{c}))

	err := mem.WithinTx(ctx, func(tx storage.Store) error {
		return tx.Copies().MarkUnavailable(ctx, c.ID)
	})
	require.NoError(t, err)

	copies := mem.AllCopies()
	require.Len(t, copies, 1)
	assert.False(t, copies[0].Available)
}

func TestNestedWithinTxJoins(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	c := newCopy("978-0441172719", true)
	require.NoError(t, mem.Copies().Add(ctx, []models.BookCopy{c}))

	boom := errors.New("boom")
	err := mem.WithinTx(ctx, func(tx storage.Store) error {
		return tx.WithinTx(ctx, func(inner storage.Store) error {
			if err := inner.Copies().MarkUnavailable(ctx, c.ID); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	// The inner failure rolls back the whole transaction.
	copies := mem.AllCopies()
	require.Len(t, copies, 1)
	assert.True(t, copies[0].Available)
}

func TestMarkUnavailableConflictsWhenAlreadyOut(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	c := newCopy("978-0441172719", false)
	require.NoError(t, mem.Copies().Add(ctx, []models.BookCopy{c}))

	err := mem.Copies().MarkUnavailable(ctx, c.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = mem.Copies().MarkUnavailable(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindAvailablePrefersOldestCopy(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	first := newCopy("978-0441172719", true)
	second := newCopy("978-0441172719", true)
	require.NoError(t, mem.Copies().Add(ctx, []models.BookCopy{first, second}))

	got, err := mem.Copies().FindAvailable(ctx, "978-0441172719")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	require.NoError(t, mem.Copies().MarkUnavailable(ctx, first.ID))
	got, err = mem.Copies().FindAvailable(ctx, "978-0441172719")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestEnqueueRejectsDuplicatePair(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	entry := &models.WaitlistEntry{
		ID:          uuid.New(),
		ISBN:        "978-0441172719",
		Username:    "bob",
		RequestedAt: seedTime,
		Status:      models.WaitlistWaiting,
	}
	require.NoError(t, mem.Waitlist().Enqueue(ctx, entry))

	dup := *entry
	dup.ID = uuid.New()
	err := mem.Waitlist().Enqueue(ctx, &dup)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestHeadOrdersByRequestTime(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	later := &models.WaitlistEntry{
		ID:          uuid.New(),
		ISBN:        "978-0441172719",
		Username:    "carol",
		RequestedAt: seedTime.Add(time.Hour),
		Status:      models.WaitlistWaiting,
	}
	earlier := &models.WaitlistEntry{
		ID:          uuid.New(),
		ISBN:        "978-0441172719",
		Username:    "bob",
		RequestedAt: seedTime,
		Status:      models.WaitlistWaiting,
	}
	require.NoError(t, mem.Waitlist().Enqueue(ctx, later))
	require.NoError(t, mem.Waitlist().Enqueue(ctx, earlier))

	head, err := mem.Waitlist().Head(ctx, "978-0441172719")
	require.NoError(t, err)
	assert.Equal(t, "bob", head.Username)

	require.NoError(t, mem.Waitlist().MarkNotified(ctx, earlier.ID, seedTime.Add(2*time.Hour)))

	head, err = mem.Waitlist().Head(ctx, "978-0441172719")
	require.NoError(t, err)
	assert.Equal(t, "carol", head.Username)
}

func TestMarkNotifiedRequiresWaitingStatus(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	entry := &models.WaitlistEntry{
		ID:          uuid.New(),
		ISBN:        "978-0441172719",
		Username:    "bob",
		RequestedAt: seedTime,
		Status:      models.WaitlistWaiting,
	}
	require.NoError(t, mem.Waitlist().Enqueue(ctx, entry))
	require.NoError(t, mem.Waitlist().MarkNotified(ctx, entry.ID, seedTime))

	err := mem.Waitlist().MarkNotified(ctx, entry.ID, seedTime)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestCloseLoanIsFinal(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	loan := &models.Loan{
		ID:         uuid.New(),
		CopyID:     uuid.New(),
		Username:   "alice",
		BorrowedAt: seedTime,
		DueAt:      seedTime.AddDate(0, 0, 14),
	}
	require.NoError(t, mem.Loans().Create(ctx, loan))
	require.NoError(t, mem.Loans().Close(ctx, loan.ID, seedTime.AddDate(0, 0, 7)))

	assert.ErrorIs(t, mem.Loans().Close(ctx, loan.ID, seedTime), storage.ErrConflict)
	assert.ErrorIs(t, mem.Loans().ExtendDueDate(ctx, loan.ID, seedTime), storage.ErrConflict)
}
