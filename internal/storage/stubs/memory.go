// Package stubs provides an in-memory storage.Store used by unit tests and
// by USE_MOCK_DB mode. Transactions are emulated by snapshotting state before
// the transaction body runs and restoring the snapshot if it fails, so
// rollback semantics match the Postgres implementation.
package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookedin/internal/models"
	"bookedin/internal/storage"
)

type state struct {
	copies   map[uuid.UUID]models.BookCopy
	loans    map[uuid.UUID]models.Loan
	waitlist map[uuid.UUID]models.WaitlistEntry
	members  map[string]models.Member

	// seq preserves insertion order for deterministic "first match" and
	// FIFO lookups even when timestamps collide.
	seq     map[uuid.UUID]int
	nextSeq int
}

func newState() *state {
	return &state{
		copies:   make(map[uuid.UUID]models.BookCopy),
		loans:    make(map[uuid.UUID]models.Loan),
		waitlist: make(map[uuid.UUID]models.WaitlistEntry),
		members:  make(map[string]models.Member),
		seq:      make(map[uuid.UUID]int),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextSeq = s.nextSeq
	for k, v := range s.copies {
		c.copies[k] = v
	}
	for k, v := range s.loans {
		v.ReturnedAt = cloneTime(v.ReturnedAt)
		c.loans[k] = v
	}
	for k, v := range s.waitlist {
		v.NotifiedAt = cloneTime(v.NotifiedAt)
		c.waitlist[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Memory is an in-memory Store. The zero value is not usable; construct
// with NewMemory. Safe for concurrent use.
type Memory struct {
	mu sync.Mutex
	st *state

	// Fault injection for transaction tests: when set, the matching
	// operation fails with the given error.
	FailCreateLoan    error
	FailMarkAvailable error
	FailMarkNotified  error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func (m *Memory) Copies() storage.CopyStore        { return copyView{m, true} }
func (m *Memory) Loans() storage.LoanLedger        { return loanView{m, true} }
func (m *Memory) Waitlist() storage.WaitlistStore  { return waitView{m, true} }
func (m *Memory) Members() storage.MemberDirectory { return memberView{m, true} }

// WithinTx serializes the transaction body behind the store mutex and rolls
// back every change the body made if it returns an error.
func (m *Memory) WithinTx(_ context.Context, fn func(storage.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txMemory{m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Close implements storage.Store.
func (m *Memory) Close() error { return nil }

// AllCopies returns every copy row in insertion order. Test helper.
func (m *Memory) AllCopies() []models.BookCopy {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.BookCopy, 0, len(m.st.copies))
	for _, c := range m.st.copies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return m.st.seq[out[i].ID] < m.st.seq[out[j].ID] })
	return out
}

// AllLoans returns every loan row in insertion order. Test helper.
func (m *Memory) AllLoans() []models.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Loan, 0, len(m.st.loans))
	for _, l := range m.st.loans {
		l.ReturnedAt = cloneTime(l.ReturnedAt)
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return m.st.seq[out[i].ID] < m.st.seq[out[j].ID] })
	return out
}

// txMemory is a Store bound to an in-flight transaction: the enclosing
// WithinTx already holds the mutex, so its views skip locking. A nested
// WithinTx joins the transaction.
type txMemory struct{ m *Memory }

func (t *txMemory) Copies() storage.CopyStore        { return copyView{t.m, false} }
func (t *txMemory) Loans() storage.LoanLedger        { return loanView{t.m, false} }
func (t *txMemory) Waitlist() storage.WaitlistStore  { return waitView{t.m, false} }
func (t *txMemory) Members() storage.MemberDirectory { return memberView{t.m, false} }

func (t *txMemory) WithinTx(_ context.Context, fn func(storage.Store) error) error {
	return fn(t)
}

func (t *txMemory) Close() error { return nil }

type copyView struct {
	m    *Memory
	lock bool
}

func (v copyView) FindAvailable(_ context.Context, isbn string) (*models.BookCopy, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	st := v.m.st

	var found *models.BookCopy
	for id, c := range st.copies {
		if c.ISBN != isbn || !c.Available {
			continue
		}
		if found == nil || st.seq[id] < st.seq[found.ID] {
			c := c
			found = &c
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (v copyView) MarkUnavailable(_ context.Context, copyID uuid.UUID) error {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	c, ok := v.m.st.copies[copyID]
	if !ok {
		return storage.ErrNotFound
	}
	if !c.Available {
		return storage.ErrConflict
	}
	c.Available = false
	v.m.st.copies[copyID] = c
	return nil
}

func (v copyView) MarkAvailable(_ context.Context, copyID uuid.UUID) error {
	if err := v.m.FailMarkAvailable; err != nil {
		return err
	}
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	c, ok := v.m.st.copies[copyID]
	if !ok {
		return storage.ErrNotFound
	}
	c.Available = true
	v.m.st.copies[copyID] = c
	return nil
}

func (v copyView) Add(_ context.Context, copies []models.BookCopy) error {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	st := v.m.st
	for _, c := range copies {
		st.copies[c.ID] = c
		st.seq[c.ID] = st.nextSeq
		st.nextSeq++
	}
	return nil
}

func (v copyView) Counts(_ context.Context) (int, int, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	total, available := 0, 0
	for _, c := range v.m.st.copies {
		total++
		if c.Available {
			available++
		}
	}
	return total, available, nil
}

type loanView struct {
	m    *Memory
	lock bool
}

func (v loanView) Create(_ context.Context, loan *models.Loan) error {
	if err := v.m.FailCreateLoan; err != nil {
		return err
	}
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	st := v.m.st
	l := *loan
	l.ReturnedAt = cloneTime(l.ReturnedAt)
	st.loans[l.ID] = l
	st.seq[l.ID] = st.nextSeq
	st.nextSeq++
	return nil
}

func (v loanView) OpenByTitle(_ context.Context, isbn string) (*models.Loan, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	return v.m.st.findOpenLoan(isbn, "")
}

func (v loanView) OpenByTitleAndBorrower(_ context.Context, isbn, username string) (*models.Loan, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	return v.m.st.findOpenLoan(isbn, username)
}

func (s *state) findOpenLoan(isbn, username string) (*models.Loan, error) {
	var found *models.Loan
	for id, l := range s.loans {
		if l.ReturnedAt != nil {
			continue
		}
		c, ok := s.copies[l.CopyID]
		if !ok || c.ISBN != isbn {
			continue
		}
		if username != "" && l.Username != username {
			continue
		}
		if found == nil || s.seq[id] < s.seq[found.ID] {
			l := l
			l.ReturnedAt = cloneTime(l.ReturnedAt)
			found = &l
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (v loanView) Close(_ context.Context, loanID uuid.UUID, returnedAt time.Time) error {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	l, ok := v.m.st.loans[loanID]
	if !ok {
		return storage.ErrNotFound
	}
	if l.ReturnedAt != nil {
		return storage.ErrConflict
	}
	l.ReturnedAt = &returnedAt
	v.m.st.loans[loanID] = l
	return nil
}

func (v loanView) ExtendDueDate(_ context.Context, loanID uuid.UUID, dueAt time.Time) error {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	l, ok := v.m.st.loans[loanID]
	if !ok {
		return storage.ErrNotFound
	}
	if l.ReturnedAt != nil {
		return storage.ErrConflict
	}
	l.DueAt = dueAt
	v.m.st.loans[loanID] = l
	return nil
}

func (v loanView) OpenCount(_ context.Context) (int, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	n := 0
	for _, l := range v.m.st.loans {
		if l.ReturnedAt == nil {
			n++
		}
	}
	return n, nil
}

type waitView struct {
	m    *Memory
	lock bool
}

func (v waitView) Enqueue(_ context.Context, entry *models.WaitlistEntry) error {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	st := v.m.st
	for _, e := range st.waitlist {
		if e.ISBN == entry.ISBN && e.Username == entry.Username {
			return storage.ErrDuplicate
		}
	}
	e := *entry
	e.NotifiedAt = cloneTime(e.NotifiedAt)
	st.waitlist[e.ID] = e
	st.seq[e.ID] = st.nextSeq
	st.nextSeq++
	return nil
}

func (v waitView) Head(_ context.Context, isbn string) (*models.WaitlistEntry, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	st := v.m.st

	var head *models.WaitlistEntry
	for id, e := range st.waitlist {
		if e.ISBN != isbn || e.Status != models.WaitlistWaiting {
			continue
		}
		if head == nil ||
			e.RequestedAt.Before(head.RequestedAt) ||
			(e.RequestedAt.Equal(head.RequestedAt) && st.seq[id] < st.seq[head.ID]) {
			e := e
			e.NotifiedAt = cloneTime(e.NotifiedAt)
			head = &e
		}
	}
	if head == nil {
		return nil, storage.ErrNotFound
	}
	return head, nil
}

func (v waitView) MarkNotified(_ context.Context, entryID uuid.UUID, notifiedAt time.Time) error {
	if err := v.m.FailMarkNotified; err != nil {
		return err
	}
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	e, ok := v.m.st.waitlist[entryID]
	if !ok {
		return storage.ErrNotFound
	}
	if e.Status != models.WaitlistWaiting {
		return storage.ErrConflict
	}
	e.Status = models.WaitlistNotified
	e.NotifiedAt = &notifiedAt
	v.m.st.waitlist[entryID] = e
	return nil
}

func (v waitView) PendingCount(_ context.Context) (int, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	n := 0
	for _, e := range v.m.st.waitlist {
		if e.Status == models.WaitlistWaiting || e.Status == models.WaitlistNotified {
			n++
		}
	}
	return n, nil
}

type memberView struct {
	m    *Memory
	lock bool
}

func (v memberView) Create(_ context.Context, member *models.Member) error {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	if _, exists := v.m.st.members[member.Username]; exists {
		return storage.ErrDuplicate
	}
	v.m.st.members[member.Username] = *member
	return nil
}

func (v memberView) GetByUsername(_ context.Context, username string) (*models.Member, error) {
	if v.lock {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	m, ok := v.m.st.members[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}
