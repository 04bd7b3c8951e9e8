// Package memory keeps tickets and ledgers in process memory.
//
// Writes are staged in a journal and applied under the store mutex on commit.
// Commit re-checks every condition a staged write depended on (ticket state,
// reward key, unlock key), so two units of work racing on the same key cannot
// both succeed even without an external lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

type rewardKey struct {
	attendee string
	eventID  string
}

// Store is an in-process repository.Store.
type Store struct {
	mu          sync.RWMutex
	tickets     map[string]*domain.Ticket
	ticketOrder []string
	validations []domain.ValidationEntry
	rewards     []domain.RewardEntry
	rewardIndex map[rewardKey]int
	unlocks     map[string]domain.RewardUnlock
	fault       error
	closed      bool
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tickets:     make(map[string]*domain.Ticket),
		rewardIndex: make(map[rewardKey]int),
		unlocks:     make(map[string]domain.RewardUnlock),
	}
}

// SetFault makes every subsequent operation fail as if the backend were
// unreachable. Passing nil restores normal operation.
func (s *Store) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

func (s *Store) Tickets() repository.TicketRepository { return &ticketRepo{s: s} }

func (s *Store) Validations() repository.ValidationRepository { return &validationRepo{s: s} }

func (s *Store) Rewards() repository.RewardRepository { return &rewardRepo{s: s} }

func (s *Store) Unlocks() repository.RewardUnlockRepository { return &unlockRepo{s: s} }

// WithinTx stages every write made by fn and applies them together.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := s.available(); err != nil {
		return err
	}
	j := newJournal(s)
	if err := fn(ctx, j); err != nil {
		return err
	}
	return j.commit()
}

// Ping reports whether the store accepts operations.
func (s *Store) Ping(context.Context) error {
	return s.available()
}

// Close marks the store closed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Store) available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableLocked()
}

func (s *Store) availableLocked() error {
	if s.fault != nil {
		return apperrors.NewStorageUnavailable(s.fault)
	}
	if s.closed {
		return apperrors.NewStorageUnavailable(errStoreClosed)
	}
	return nil
}

// autocommit runs a single operation in its own journal.
func (s *Store) autocommit(fn func(j *journal) error) error {
	if err := s.available(); err != nil {
		return err
	}
	j := newJournal(s)
	if err := fn(j); err != nil {
		return err
	}
	return j.commit()
}

type storeError string

func (e storeError) Error() string { return string(e) }

const errStoreClosed = storeError("memory store closed")

// ticketRepo, validationRepo, rewardRepo and unlockRepo apply writes immediately.

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.s.autocommit(func(j *journal) error { return j.createTicket(ticket) })
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).getTicket(id)
}

func (r *ticketRepo) ListByHolder(_ context.Context, holder string) ([]domain.Ticket, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).listTickets(func(t *domain.Ticket) bool { return t.Holder == holder }), nil
}

func (r *ticketRepo) ListByHolderAndEvent(_ context.Context, holder, eventID string) ([]domain.Ticket, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).listTickets(func(t *domain.Ticket) bool {
		return t.Holder == holder && t.EventID == eventID
	}), nil
}

func (r *ticketRepo) Transition(_ context.Context, id string, target domain.TicketState, at time.Time) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.autocommit(func(j *journal) error {
		t, err := j.transition(id, target, at)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type validationRepo struct{ s *Store }

func (r *validationRepo) Append(_ context.Context, entry *domain.ValidationEntry) error {
	return r.s.autocommit(func(j *journal) error { return j.appendValidation(entry) })
}

func (r *validationRepo) ListByEvent(_ context.Context, eventID string) ([]domain.ValidationEntry, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).listValidations(func(e *domain.ValidationEntry) bool { return e.EventID == eventID }), nil
}

func (r *validationRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ValidationEntry, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).listValidations(func(e *domain.ValidationEntry) bool { return e.TicketID == ticketID }), nil
}

type rewardRepo struct{ s *Store }

func (r *rewardRepo) Append(_ context.Context, entry *domain.RewardEntry) error {
	return r.s.autocommit(func(j *journal) error { return j.appendReward(entry) })
}

func (r *rewardRepo) FindByAttendeeEvent(_ context.Context, attendee, eventID string) (*domain.RewardEntry, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).findReward(attendee, eventID)
}

func (r *rewardRepo) ListByEvent(_ context.Context, eventID string) ([]domain.RewardEntry, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).listRewards(eventID), nil
}

type unlockRepo struct{ s *Store }

func (r *unlockRepo) Append(_ context.Context, unlock *domain.RewardUnlock) error {
	return r.s.autocommit(func(j *journal) error { return j.appendUnlock(unlock) })
}

func (r *unlockRepo) GetByTicket(_ context.Context, ticketID string) (*domain.RewardUnlock, error) {
	if err := r.s.available(); err != nil {
		return nil, err
	}
	return newJournal(r.s).getUnlock(ticketID)
}
