package memory

import (
	"context"
	"time"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// journal is a unit of work over a Store. Reads see committed data overlaid
// with the journal's own staged writes.
type journal struct {
	s           *Store
	created     []string
	staged      map[string]*domain.Ticket
	expected    map[string]domain.TicketState
	validations []domain.ValidationEntry
	rewards     []domain.RewardEntry
	unlocks     []domain.RewardUnlock
}

var _ repository.Repositories = (*journal)(nil)

func newJournal(s *Store) *journal {
	return &journal{
		s:        s,
		staged:   make(map[string]*domain.Ticket),
		expected: make(map[string]domain.TicketState),
	}
}

func (j *journal) Tickets() repository.TicketRepository { return txTickets{j} }

func (j *journal) Validations() repository.ValidationRepository { return txValidations{j} }

func (j *journal) Rewards() repository.RewardRepository { return txRewards{j} }

func (j *journal) Unlocks() repository.RewardUnlockRepository { return txUnlocks{j} }

func (j *journal) getTicket(id string) (*domain.Ticket, error) {
	if t, ok := j.staged[id]; ok {
		return t.Clone(), nil
	}
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	if t, ok := j.s.tickets[id]; ok {
		return t.Clone(), nil
	}
	return nil, apperrors.NewNotFound("ticket", map[string]any{"tokenId": id})
}

func (j *journal) createTicket(ticket *domain.Ticket) error {
	if _, err := j.getTicket(ticket.ID); err == nil {
		return apperrors.NewAlreadyExists("ticket", map[string]any{"tokenId": ticket.ID})
	}
	j.staged[ticket.ID] = ticket.Clone()
	j.created = append(j.created, ticket.ID)
	return nil
}

func (j *journal) transition(id string, target domain.TicketState, at time.Time) (*domain.Ticket, error) {
	current, err := j.getTicket(id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if !next.ApplyTransition(target, at) {
		return nil, apperrors.NewInvalidTransition(string(current.State), string(target), map[string]any{"tokenId": id})
	}
	if _, ok := j.staged[id]; !ok {
		j.expected[id] = current.State
	}
	j.staged[id] = next
	return next.Clone(), nil
}

func (j *journal) listTickets(match func(*domain.Ticket) bool) []domain.Ticket {
	result := []domain.Ticket{}
	j.s.mu.RLock()
	for _, id := range j.s.ticketOrder {
		t := j.s.tickets[id]
		if staged, ok := j.staged[id]; ok {
			t = staged
		}
		if match(t) {
			result = append(result, *t.Clone())
		}
	}
	j.s.mu.RUnlock()
	for _, id := range j.created {
		if t := j.staged[id]; match(t) {
			result = append(result, *t.Clone())
		}
	}
	return result
}

func (j *journal) appendValidation(entry *domain.ValidationEntry) error {
	if _, err := j.getTicket(entry.TicketID); err != nil {
		return err
	}
	repository.EnsureID(&entry.ID)
	j.validations = append(j.validations, *entry)
	return nil
}

func (j *journal) listValidations(match func(*domain.ValidationEntry) bool) []domain.ValidationEntry {
	result := []domain.ValidationEntry{}
	j.s.mu.RLock()
	for i := range j.s.validations {
		if match(&j.s.validations[i]) {
			result = append(result, j.s.validations[i])
		}
	}
	j.s.mu.RUnlock()
	for i := range j.validations {
		if match(&j.validations[i]) {
			result = append(result, j.validations[i])
		}
	}
	return result
}

func (j *journal) appendReward(entry *domain.RewardEntry) error {
	if _, err := j.findReward(entry.Attendee, entry.EventID); err == nil {
		return apperrors.NewAlreadyClaimed(entry.Attendee, entry.EventID)
	}
	repository.EnsureID(&entry.ID)
	j.rewards = append(j.rewards, *entry)
	return nil
}

func (j *journal) findReward(attendee, eventID string) (*domain.RewardEntry, error) {
	for i := range j.rewards {
		if j.rewards[i].Attendee == attendee && j.rewards[i].EventID == eventID {
			entry := j.rewards[i]
			return &entry, nil
		}
	}
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	if idx, ok := j.s.rewardIndex[rewardKey{attendee: attendee, eventID: eventID}]; ok {
		entry := j.s.rewards[idx]
		return &entry, nil
	}
	return nil, apperrors.NewNotFound("reward", map[string]any{"attendee": attendee, "eventId": eventID})
}

func (j *journal) listRewards(eventID string) []domain.RewardEntry {
	result := []domain.RewardEntry{}
	j.s.mu.RLock()
	for _, entry := range j.s.rewards {
		if entry.EventID == eventID {
			result = append(result, entry)
		}
	}
	j.s.mu.RUnlock()
	for _, entry := range j.rewards {
		if entry.EventID == eventID {
			result = append(result, entry)
		}
	}
	return result
}

func (j *journal) appendUnlock(unlock *domain.RewardUnlock) error {
	if _, err := j.getUnlock(unlock.TicketID); err == nil {
		return apperrors.NewAlreadyExists("reward unlock", map[string]any{"tokenId": unlock.TicketID})
	}
	repository.EnsureID(&unlock.ID)
	j.unlocks = append(j.unlocks, *unlock)
	return nil
}

func (j *journal) getUnlock(ticketID string) (*domain.RewardUnlock, error) {
	for i := range j.unlocks {
		if j.unlocks[i].TicketID == ticketID {
			unlock := j.unlocks[i]
			return &unlock, nil
		}
	}
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	if unlock, ok := j.s.unlocks[ticketID]; ok {
		return &unlock, nil
	}
	return nil, apperrors.NewNotFound("reward unlock", map[string]any{"tokenId": ticketID})
}

// commit verifies the journal still applies to the committed data and then
// publishes every staged write at once.
func (j *journal) commit() error {
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.availableLocked(); err != nil {
		return err
	}
	for _, id := range j.created {
		if _, exists := s.tickets[id]; exists {
			return apperrors.NewAlreadyExists("ticket", map[string]any{"tokenId": id})
		}
	}
	for _, entry := range j.rewards {
		if _, exists := s.rewardIndex[rewardKey{attendee: entry.Attendee, eventID: entry.EventID}]; exists {
			return apperrors.NewAlreadyClaimed(entry.Attendee, entry.EventID)
		}
	}
	for _, unlock := range j.unlocks {
		if _, exists := s.unlocks[unlock.TicketID]; exists {
			return apperrors.NewAlreadyExists("reward unlock", map[string]any{"tokenId": unlock.TicketID})
		}
	}

	for id, state := range j.expected {
		current := s.tickets[id]
		if current.State != state {
			return apperrors.NewInvalidTransition(string(current.State), string(j.staged[id].State), map[string]any{"tokenId": id})
		}
	}

	for _, id := range j.created {
		s.ticketOrder = append(s.ticketOrder, id)
	}
	for id, t := range j.staged {
		s.tickets[id] = t.Clone()
	}
	s.validations = append(s.validations, j.validations...)
	for _, entry := range j.rewards {
		s.rewards = append(s.rewards, entry)
		s.rewardIndex[rewardKey{attendee: entry.Attendee, eventID: entry.EventID}] = len(s.rewards) - 1
	}
	for _, unlock := range j.unlocks {
		s.unlocks[unlock.TicketID] = unlock
	}
	return nil
}

// tx-bound views used inside WithinTx.

type txTickets struct{ j *journal }

func (r txTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.j.createTicket(ticket)
}

func (r txTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	return r.j.getTicket(id)
}

func (r txTickets) ListByHolder(_ context.Context, holder string) ([]domain.Ticket, error) {
	return r.j.listTickets(func(t *domain.Ticket) bool { return t.Holder == holder }), nil
}

func (r txTickets) ListByHolderAndEvent(_ context.Context, holder, eventID string) ([]domain.Ticket, error) {
	return r.j.listTickets(func(t *domain.Ticket) bool {
		return t.Holder == holder && t.EventID == eventID
	}), nil
}

func (r txTickets) Transition(_ context.Context, id string, target domain.TicketState, at time.Time) (*domain.Ticket, error) {
	return r.j.transition(id, target, at)
}

type txValidations struct{ j *journal }

func (r txValidations) Append(_ context.Context, entry *domain.ValidationEntry) error {
	return r.j.appendValidation(entry)
}

func (r txValidations) ListByEvent(_ context.Context, eventID string) ([]domain.ValidationEntry, error) {
	return r.j.listValidations(func(e *domain.ValidationEntry) bool { return e.EventID == eventID }), nil
}

func (r txValidations) ListByTicket(_ context.Context, ticketID string) ([]domain.ValidationEntry, error) {
	return r.j.listValidations(func(e *domain.ValidationEntry) bool { return e.TicketID == ticketID }), nil
}

type txRewards struct{ j *journal }

func (r txRewards) Append(_ context.Context, entry *domain.RewardEntry) error {
	return r.j.appendReward(entry)
}

func (r txRewards) FindByAttendeeEvent(_ context.Context, attendee, eventID string) (*domain.RewardEntry, error) {
	return r.j.findReward(attendee, eventID)
}

func (r txRewards) ListByEvent(_ context.Context, eventID string) ([]domain.RewardEntry, error) {
	return r.j.listRewards(eventID), nil
}

type txUnlocks struct{ j *journal }

func (r txUnlocks) Append(_ context.Context, unlock *domain.RewardUnlock) error {
	return r.j.appendUnlock(unlock)
}

func (r txUnlocks) GetByTicket(_ context.Context, ticketID string) (*domain.RewardUnlock, error) {
	return r.j.getUnlock(ticketID)
}
