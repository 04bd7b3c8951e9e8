package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nftix/ticket-lifecycle/internal/domain"
)

// TicketRepository persists ticket records. Records are never deleted.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByHolder(ctx context.Context, holder string) ([]domain.Ticket, error)
	ListByHolderAndEvent(ctx context.Context, holder, eventID string) ([]domain.Ticket, error)
	// Transition moves a ticket to the immediate successor state. It fails with
	// INVALID_TRANSITION when target does not follow the stored state and with
	// NOT_FOUND for unknown ids.
	Transition(ctx context.Context, id string, target domain.TicketState, at time.Time) (*domain.Ticket, error)
}

// ValidationRepository is the append-only scan ledger.
type ValidationRepository interface {
	Append(ctx context.Context, entry *domain.ValidationEntry) error
	ListByEvent(ctx context.Context, eventID string) ([]domain.ValidationEntry, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ValidationEntry, error)
}

// RewardRepository is the append-only loyalty reward ledger.
type RewardRepository interface {
	// Append fails with ALREADY_CLAIMED when an entry exists for the same
	// (attendee, event) pair.
	Append(ctx context.Context, entry *domain.RewardEntry) error
	FindByAttendeeEvent(ctx context.Context, attendee, eventID string) (*domain.RewardEntry, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.RewardEntry, error)
}

// RewardUnlockRepository records on-chain RewardUnlocked events, one per ticket.
type RewardUnlockRepository interface {
	Append(ctx context.Context, unlock *domain.RewardUnlock) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.RewardUnlock, error)
}

// Repositories groups the ledgers that must change together.
type Repositories interface {
	Tickets() TicketRepository
	Validations() ValidationRepository
	Rewards() RewardRepository
	Unlocks() RewardUnlockRepository
}

// TxFunc is executed inside a unit of work.
type TxFunc func(ctx context.Context, tx Repositories) error

// Store is a storage backend. Reads and writes made through the embedded
// Repositories apply immediately; WithinTx applies every write made by fn
// together, or none of them when fn or the commit fails.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Close()
}

// EnsureID assigns a fresh identifier when id is empty.
func EnsureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
