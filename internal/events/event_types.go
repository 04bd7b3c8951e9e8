package events

import (
	"time"

	"github.com/nftix/ticket-lifecycle/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketMinted   EventType = "ticket_minted"
	EventTicketAttended EventType = "ticket_attended"
	EventRewardClaimed  EventType = "reward_claimed"
	EventRewardUnlocked EventType = "reward_unlocked"
)

// ActorKind says who triggered a lifecycle change.
type ActorKind string

const (
	ActorScanner ActorKind = "SCANNER"
	ActorHolder  ActorKind = "HOLDER"
	ActorChain   ActorKind = "CHAIN"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Kind    ActorKind `json:"kind"`
	Address string    `json:"address,omitempty"`
}

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	EventID   string      `json:"event_id,omitempty"`
	Holder    string      `json:"holder"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketMintedPayload payload.
type TicketMintedPayload struct {
	MintedAt time.Time `json:"minted_at"`
}

// TicketAttendedPayload payload.
type TicketAttendedPayload struct {
	Scanner    string            `json:"scanner"`
	Source     domain.ScanSource `json:"source"`
	AttendedAt time.Time         `json:"attended_at"`
}

// RewardClaimedPayload payload.
type RewardClaimedPayload struct {
	Amount      int64 `json:"amount"`
	IsEarlyBird bool  `json:"is_early_bird"`
}

// RewardUnlockedPayload payload.
type RewardUnlockedPayload struct {
	UnlockedAt time.Time `json:"unlocked_at"`
}
