package domain

import "time"

// ValidationEntry records one successful scan. Entries are never edited.
type ValidationEntry struct {
	ID          string
	TicketID    string
	EventID     string
	Holder      string
	Scanner     string
	Source      ScanSource
	ValidatedAt time.Time
}

// ScanSource tells whether a scan came from a gate scanner or a chain relay.
type ScanSource string

const (
	ScanSourceGate  ScanSource = "GATE"
	ScanSourceChain ScanSource = "CHAIN"
)

// RewardStatus tracks payout of a loyalty reward.
type RewardStatus string

// RewardStatusPending is the only status assigned in-system; payout happens off-ledger.
const RewardStatusPending RewardStatus = "pending"

const (
	BaseReward     int64 = 100
	EarlyBirdBonus int64 = 50
)

// RewardEntry is one loyalty reward grant. At most one exists per (attendee, event).
type RewardEntry struct {
	ID          string
	Attendee    string
	EventID     string
	TicketID    string
	Amount      int64
	IsEarlyBird bool
	Status      RewardStatus
	ClaimedAt   time.Time
}

// RewardAmount computes the loyalty reward for a claim.
func RewardAmount(isEarlyBird bool) int64 {
	if isEarlyBird {
		return BaseReward + EarlyBirdBonus
	}
	return BaseReward
}

// RewardUnlock mirrors an on-chain RewardUnlocked event. It is kept apart from
// the loyalty reward ledger.
type RewardUnlock struct {
	ID         string
	TicketID   string
	Holder     string
	UnlockedAt time.Time
}

// AttendeeRecord is one row of an event's attendance listing.
type AttendeeRecord struct {
	Holder      string
	Scanner     string
	ValidatedAt time.Time
}

// AttendanceStats aggregates the validation ledger for one event.
type AttendanceStats struct {
	TotalAttendees int
	Attendees      []AttendeeRecord
}

// RewardStats aggregates the reward ledger for one event.
type RewardStats struct {
	TotalRewards           int
	TotalTokensDistributed int64
}

// EventStats combines both ledgers for one event.
type EventStats struct {
	EventID string
	AttendanceStats
	RewardStats
}
