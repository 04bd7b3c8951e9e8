package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateUnused   TicketState = "UNUSED"
	TicketStateAttended TicketState = "ATTENDED"
	TicketStateRewarded TicketState = "REWARDED"
)

var stateRank = map[TicketState]int{
	TicketStateUnused:   0,
	TicketStateAttended: 1,
	TicketStateRewarded: 2,
}

// forwardTransitions lists the single successor of each state. REWARDED is terminal.
var forwardTransitions = map[TicketState]TicketState{
	TicketStateUnused:   TicketStateAttended,
	TicketStateAttended: TicketStateRewarded,
}

// Valid reports whether s is a known lifecycle state.
func (s TicketState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Rank orders states; it never decreases over a ticket's lifetime.
func (s TicketState) Rank() int {
	if r, ok := stateRank[s]; ok {
		return r
	}
	return -1
}

// Next returns the immediate successor state, if any.
func (s TicketState) Next() (TicketState, bool) {
	next, ok := forwardTransitions[s]
	return next, ok
}

// CanTransition reports whether target is the immediate successor of current.
func CanTransition(current, target TicketState) bool {
	next, ok := current.Next()
	return ok && next == target
}

// Ticket is the record kept for every minted ticket.
type Ticket struct {
	ID           string
	EventID      string
	Holder       string
	State        TicketState
	QRSecretHash string
	MintedAt     time.Time
	AttendedAt   *time.Time
	RewardedAt   *time.Time
}

// Clone returns a deep copy so callers never share timestamp pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.AttendedAt != nil {
		at := *t.AttendedAt
		cp.AttendedAt = &at
	}
	if t.RewardedAt != nil {
		rt := *t.RewardedAt
		cp.RewardedAt = &rt
	}
	return &cp
}

// ApplyTransition moves the ticket to target and stamps the matching timestamp.
// It returns false and leaves the ticket untouched when target is not the
// immediate successor of the current state.
func (t *Ticket) ApplyTransition(target TicketState, at time.Time) bool {
	if !CanTransition(t.State, target) {
		return false
	}
	stamp := at
	switch target {
	case TicketStateAttended:
		t.AttendedAt = &stamp
	case TicketStateRewarded:
		t.RewardedAt = &stamp
	}
	t.State = target
	return true
}
