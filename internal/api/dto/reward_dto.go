package dto

import (
	"time"

	"github.com/nftix/ticket-lifecycle/internal/domain"
)

// LoyaltyRewardRequest payload.
type LoyaltyRewardRequest struct {
	AttendeeAddress string     `json:"attendeeAddress"`
	EventID         FlexString `json:"eventId"`
	IsEarlyBird     bool       `json:"isEarlyBird"`
}

// RewardBreakdown itemizes a granted reward.
type RewardBreakdown struct {
	Amount         int64 `json:"amount"`
	BaseReward     int64 `json:"baseReward"`
	EarlyBirdBonus int64 `json:"earlyBirdBonus"`
}

// LoyaltyRewardResponse response.
type LoyaltyRewardResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Reward  RewardBreakdown `json:"reward"`
}

// NewRewardBreakdown splits an entry's amount into base and bonus.
func NewRewardBreakdown(r *domain.RewardEntry) RewardBreakdown {
	out := RewardBreakdown{Amount: r.Amount, BaseReward: domain.BaseReward}
	if r.IsEarlyBird {
		out.EarlyBirdBonus = domain.EarlyBirdBonus
	}
	return out
}

// AttendeeResponse is one row of the attendance listing.
type AttendeeResponse struct {
	Holder      string    `json:"holder"`
	ValidatedAt time.Time `json:"validatedAt"`
	Scanner     string    `json:"scanner"`
}

// EventStatsResponse response.
type EventStatsResponse struct {
	EventID                string             `json:"eventId"`
	TotalAttendees         int                `json:"totalAttendees"`
	TotalRewards           int                `json:"totalRewards"`
	TotalTokensDistributed int64              `json:"totalTokensDistributed"`
	Attendees              []AttendeeResponse `json:"attendees"`
}

// NewEventStatsResponse maps combined ledger stats.
func NewEventStatsResponse(s *domain.EventStats) EventStatsResponse {
	out := EventStatsResponse{
		EventID:                s.EventID,
		TotalAttendees:         s.TotalAttendees,
		TotalRewards:           s.TotalRewards,
		TotalTokensDistributed: s.TotalTokensDistributed,
		Attendees:              make([]AttendeeResponse, 0, len(s.Attendees)),
	}
	for _, a := range s.Attendees {
		out.Attendees = append(out.Attendees, AttendeeResponse{
			Holder:      a.Holder,
			ValidatedAt: a.ValidatedAt,
			Scanner:     a.Scanner,
		})
	}
	return out
}
