package service

import (
	"context"
	"time"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// RewardLedger grants at most one loyalty reward per (attendee, event).
type RewardLedger struct{}

// ClaimInput describes a loyalty reward claim.
type ClaimInput struct {
	Attendee    string
	EventID     string
	IsEarlyBird bool
	At          time.Time
}

// ClaimReward appends a pending reward and moves the attendee's ATTENDED
// ticket for the event to REWARDED, both through tx.
func (RewardLedger) ClaimReward(ctx context.Context, tx repository.Repositories, in ClaimInput) (*domain.RewardEntry, *domain.Ticket, error) {
	attendee := domain.NormalizeAddress(in.Attendee)

	_, err := tx.Rewards().FindByAttendeeEvent(ctx, attendee, in.EventID)
	switch {
	case err == nil:
		return nil, nil, apperrors.NewAlreadyClaimed(attendee, in.EventID)
	case !apperrors.HasCode(err, apperrors.CodeNotFound):
		return nil, nil, err
	}

	ticket, err := attendedTicket(ctx, tx.Tickets(), attendee, in.EventID)
	if err != nil {
		return nil, nil, err
	}

	entry := &domain.RewardEntry{
		Attendee:    attendee,
		EventID:     in.EventID,
		TicketID:    ticket.ID,
		Amount:      domain.RewardAmount(in.IsEarlyBird),
		IsEarlyBird: in.IsEarlyBird,
		Status:      domain.RewardStatusPending,
		ClaimedAt:   in.At,
	}
	if err := tx.Rewards().Append(ctx, entry); err != nil {
		return nil, nil, err
	}
	updated, err := tx.Tickets().Transition(ctx, ticket.ID, domain.TicketStateRewarded, in.At)
	if err != nil {
		return nil, nil, err
	}
	return entry, updated, nil
}

func attendedTicket(ctx context.Context, tickets repository.TicketRepository, attendee, eventID string) (*domain.Ticket, error) {
	held, err := tickets.ListByHolderAndEvent(ctx, attendee, eventID)
	if err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"attendee": attendee, "eventId": eventID})
	}
	for i := range held {
		if held[i].State == domain.TicketStateAttended {
			return &held[i], nil
		}
	}
	return nil, apperrors.NewInvalidTransition(string(held[0].State), string(domain.TicketStateRewarded),
		map[string]any{"tokenId": held[0].ID, "eventId": eventID})
}

// StatsForEvent counts the event's rewards and sums their amounts.
func (RewardLedger) StatsForEvent(ctx context.Context, repo repository.RewardRepository, eventID string) (domain.RewardStats, error) {
	entries, err := repo.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.RewardStats{}, err
	}
	stats := domain.RewardStats{TotalRewards: len(entries)}
	for _, e := range entries {
		stats.TotalTokensDistributed += e.Amount
	}
	return stats, nil
}
