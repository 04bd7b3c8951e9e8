package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

type rewardRepository struct {
	db   dbtx
	inTx bool
}

// lockPair serializes check-then-insert per (attendee, event) until the
// transaction ends. Outside a transaction the lock is released at once and
// the unique index is the only guard.
func (r *rewardRepository) lockPair(ctx context.Context, attendee, eventID string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, attendee+":"+eventID)
	return storageError(err)
}

func (r *rewardRepository) Append(ctx context.Context, entry *domain.RewardEntry) error {
	if err := r.lockPair(ctx, entry.Attendee, entry.EventID); err != nil {
		return err
	}
	if _, err := r.FindByAttendeeEvent(ctx, entry.Attendee, entry.EventID); err == nil {
		return apperrors.NewAlreadyClaimed(entry.Attendee, entry.EventID)
	} else if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return err
	}

	EnsureID(&entry.ID)
	const query = `
        INSERT INTO loyalty_rewards (id, attendee, event_id, token_id, amount, is_early_bird, status, claimed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Attendee,
		entry.EventID,
		entry.TicketID,
		entry.Amount,
		entry.IsEarlyBird,
		entry.Status,
		entry.ClaimedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.NewAlreadyClaimed(entry.Attendee, entry.EventID)
	}
	return storageError(err)
}

func (r *rewardRepository) FindByAttendeeEvent(ctx context.Context, attendee, eventID string) (*domain.RewardEntry, error) {
	if r.inTx {
		if err := r.lockPair(ctx, attendee, eventID); err != nil {
			return nil, err
		}
	}
	const query = `
        SELECT id, attendee, event_id, token_id, amount, is_early_bird, status, claimed_at
        FROM loyalty_rewards WHERE attendee=$1 AND event_id=$2`
	var entry domain.RewardEntry
	err := r.db.QueryRow(ctx, query, attendee, eventID).Scan(
		&entry.ID,
		&entry.Attendee,
		&entry.EventID,
		&entry.TicketID,
		&entry.Amount,
		&entry.IsEarlyBird,
		&entry.Status,
		&entry.ClaimedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("reward", map[string]any{"attendee": attendee, "eventId": eventID})
	}
	if err != nil {
		return nil, storageError(err)
	}
	return &entry, nil
}

func (r *rewardRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.RewardEntry, error) {
	const query = `
        SELECT id, attendee, event_id, token_id, amount, is_early_bird, status, claimed_at
        FROM loyalty_rewards WHERE event_id=$1 ORDER BY seq ASC`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := []domain.RewardEntry{}
	for rows.Next() {
		var entry domain.RewardEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Attendee,
			&entry.EventID,
			&entry.TicketID,
			&entry.Amount,
			&entry.IsEarlyBird,
			&entry.Status,
			&entry.ClaimedAt,
		); err != nil {
			return nil, storageError(err)
		}
		result = append(result, entry)
	}
	return result, storageError(rows.Err())
}
