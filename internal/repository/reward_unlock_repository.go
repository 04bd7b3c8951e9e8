package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

type rewardUnlockRepository struct {
	db dbtx
}

func (r *rewardUnlockRepository) Append(ctx context.Context, unlock *domain.RewardUnlock) error {
	EnsureID(&unlock.ID)
	const query = `
        INSERT INTO reward_unlocks (id, token_id, holder, unlocked_at)
        VALUES ($1,$2,$3,$4)`
	_, err := r.db.Exec(ctx, query, unlock.ID, unlock.TicketID, unlock.Holder, unlock.UnlockedAt)
	if isUniqueViolation(err) {
		return apperrors.NewAlreadyExists("reward unlock", map[string]any{"tokenId": unlock.TicketID})
	}
	return storageError(err)
}

func (r *rewardUnlockRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.RewardUnlock, error) {
	const query = `SELECT id, token_id, holder, unlocked_at FROM reward_unlocks WHERE token_id=$1`
	var unlock domain.RewardUnlock
	err := r.db.QueryRow(ctx, query, ticketID).Scan(&unlock.ID, &unlock.TicketID, &unlock.Holder, &unlock.UnlockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("reward unlock", map[string]any{"tokenId": ticketID})
	}
	if err != nil {
		return nil, storageError(err)
	}
	return &unlock, nil
}
