package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

const ticketColumns = `token_id, event_id, holder, state, qr_secret_hash, minted_at, attended_at, rewarded_at`

type ticketRepository struct {
	db        dbtx
	forUpdate bool
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (token_id, event_id, holder, state, qr_secret_hash, minted_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.Holder,
		ticket.State,
		ticket.QRSecretHash,
		ticket.MintedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.NewAlreadyExists("ticket", map[string]any{"tokenId": ticket.ID})
	}
	return storageError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE token_id=$1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	var ticket domain.Ticket
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.Holder,
		&ticket.State,
		&ticket.QRSecretHash,
		&ticket.MintedAt,
		&ticket.AttendedAt,
		&ticket.RewardedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"tokenId": id})
	}
	if err != nil {
		return nil, storageError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByHolder(ctx context.Context, holder string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE holder=$1 ORDER BY seq ASC`
	return r.list(ctx, query, holder)
}

func (r *ticketRepository) ListByHolderAndEvent(ctx context.Context, holder, eventID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE holder=$1 AND event_id=$2 ORDER BY seq ASC`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	return r.list(ctx, query, holder, eventID)
}

func (r *ticketRepository) Transition(ctx context.Context, id string, target domain.TicketState, at time.Time) (*domain.Ticket, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if !next.ApplyTransition(target, at) {
		return nil, apperrors.NewInvalidTransition(string(current.State), string(target), map[string]any{"tokenId": id})
	}

	// The state predicate turns the update into a compare-and-set for callers
	// outside a transaction.
	const query = `
        UPDATE tickets SET state=$1, attended_at=$2, rewarded_at=$3
        WHERE token_id=$4 AND state=$5`
	cmd, err := r.db.Exec(ctx, query, next.State, next.AttendedAt, next.RewardedAt, id, current.State)
	if err != nil {
		return nil, storageError(err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, apperrors.NewInvalidTransition(string(current.State), string(target), map[string]any{"tokenId": id})
	}
	return next, nil
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.EventID,
			&ticket.Holder,
			&ticket.State,
			&ticket.QRSecretHash,
			&ticket.MintedAt,
			&ticket.AttendedAt,
			&ticket.RewardedAt,
		); err != nil {
			return nil, storageError(err)
		}
		result = append(result, ticket)
	}
	return result, storageError(rows.Err())
}
