package repository

import (
	"context"

	"github.com/nftix/ticket-lifecycle/internal/domain"
)

type validationRepository struct {
	db dbtx
}

func (r *validationRepository) Append(ctx context.Context, entry *domain.ValidationEntry) error {
	EnsureID(&entry.ID)
	const query = `
        INSERT INTO ticket_validations (id, token_id, event_id, holder, scanner, source, validated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.EventID,
		entry.Holder,
		entry.Scanner,
		entry.Source,
		entry.ValidatedAt,
	)
	return storageError(err)
}

func (r *validationRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.ValidationEntry, error) {
	const query = `
        SELECT id, token_id, event_id, holder, scanner, source, validated_at
        FROM ticket_validations WHERE event_id=$1 ORDER BY seq ASC`
	return r.list(ctx, query, eventID)
}

func (r *validationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ValidationEntry, error) {
	const query = `
        SELECT id, token_id, event_id, holder, scanner, source, validated_at
        FROM ticket_validations WHERE token_id=$1 ORDER BY seq ASC`
	return r.list(ctx, query, ticketID)
}

func (r *validationRepository) list(ctx context.Context, query string, arg any) ([]domain.ValidationEntry, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := []domain.ValidationEntry{}
	for rows.Next() {
		var entry domain.ValidationEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.EventID,
			&entry.Holder,
			&entry.Scanner,
			&entry.Source,
			&entry.ValidatedAt,
		); err != nil {
			return nil, storageError(err)
		}
		result = append(result, entry)
	}
	return result, storageError(rows.Err())
}
