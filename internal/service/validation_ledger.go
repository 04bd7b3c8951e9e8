package service

import (
	"context"
	"errors"
	"time"

	"github.com/nftix/ticket-lifecycle/internal/auth"
	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// ValidationLedger appends scan entries and moves scanned tickets to ATTENDED.
type ValidationLedger struct{}

// ScanInput describes one scan attempt.
type ScanInput struct {
	TicketID string
	Scanner  string
	QRSecret string
	Source   domain.ScanSource
	// VerifyQR is false for chain-attested scans, which carry no secret.
	VerifyQR bool
	At       time.Time
}

// RecordScan validates the scan against the stored ticket, appends the entry
// and transitions the ticket. Both writes go through tx so they commit together.
func (ValidationLedger) RecordScan(ctx context.Context, tx repository.Repositories, in ScanInput) (*domain.ValidationEntry, *domain.Ticket, error) {
	ticket, err := tx.Tickets().GetByID(ctx, in.TicketID)
	if err != nil {
		return nil, nil, err
	}
	if in.VerifyQR {
		if err := auth.CompareQRSecret(ticket.QRSecretHash, in.QRSecret); err != nil {
			if errors.Is(err, auth.ErrQRSecretMismatch) {
				return nil, nil, apperrors.NewQRMismatch(ticket.ID)
			}
			return nil, nil, apperrors.NewInternalError(err)
		}
	}
	if ticket.State != domain.TicketStateUnused {
		return nil, nil, apperrors.NewAlreadyUsed(ticket.ID)
	}

	entry := &domain.ValidationEntry{
		TicketID:    ticket.ID,
		EventID:     ticket.EventID,
		Holder:      ticket.Holder,
		Scanner:     in.Scanner,
		Source:      in.Source,
		ValidatedAt: in.At,
	}
	if err := tx.Validations().Append(ctx, entry); err != nil {
		return nil, nil, err
	}
	updated, err := tx.Tickets().Transition(ctx, ticket.ID, domain.TicketStateAttended, in.At)
	if err != nil {
		return nil, nil, err
	}
	return entry, updated, nil
}

// StatsForEvent lists the event's scans in insertion order.
func (ValidationLedger) StatsForEvent(ctx context.Context, repo repository.ValidationRepository, eventID string) (domain.AttendanceStats, error) {
	entries, err := repo.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.AttendanceStats{}, err
	}
	stats := domain.AttendanceStats{
		TotalAttendees: len(entries),
		Attendees:      make([]domain.AttendeeRecord, 0, len(entries)),
	}
	for _, e := range entries {
		stats.Attendees = append(stats.Attendees, domain.AttendeeRecord{
			Holder:      e.Holder,
			Scanner:     e.Scanner,
			ValidatedAt: e.ValidatedAt,
		})
	}
	return stats, nil
}
