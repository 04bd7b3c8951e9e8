package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nftix/ticket-lifecycle/internal/auth"
	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/events"
	"github.com/nftix/ticket-lifecycle/internal/keylock"
	"github.com/nftix/ticket-lifecycle/internal/observability"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// Operation names used for metrics and logs.
const (
	OpMintTicket   = "mint_ticket"
	OpValidateScan = "validate_scan"
	OpChainScan    = "chain_scan"
	OpClaimReward  = "claim_reward"
	OpRewardUnlock = "reward_unlock"
)

const missingParameters = "Missing required parameters"

// LifecycleService is the only writer of ticket state and the ledgers. Every
// mutation runs under a per-key lock and inside a single store transaction.
type LifecycleService struct {
	store        repository.Store
	locker       keylock.Locker
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	qrSecretCost int
	now          func() time.Time
	validations  ValidationLedger
	rewards      RewardLedger
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	Store        repository.Store
	Locker       keylock.Locker
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	QRSecretCost int
	Now          func() time.Time
}

// MintInput describes a newly minted ticket.
type MintInput struct {
	TicketID string
	EventID  string
	Holder   string
	QRSecret string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	s := &LifecycleService{
		store:        deps.Store,
		locker:       deps.Locker,
		dispatcher:   deps.Dispatcher,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		qrSecretCost: deps.QRSecretCost,
		now:          deps.Now,
	}
	if s.locker == nil {
		s.locker = keylock.NewLocalLocker()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// MintTicket creates an UNUSED ticket. The QR secret is kept only as a hash.
func (s *LifecycleService) MintTicket(ctx context.Context, in MintInput) (ticket *domain.Ticket, err error) {
	defer s.observe(OpMintTicket, &err)

	in.TicketID = strings.TrimSpace(in.TicketID)
	in.EventID = strings.TrimSpace(in.EventID)
	holder := domain.NormalizeAddress(in.Holder)
	if in.TicketID == "" || in.EventID == "" || holder == "" || in.QRSecret == "" {
		return nil, apperrors.NewMissingParameter(missingParameters, map[string]any{
			"required": []string{"tokenId", "eventId", "holder", "qrCode"},
		})
	}
	if len(in.QRSecret) > auth.MaxQRSecretLen {
		return nil, apperrors.NewValidationError("QR secret too long", map[string]any{"maxLength": auth.MaxQRSecretLen})
	}

	hash, err := auth.HashQRSecret(in.QRSecret, s.qrSecretCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	unlock, err := s.locker.Lock(ctx, keylock.TicketKey(in.TicketID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket = &domain.Ticket{
		ID:           in.TicketID,
		EventID:      in.EventID,
		Holder:       holder,
		State:        domain.TicketStateUnused,
		QRSecretHash: hash,
		MintedAt:     s.timestamp(),
	}
	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("ticket minted", zap.String("ticket_id", ticket.ID), zap.String("event_id", ticket.EventID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMinted,
		TicketID: ticket.ID,
		EventID:  ticket.EventID,
		Holder:   ticket.Holder,
		Actor:    events.Actor{Kind: events.ActorChain},
		Payload:  events.TicketMintedPayload{MintedAt: ticket.MintedAt},
	})
	return ticket, nil
}

// ValidateScan checks a gate scan and marks the ticket ATTENDED.
func (s *LifecycleService) ValidateScan(ctx context.Context, ticketID, qrSecret, scanner string) (ticket *domain.Ticket, err error) {
	defer s.observe(OpValidateScan, &err)

	ticketID = strings.TrimSpace(ticketID)
	scanner = domain.NormalizeAddress(scanner)
	if ticketID == "" || qrSecret == "" || scanner == "" {
		return nil, apperrors.NewMissingParameter(missingParameters, map[string]any{
			"required": []string{"tokenId", "qrCode", "scannerAddress"},
		})
	}

	ticket, err = s.recordScan(ctx, ScanInput{
		TicketID: ticketID,
		Scanner:  scanner,
		QRSecret: qrSecret,
		Source:   domain.ScanSourceGate,
		VerifyQR: true,
	}, events.ActorScanner)
	return ticket, err
}

// RecordChainScan applies a TicketScanned chain event. The chain has already
// verified possession, so no QR secret is checked. A ticket that is already
// past UNUSED is left as is and applied is false.
func (s *LifecycleService) RecordChainScan(ctx context.Context, ticketID, scanner string) (ticket *domain.Ticket, applied bool, err error) {
	defer s.observe(OpChainScan, &err)

	ticketID = strings.TrimSpace(ticketID)
	scanner = domain.NormalizeAddress(scanner)
	if ticketID == "" || scanner == "" {
		return nil, false, apperrors.NewMissingParameter(missingParameters, map[string]any{
			"required": []string{"tokenId", "scanner"},
		})
	}

	ticket, err = s.recordScan(ctx, ScanInput{
		TicketID: ticketID,
		Scanner:  scanner,
		Source:   domain.ScanSourceChain,
	}, events.ActorChain)
	if apperrors.HasCode(err, apperrors.CodeAlreadyUsed) {
		current, getErr := s.store.Tickets().GetByID(ctx, ticketID)
		if getErr != nil {
			return nil, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

func (s *LifecycleService) recordScan(ctx context.Context, in ScanInput, actor events.ActorKind) (*domain.Ticket, error) {
	unlock, err := s.locker.Lock(ctx, keylock.TicketKey(in.TicketID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	in.At = s.timestamp()
	var (
		entry  *domain.ValidationEntry
		ticket *domain.Ticket
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		entry, ticket, err = s.validations.RecordScan(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket attended",
		zap.String("ticket_id", ticket.ID),
		zap.String("event_id", ticket.EventID),
		zap.String("source", string(entry.Source)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAttended,
		TicketID: ticket.ID,
		EventID:  ticket.EventID,
		Holder:   ticket.Holder,
		Actor:    events.Actor{Kind: actor, Address: entry.Scanner},
		Payload: events.TicketAttendedPayload{
			Scanner:    entry.Scanner,
			Source:     entry.Source,
			AttendedAt: entry.ValidatedAt,
		},
	})
	return ticket, nil
}

// ClaimReward grants the loyalty reward for (attendee, eventID) and marks the
// attended ticket REWARDED.
func (s *LifecycleService) ClaimReward(ctx context.Context, attendee, eventID string, isEarlyBird bool) (reward *domain.RewardEntry, err error) {
	defer s.observe(OpClaimReward, &err)

	attendee = domain.NormalizeAddress(attendee)
	eventID = strings.TrimSpace(eventID)
	if attendee == "" || eventID == "" {
		return nil, apperrors.NewMissingParameter(missingParameters, map[string]any{
			"required": []string{"attendeeAddress", "eventId"},
		})
	}

	unlock, err := s.locker.Lock(ctx, keylock.RewardKey(attendee, eventID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	in := ClaimInput{Attendee: attendee, EventID: eventID, IsEarlyBird: isEarlyBird, At: s.timestamp()}
	var ticket *domain.Ticket
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		reward, ticket, err = s.rewards.ClaimReward(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reward claimed",
		zap.String("ticket_id", ticket.ID),
		zap.String("event_id", eventID),
		zap.Int64("amount", reward.Amount))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventRewardClaimed,
		TicketID: ticket.ID,
		EventID:  eventID,
		Holder:   attendee,
		Actor:    events.Actor{Kind: events.ActorHolder, Address: attendee},
		Payload:  events.RewardClaimedPayload{Amount: reward.Amount, IsEarlyBird: reward.IsEarlyBird},
	})
	return reward, nil
}

// RecordRewardUnlock stores an on-chain RewardUnlocked event. It is recorded
// once per ticket; replays return the stored unlock with applied false.
func (s *LifecycleService) RecordRewardUnlock(ctx context.Context, ticketID, holder string) (unlock *domain.RewardUnlock, applied bool, err error) {
	defer s.observe(OpRewardUnlock, &err)

	ticketID = strings.TrimSpace(ticketID)
	holder = domain.NormalizeAddress(holder)
	if ticketID == "" || holder == "" {
		return nil, false, apperrors.NewMissingParameter(missingParameters, map[string]any{
			"required": []string{"tokenId", "holder"},
		})
	}

	release, err := s.locker.Lock(ctx, keylock.TicketKey(ticketID))
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := s.store.Unlocks().GetByTicket(ctx, ticketID)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, false, err
	}

	unlock = &domain.RewardUnlock{TicketID: ticketID, Holder: holder, UnlockedAt: s.timestamp()}
	if err := s.store.Unlocks().Append(ctx, unlock); err != nil {
		if apperrors.HasCode(err, apperrors.CodeAlreadyExists) {
			existing, getErr := s.store.Unlocks().GetByTicket(ctx, ticketID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.logger.Info("reward unlocked", zap.String("ticket_id", ticketID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventRewardUnlocked,
		TicketID: ticketID,
		Holder:   holder,
		Actor:    events.Actor{Kind: events.ActorChain},
		Payload:  events.RewardUnlockedPayload{UnlockedAt: unlock.UnlockedAt},
	})
	return unlock, true, nil
}

// GetTicket returns a single ticket.
func (s *LifecycleService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.NewMissingParameter(missingParameters, map[string]any{"required": []string{"tokenId"}})
	}
	return s.store.Tickets().GetByID(ctx, ticketID)
}

// ListHolderTickets returns the tickets held by an address in mint order.
func (s *LifecycleService) ListHolderTickets(ctx context.Context, holder string) ([]domain.Ticket, error) {
	holder = domain.NormalizeAddress(holder)
	if holder == "" {
		return nil, apperrors.NewMissingParameter("User address is required", map[string]any{"required": []string{"userAddress"}})
	}
	return s.store.Tickets().ListByHolder(ctx, holder)
}

// EventStats combines attendance and reward totals for one event.
func (s *LifecycleService) EventStats(ctx context.Context, eventID string) (*domain.EventStats, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperrors.NewMissingParameter("Event ID is required", map[string]any{"required": []string{"eventId"}})
	}
	attendance, err := s.validations.StatsForEvent(ctx, s.store.Validations(), eventID)
	if err != nil {
		return nil, err
	}
	rewards, err := s.rewards.StatsForEvent(ctx, s.store.Rewards(), eventID)
	if err != nil {
		return nil, err
	}
	return &domain.EventStats{EventID: eventID, AttendanceStats: attendance, RewardStats: rewards}, nil
}

func (s *LifecycleService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *LifecycleService) observe(op string, errp *error) {
	err := *errp
	if err == nil {
		s.metrics.RecordLifecycle(op, observability.OutcomeSuccess)
		return
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= 500 {
		s.metrics.RecordLifecycle(op, observability.OutcomeFailed)
		s.logger.Error("lifecycle operation failed", zap.String("operation", op), zap.Error(err))
		return
	}
	s.metrics.RecordLifecycle(op, observability.OutcomeRejected)
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.timestamp()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
