// Package storetest holds behaviour checks every repository.Store variant must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

// Factory returns a ready store for one subtest.
type Factory func(t *testing.T) repository.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("TransitionRules", func(t *testing.T) { testTransitionRules(t, newStore(t)) })
	t.Run("ListByHolder", func(t *testing.T) { testListByHolder(t, newStore(t)) })
	t.Run("ValidationLedger", func(t *testing.T) { testValidationLedger(t, newStore(t)) })
	t.Run("RewardLedger", func(t *testing.T) { testRewardLedger(t, newStore(t)) })
	t.Run("UnlockLedger", func(t *testing.T) { testUnlockLedger(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("ConcurrentTransition", func(t *testing.T) { testConcurrentTransition(t, newStore(t)) })
	t.Run("ConcurrentRewardAppend", func(t *testing.T) { testConcurrentRewardAppend(t, newStore(t)) })
}

// NewTicket builds an UNUSED ticket with unique identifiers.
func NewTicket(holder string) *domain.Ticket {
	return &domain.Ticket{
		ID:           uuid.NewString(),
		EventID:      "event-" + uuid.NewString()[:8],
		Holder:       holder,
		State:        domain.TicketStateUnused,
		QRSecretHash: "hash",
		MintedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testCreateAndGet(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticket := NewTicket("0xabc")
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.EventID, got.EventID)
	assert.Equal(t, domain.TicketStateUnused, got.State)
	assert.Nil(t, got.AttendedAt)
	assert.Nil(t, got.RewardedAt)

	err = store.Tickets().Create(ctx, ticket)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyExists), "got %v", err)

	_, err = store.Tickets().GetByID(ctx, uuid.NewString())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func testTransitionRules(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticket := NewTicket("0xabc")
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.Tickets().Transition(ctx, ticket.ID, domain.TicketStateRewarded, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "got %v", err)

	attended, err := store.Tickets().Transition(ctx, ticket.ID, domain.TicketStateAttended, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateAttended, attended.State)
	require.NotNil(t, attended.AttendedAt)

	_, err = store.Tickets().Transition(ctx, ticket.ID, domain.TicketStateAttended, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "got %v", err)

	rewarded, err := store.Tickets().Transition(ctx, ticket.ID, domain.TicketStateRewarded, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateRewarded, rewarded.State)
	require.NotNil(t, rewarded.AttendedAt)
	require.NotNil(t, rewarded.RewardedAt)

	_, err = store.Tickets().Transition(ctx, ticket.ID, domain.TicketStateUnused, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "got %v", err)

	_, err = store.Tickets().Transition(ctx, uuid.NewString(), domain.TicketStateAttended, now)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func testListByHolder(t *testing.T, store repository.Store) {
	ctx := context.Background()
	holder := "0x" + uuid.NewString()[:8]
	first := NewTicket(holder)
	second := NewTicket(holder)
	second.EventID = first.EventID
	other := NewTicket("0xother")
	for _, ticket := range []*domain.Ticket{first, other, second} {
		require.NoError(t, store.Tickets().Create(ctx, ticket))
	}

	tickets, err := store.Tickets().ListByHolder(ctx, holder)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, first.ID, tickets[0].ID)
	assert.Equal(t, second.ID, tickets[1].ID)

	byEvent, err := store.Tickets().ListByHolderAndEvent(ctx, holder, first.EventID)
	require.NoError(t, err)
	assert.Len(t, byEvent, 2)

	none, err := store.Tickets().ListByHolder(ctx, "0xnobody-"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testValidationLedger(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticket := NewTicket("0xabc")
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	entry := &domain.ValidationEntry{
		TicketID:    ticket.ID,
		EventID:     ticket.EventID,
		Holder:      ticket.Holder,
		Scanner:     "0xscanner",
		Source:      domain.ScanSourceGate,
		ValidatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Validations().Append(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	byEvent, err := store.Validations().ListByEvent(ctx, ticket.EventID)
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, "0xscanner", byEvent[0].Scanner)

	byTicket, err := store.Validations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, byTicket, 1)
}

func testRewardLedger(t *testing.T, store repository.Store) {
	ctx := context.Background()
	eventID := "event-" + uuid.NewString()[:8]
	entry := &domain.RewardEntry{
		Attendee:  "0xabc",
		EventID:   eventID,
		TicketID:  uuid.NewString(),
		Amount:    150,
		Status:    domain.RewardStatusPending,
		ClaimedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Rewards().Append(ctx, entry))

	dup := *entry
	dup.ID = ""
	err := store.Rewards().Append(ctx, &dup)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyClaimed), "got %v", err)

	found, err := store.Rewards().FindByAttendeeEvent(ctx, "0xabc", eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), found.Amount)

	_, err = store.Rewards().FindByAttendeeEvent(ctx, "0xabc", "other-"+eventID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)

	list, err := store.Rewards().ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testUnlockLedger(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticketID := uuid.NewString()
	unlock := &domain.RewardUnlock{TicketID: ticketID, Holder: "0xabc", UnlockedAt: time.Now().UTC()}
	require.NoError(t, store.Unlocks().Append(ctx, unlock))

	err := store.Unlocks().Append(ctx, &domain.RewardUnlock{TicketID: ticketID, Holder: "0xabc", UnlockedAt: time.Now().UTC()})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyExists), "got %v", err)

	got, err := store.Unlocks().GetByTicket(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Holder)
}

func testTxRollback(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticket := NewTicket("0xabc")
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	crash := errors.New("crash between ledger append and state change")
	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := tx.Validations().Append(ctx, &domain.ValidationEntry{
			TicketID:    ticket.ID,
			EventID:     ticket.EventID,
			Holder:      ticket.Holder,
			Scanner:     "0xscanner",
			Source:      domain.ScanSourceGate,
			ValidatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if _, err := tx.Tickets().Transition(ctx, ticket.ID, domain.TicketStateAttended, time.Now().UTC()); err != nil {
			return err
		}
		return crash
	})
	require.ErrorIs(t, err, crash)

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateUnused, got.State)
	assert.Nil(t, got.AttendedAt)

	entries, err := store.Validations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testTxCommit(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticket := NewTicket("0xabc")

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		if err := tx.Validations().Append(ctx, &domain.ValidationEntry{
			TicketID:    ticket.ID,
			EventID:     ticket.EventID,
			Holder:      ticket.Holder,
			Scanner:     "0xscanner",
			Source:      domain.ScanSourceChain,
			ValidatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		inTx, err := tx.Tickets().Transition(ctx, ticket.ID, domain.TicketStateAttended, time.Now().UTC())
		if err != nil {
			return err
		}
		assert.Equal(t, domain.TicketStateAttended, inTx.State)
		return nil
	})
	require.NoError(t, err)

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateAttended, got.State)

	entries, err := store.Validations().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func testConcurrentTransition(t *testing.T, store repository.Store) {
	ctx := context.Background()
	ticket := NewTicket("0xabc")
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
				_, err := tx.Tickets().Transition(ctx, ticket.ID, domain.TicketStateAttended, time.Now().UTC())
				return err
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "got %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func testConcurrentRewardAppend(t *testing.T, store repository.Store) {
	ctx := context.Background()
	eventID := "event-" + uuid.NewString()[:8]

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
				return tx.Rewards().Append(ctx, &domain.RewardEntry{
					Attendee:  "0xabc",
					EventID:   eventID,
					TicketID:  "t",
					Amount:    100,
					Status:    domain.RewardStatusPending,
					ClaimedAt: time.Now().UTC(),
				})
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyClaimed), "got %v", err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)

	list, err := store.Rewards().ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
