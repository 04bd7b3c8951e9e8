package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/events"
	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

func TestMintTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.mint(t, "T1", "E1", "0xABCdef", "S1")

	assert.Equal(t, domain.TicketStateUnused, ticket.State)
	assert.Equal(t, "0xabcdef", ticket.Holder)
	assert.Equal(t, testNow, ticket.MintedAt)
	assert.Nil(t, ticket.AttendedAt)
	assert.NotEqual(t, "S1", ticket.QRSecretHash)
	assert.Equal(t, []events.EventType{events.EventTicketMinted}, f.eventTypes())
}

func TestMintTicket_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xabc", "S1")

	_, err := f.svc.MintTicket(ctx, MintInput{TicketID: "T1", EventID: "E1", Holder: "0xabc", QRSecret: "S1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyExists), "got %v", err)

	_, err = f.svc.MintTicket(ctx, MintInput{TicketID: "T2", EventID: "E1", Holder: " ", QRSecret: "S1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter), "got %v", err)

	_, err = f.svc.MintTicket(ctx, MintInput{TicketID: "T3", EventID: "E1", Holder: "0xabc", QRSecret: strings.Repeat("x", 73)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "got %v", err)
}

func TestValidateScan_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "H1", "S1")

	_, err := f.svc.ValidateScan(ctx, "T1", "S2", "0xGate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeQRMismatch), "got %v", err)
	ticket, err := f.svc.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateUnused, ticket.State)

	ticket, err = f.svc.ValidateScan(ctx, "T1", "S1", "0xGate")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateAttended, ticket.State)
	require.NotNil(t, ticket.AttendedAt)
	assert.Equal(t, testNow, *ticket.AttendedAt)

	_, err = f.svc.ValidateScan(ctx, "T1", "S1", "0xGate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyUsed), "got %v", err)

	entries, err := f.store.Validations().ListByTicket(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0xgate", entries[0].Scanner)
	assert.Equal(t, domain.ScanSourceGate, entries[0].Source)
}

func TestValidateScan_LongSecretMustMatchExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := strings.Repeat("a", 72)
	f.mint(t, "T1", "E1", "H1", secret)

	_, err := f.svc.ValidateScan(ctx, "T1", secret+"-tampered", "0xGate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeQRMismatch), "got %v", err)
	ticket, err := f.svc.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateUnused, ticket.State)

	ticket, err = f.svc.ValidateScan(ctx, "T1", secret, "0xGate")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateAttended, ticket.State)
}

func TestValidateScan_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ValidateScan(ctx, "T1", "", "0xgate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter), "got %v", err)

	_, err = f.svc.ValidateScan(ctx, "missing", "S1", "0xgate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestValidateScan_RewardedTicketIsAlreadyUsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.attend(t, "T1", "E1", "0xabc")
	_, err := f.svc.ClaimReward(ctx, "0xabc", "E1", false)
	require.NoError(t, err)

	_, err = f.svc.ValidateScan(ctx, "T1", "secret-T1", "0xgate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyUsed), "got %v", err)
}

func TestClaimReward_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.attend(t, "T1", "E1", "H1")

	reward, err := f.svc.ClaimReward(ctx, "H1", "E1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(150), reward.Amount)
	assert.Equal(t, domain.RewardStatusPending, reward.Status)
	assert.Equal(t, "h1", reward.Attendee)
	assert.Equal(t, "T1", reward.TicketID)

	ticket, err := f.svc.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateRewarded, ticket.State)
	require.NotNil(t, ticket.RewardedAt)

	_, err = f.svc.ClaimReward(ctx, "h1", "E1", true)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyClaimed), "got %v", err)

	rewards, err := f.store.Rewards().ListByEvent(ctx, "E1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)

	stats, err := f.svc.EventStats(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAttendees)
	assert.Equal(t, 1, stats.TotalRewards)
	assert.Equal(t, int64(150), stats.TotalTokensDistributed)
	require.Len(t, stats.Attendees, 1)
	assert.Equal(t, "h1", stats.Attendees[0].Holder)

	assert.Equal(t, []events.EventType{
		events.EventTicketMinted, events.EventTicketAttended, events.EventRewardClaimed,
	}, f.eventTypes())
}

func TestClaimReward_Amounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.attend(t, "T1", "E1", "0xa")
	f.attend(t, "T2", "E2", "0xb")

	regular, err := f.svc.ClaimReward(ctx, "0xa", "E1", false)
	require.NoError(t, err)
	early, err := f.svc.ClaimReward(ctx, "0xb", "E2", true)
	require.NoError(t, err)
	assert.Equal(t, int64(100), regular.Amount)
	assert.Equal(t, int64(150), early.Amount)
}

func TestClaimReward_RequiresAttendedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClaimReward(ctx, "0xabc", "E1", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)

	f.mint(t, "T1", "E1", "0xabc", "S1")
	_, err = f.svc.ClaimReward(ctx, "0xabc", "E1", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "got %v", err)

	ticket, err := f.svc.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateUnused, ticket.State)

	_, err = f.svc.ClaimReward(ctx, "", "E1", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter), "got %v", err)
}

func TestClaimReward_PicksAttendedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xabc", "S1")
	f.attend(t, "T2", "E1", "0xabc")

	reward, err := f.svc.ClaimReward(ctx, "0xabc", "E1", false)
	require.NoError(t, err)
	assert.Equal(t, "T2", reward.TicketID)
}

func testConcurrentClaims(t *testing.T, f *fixture) {
	ctx := context.Background()
	f.attend(t, "T1", "E1", "0xabc")

	const callers = 100
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			attendee := "0xabc"
			if i%2 == 0 {
				attendee = "0xABC"
			}
			_, err := f.svc.ClaimReward(ctx, attendee, "E1", i%3 == 0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			if apperrors.HasCode(err, apperrors.CodeAlreadyClaimed) {
				rejected++
				return
			}
			t.Errorf("unexpected error: %v", err)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, callers-1, rejected)
	rewards, err := f.store.Rewards().ListByEvent(ctx, "E1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestClaimReward_ConcurrentSamePair(t *testing.T) {
	testConcurrentClaims(t, newFixture(t))
}

func TestClaimReward_ConcurrentSamePairWithoutLocker(t *testing.T) {
	testConcurrentClaims(t, newFixture(t, withLocker(noopLocker{})))
}

func TestValidateScan_ConcurrentSameTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xabc", "S1")

	const callers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ValidateScan(ctx, "T1", "S1", "0xgate")
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyUsed), "got %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	entries, err := f.store.Validations().ListByTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordChainScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xabc", "S1")

	ticket, applied, err := f.svc.RecordChainScan(ctx, "T1", "0xRelay")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.TicketStateAttended, ticket.State)

	ticket, applied, err = f.svc.RecordChainScan(ctx, "T1", "0xrelay")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.TicketStateAttended, ticket.State)

	entries, err := f.store.Validations().ListByTicket(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ScanSourceChain, entries[0].Source)

	_, _, err = f.svc.RecordChainScan(ctx, "unknown", "0xrelay")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestRecordRewardUnlock_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.attend(t, "T1", "E1", "0xabc")

	unlock, applied, err := f.svc.RecordRewardUnlock(ctx, "T1", "0xABC")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "0xabc", unlock.Holder)

	again, applied, err := f.svc.RecordRewardUnlock(ctx, "T1", "0xabc")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, unlock.ID, again.ID)

	// Unlocks stay off the loyalty ledger and leave the ticket state alone.
	stats, err := f.svc.EventStats(ctx, "E1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRewards)
	ticket, err := f.svc.GetTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateAttended, ticket.State)
}

func TestListHolderTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xAbC", "S1")
	f.mint(t, "T2", "E2", "0xabc", "S2")
	f.mint(t, "T3", "E1", "0xdef", "S3")

	tickets, err := f.svc.ListHolderTickets(ctx, "0XABC")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "T1", tickets[0].ID)
	assert.Equal(t, "T2", tickets[1].ID)

	_, err = f.svc.ListHolderTickets(ctx, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingParameter), "got %v", err)
}

func TestEventStats_Empty(t *testing.T) {
	f := newFixture(t)
	stats, err := f.svc.EventStats(context.Background(), "nobody-came")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAttendees)
	assert.Empty(t, stats.Attendees)
	assert.Zero(t, stats.TotalTokensDistributed)
}

func TestStorageUnavailablePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xabc", "S1")
	f.store.SetFault(errors.New("connection refused"))

	_, err := f.svc.ValidateScan(ctx, "T1", "S1", "0xgate")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageUnavailable), "got %v", err)
	_, err = f.svc.ClaimReward(ctx, "0xabc", "E1", false)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageUnavailable), "got %v", err)
	_, err = f.svc.EventStats(ctx, "E1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageUnavailable), "got %v", err)

	// mint success, validate failed, claim failed
	count, err := testutil.GatherAndCount(f.metrics.Registry(), "ticket_lifecycle_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLifecycleMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, "T1", "E1", "0xabc", "S1")
	_, err := f.svc.ValidateScan(ctx, "T1", "wrong", "0xgate")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "ticket_lifecycle_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
