package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nftix/ticket-lifecycle/internal/domain"
	"github.com/nftix/ticket-lifecycle/internal/events"
	"github.com/nftix/ticket-lifecycle/internal/keylock"
	"github.com/nftix/ticket-lifecycle/internal/observability"
	"github.com/nftix/ticket-lifecycle/internal/repository"
	"github.com/nftix/ticket-lifecycle/internal/repository/memory"
)

var testNow = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

type fixture struct {
	svc        *LifecycleService
	store      *memory.Store
	metrics    *observability.Metrics
	dispatcher events.Dispatcher

	mu        sync.Mutex
	published []events.Event
}

type fixtureOption func(*LifecycleDependencies)

func withLocker(l keylock.Locker) fixtureOption {
	return func(d *LifecycleDependencies) { d.Locker = l }
}

func withStore(s repository.Store) fixtureOption {
	return func(d *LifecycleDependencies) { d.Store = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.NewStore(),
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	for _, typ := range []events.EventType{
		events.EventTicketMinted, events.EventTicketAttended,
		events.EventRewardClaimed, events.EventRewardUnlocked,
	} {
		f.dispatcher.Subscribe(typ, func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, e)
			return nil
		})
	}
	deps := LifecycleDependencies{
		Store:        f.store,
		Locker:       keylock.NewLocalLocker(),
		Dispatcher:   f.dispatcher,
		Metrics:      f.metrics,
		Logger:       zap.NewNop(),
		QRSecretCost: bcrypt.MinCost,
		Now:          func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewLifecycleService(deps)
	return f
}

func (f *fixture) mint(t *testing.T, id, eventID, holder, secret string) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.MintTicket(context.Background(), MintInput{
		TicketID: id, EventID: eventID, Holder: holder, QRSecret: secret,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) attend(t *testing.T, id, eventID, holder string) {
	t.Helper()
	f.mint(t, id, eventID, holder, "secret-"+id)
	_, err := f.svc.ValidateScan(context.Background(), id, "secret-"+id, "0xscanner")
	require.NoError(t, err)
}

func (f *fixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

// noopLocker grants every key immediately so tests can exercise store-level guards.
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (keylock.Unlock, error) {
	return func() {}, nil
}
