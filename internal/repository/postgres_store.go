package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/nftix/ticket-lifecycle/pkg/util/errorutil"
)

const pgUniqueViolation = "23505"

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps tickets and ledgers in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
	pgRepositories
}

type pgRepositories struct {
	db     dbtx
	inTx   bool
	ticket *ticketRepository
}

// NewPostgresStore builds a store on an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, pgRepositories: newPGRepositories(pool, false)}
}

func newPGRepositories(db dbtx, inTx bool) pgRepositories {
	return pgRepositories{db: db, inTx: inTx, ticket: &ticketRepository{db: db, forUpdate: inTx}}
}

func (r pgRepositories) Tickets() TicketRepository { return r.ticket }

func (r pgRepositories) Validations() ValidationRepository {
	return &validationRepository{db: r.db}
}

func (r pgRepositories) Rewards() RewardRepository {
	return &rewardRepository{db: r.db, inTx: r.inTx}
}

func (r pgRepositories) Unlocks() RewardUnlockRepository {
	return &rewardUnlockRepository{db: r.db}
}

// WithinTx runs fn inside a single Postgres transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, newPGRepositories(tx, true)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError(err)
	}
	return nil
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageError(err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// storageError wraps backend faults. Domain errors pass through untouched.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewStorageUnavailable(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
