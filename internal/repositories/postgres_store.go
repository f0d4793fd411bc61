package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pos-backend/internal/apperr"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore is the transactional store backed by PostgreSQL.
type PgStore struct {
	DB *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{DB: db}
}

func (s *PgStore) Transactional() bool { return true }

func (s *PgStore) Close() error {
	s.DB.Close()
	return nil
}

func (s *PgStore) Branch(branchID string) Repos {
	return newPgRepos(s.DB, branchID, false)
}

// Atomic runs fn in a SERIALIZABLE transaction. Row locks taken by the
// repositories are held until commit.
func (s *PgStore) Atomic(ctx context.Context, branchID string, fn func(ctx context.Context, r Repos) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, newPgRepos(tx, branchID, true)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func newPgRepos(q querier, branchID string, locking bool) Repos {
	return Repos{
		Products:  &PgProductRepository{DB: q, BranchID: branchID, Locking: locking},
		Customers: &PgCustomerRepository{DB: q, BranchID: branchID, Locking: locking},
		Sales:     &PgSaleRepository{DB: q, BranchID: branchID},
		Sequences: &PgSequenceRepository{DB: q, BranchID: branchID},
	}
}

// classify maps raw database errors onto the apperr taxonomy. Errors that
// already carry a Kind are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	if isContention(err) {
		return apperr.Contention(err)
	}
	return apperr.Storage(err)
}

// isContention reports serialization failures and deadlocks, both of which
// are resolved by re-running the whole transaction.
func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
