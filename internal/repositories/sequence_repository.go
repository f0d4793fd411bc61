package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type PgSequenceRepository struct {
	DB       querier
	BranchID string
}

// Next is a single read-increment-write on the branch counter row. Under
// SERIALIZABLE two sales racing for the same row cannot both commit.
func (r *PgSequenceRepository) Next(ctx context.Context) (int64, error) {
	var next int64
	err := r.DB.QueryRow(ctx,
		`INSERT INTO counters (branch_id, invoice_counter) VALUES ($1, 1)
		 ON CONFLICT (branch_id) DO UPDATE SET invoice_counter = counters.invoice_counter + 1
		 RETURNING invoice_counter`,
		r.BranchID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to advance invoice counter: %w", err)
	}
	return next, nil
}

func (r *PgSequenceRepository) Current(ctx context.Context) (int64, error) {
	var current int64
	err := r.DB.QueryRow(ctx,
		`SELECT invoice_counter FROM counters WHERE branch_id = $1`, r.BranchID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read invoice counter: %w", err)
	}
	return current, nil
}
