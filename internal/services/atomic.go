package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"pos-backend/internal/apperr"
	"pos-backend/internal/repositories"
	"pos-backend/internal/retry"
)

const (
	defaultWriteAttempts = 3
	defaultWriteBackoff  = 20 * time.Millisecond
)

// WritePolicy is the retry policy for ledger and stock writes made outside of
// a sale. They conflict with concurrent sales the same way sales conflict
// with each other.
func WritePolicy(attempts int, backoff time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Backoff:     backoff,
		Retryable:   apperr.Retryable,
	}
}

func defaultWritePolicy() retry.Policy {
	return WritePolicy(defaultWriteAttempts, defaultWriteBackoff)
}

// atomicWithRetry re-runs fn in a fresh atomic scope while the store reports
// contention. fn must rebuild its result from what it reads on each run.
func atomicWithRetry(ctx context.Context, store repositories.Store, branchID, op string, p retry.Policy,
	fn func(ctx context.Context, r repositories.Repos) error) error {
	p.OnRetry = func(attempt int, err error) {
		log.WithError(err).WithFields(log.Fields{
			"branch":  branchID,
			"op":      op,
			"attempt": attempt,
		}).Warn("[Store] Contention, retrying write")
	}
	_, err := retry.Do(ctx, p, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, store.Atomic(ctx, branchID, fn)
	})
	return err
}
