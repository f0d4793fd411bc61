package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var retried []int
		p := Policy{MaxAttempts: 3, Retryable: isBusy, OnRetry: func(a int, _ error) { retried = append(retried, a) }}

		got, err := Do(ctx, p, func(_ context.Context, attempt int) (int, error) {
			if attempt < 3 {
				return 0, errBusy
			}
			return 42, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, Policy{MaxAttempts: 4, Retryable: isBusy}, func(context.Context, int) (string, error) {
			calls++
			return "", errBusy
		})

		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 4, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := Do(ctx, Policy{MaxAttempts: 5, Retryable: isBusy}, func(context.Context, int) (int, error) {
			calls++
			return 0, boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, Policy{}, func(context.Context, int) (int, error) {
			calls++
			return 1, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops backoff", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		_, err := Do(cctx, Policy{MaxAttempts: 3, Backoff: 1 << 30, Retryable: isBusy}, func(context.Context, int) (int, error) {
			calls++
			return 0, errBusy
		})

		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 1, calls)
	})
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 30*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}
