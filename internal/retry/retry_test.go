package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		v, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(_ context.Context, attempt int) (string, error) {
			calls++
			if attempt < 3 {
				return "", errFlaky
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts the attempt limit", func(t *testing.T) {
		calls := 0
		var retried []int
		_, err := Do(context.Background(), Policy{
			MaxAttempts: 4,
			OnRetry:     func(attempt int, _ error) { retried = append(retried, attempt) },
		}, func(context.Context, int) (int, error) {
			calls++
			return 0, errFlaky
		})

		assert.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 4, calls)
		assert.Equal(t, []int{1, 2, 3}, retried)
	})

	t.Run("stops on non retryable error", func(t *testing.T) {
		errFatal := errors.New("fatal")
		calls := 0
		_, err := Do(context.Background(), Policy{
			MaxAttempts: 5,
			Retryable:   func(err error) bool { return !errors.Is(err, errFatal) },
		}, func(context.Context, int) (int, error) {
			calls++
			return 0, errFatal
		})

		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_, _ = Do(context.Background(), Policy{}, func(context.Context, int) (int, error) {
			calls++
			return 0, errFlaky
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation interrupts the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		start := time.Now()

		_, err := Do(ctx, Policy{MaxAttempts: 3, Delay: time.Hour}, func(context.Context, int) (int, error) {
			calls++
			cancel()
			return 0, errFlaky
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), time.Second)
	})
}
