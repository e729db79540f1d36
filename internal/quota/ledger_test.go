package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingStore struct{}

func (failingStore) Count(context.Context, Key) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Incr(context.Context, Key, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Decr(context.Context, Key) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLedgerConcurrentIncrementsAreNotLost(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), Config{}, nil)
	ctx := context.Background()

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := ledger.Increment(ctx, "u1", "lesson-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, ledger.GetCount(ctx, "u1", "lesson-1"))
	assert.Equal(t, 0, ledger.GetCount(ctx, "u1", "lesson-2"))
	assert.Equal(t, 0, ledger.GetCount(ctx, "u2", "lesson-1"))
}

func TestLedgerEffectiveCountAppliesFreeAllowance(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), DefaultConfig(), nil)
	ctx := context.Background()

	for raw := 1; raw <= 6; raw++ {
		got, err := ledger.Increment(ctx, "u1", "l1")
		require.NoError(t, err)
		require.Equal(t, raw, got)

		want := raw - 3
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, ledger.EffectiveCount(ctx, "u1", "l1"), "raw=%d", raw)
	}
}

func TestLedgerCustomAllowance(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), Config{FreeAllowance: -1}, nil)
	assert.Equal(t, 0, ledger.FreeAllowance())
	assert.Equal(t, 2, ledger.Effective(2))

	ledger = NewLedger(NewMemoryStore(), Config{FreeAllowance: 5}, nil)
	assert.Equal(t, 0, ledger.Effective(5))
	assert.Equal(t, 1, ledger.Effective(6))
}

func TestLedgerZeroAllowanceCountsEveryTurn(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), Config{FreeAllowance: 0}, nil)
	ctx := context.Background()

	assert.Equal(t, 0, ledger.FreeAllowance())
	_, err := ledger.Increment(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.EffectiveCount(ctx, "u1", "l1"))
}

func TestLedgerReleaseUndoesIncrement(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := ledger.Increment(ctx, "u1", "l1")
		require.NoError(t, err)
	}
	got, err := ledger.Release(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = ledger.Release(ctx, "u1", "l2")
	require.NoError(t, err)
	assert.Equal(t, 0, got, "release of an unknown key is a no-op")
	assert.Equal(t, 0, ledger.GetCount(ctx, "u1", "l2"))

	_, err = ledger.Release(ctx, "", "l1")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLedgerRecordsExpireAfterRetention(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ledger := NewLedger(store, Config{Retention: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := ledger.Increment(ctx, "u1", "l1")
		require.NoError(t, err)
	}
	assert.Equal(t, 4, ledger.GetCount(ctx, "u1", "l1"))

	now = now.Add(59 * time.Minute)
	assert.Equal(t, 4, ledger.GetCount(ctx, "u1", "l1"))

	now = now.Add(time.Minute)
	assert.Equal(t, 0, ledger.GetCount(ctx, "u1", "l1"))

	got, err := ledger.Increment(ctx, "u1", "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, got, "expired record starts over")
}

func TestLedgerFailsOpenOnBackendError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ledger := NewLedger(failingStore{}, Config{}, zap.New(core))
	ctx := context.Background()

	assert.Equal(t, 0, ledger.GetCount(ctx, "u1", "l1"))

	_, err := ledger.Increment(ctx, "u1", "l1")
	assert.Error(t, err)
	_, err = ledger.Release(ctx, "u1", "l1")
	assert.Error(t, err)
	assert.Equal(t, 3, logs.Len())
}

func TestLedgerRejectsIncompleteKey(t *testing.T) {
	ledger := NewLedger(NewMemoryStore(), Config{}, nil)
	_, err := ledger.Increment(context.Background(), "", "l1")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 0, ledger.GetCount(context.Background(), "u1", ""))
}
