package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T, window time.Duration, limit int64) *Gate {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, window, limit)
}

func TestFreshKeyAllowed(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	require.NoError(t, gate.Check(ctx, "1.2.3.4"))
}

func TestCheckWithoutRecordNeverDenies(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	// The seeded placeholder has count=0, so pure reads never trip the limit.
	require.NoError(t, gate.Check(ctx, "1.2.3.4"))
	require.NoError(t, gate.Check(ctx, "1.2.3.4"))
}

func TestSuccessTripsLimit(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	require.NoError(t, gate.Check(ctx, "1.2.3.4"))
	require.NoError(t, gate.Record(ctx, "1.2.3.4", OutcomeSuccess))

	err := gate.Check(ctx, "1.2.3.4")
	require.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestFailedAttemptsNeverDeny(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	for i := 0; i < 5; i++ {
		require.NoError(t, gate.Check(ctx, "5.6.7.8"))
		require.NoError(t, gate.Record(ctx, "5.6.7.8", OutcomeFailed))
	}
	require.NoError(t, gate.Check(ctx, "5.6.7.8"))
}

func TestFailureResetsCountAfterSuccess(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	require.NoError(t, gate.Check(ctx, "9.9.9.9"))
	require.NoError(t, gate.Record(ctx, "9.9.9.9", OutcomeSuccess))
	require.ErrorIs(t, gate.Check(ctx, "9.9.9.9"), ErrRateLimitExceeded)

	// A recorded failure resets the counter and unblocks the key.
	require.NoError(t, gate.Record(ctx, "9.9.9.9", OutcomeFailed))
	require.NoError(t, gate.Check(ctx, "9.9.9.9"))
}

func TestWindowExpiryResets(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	require.NoError(t, gate.Check(ctx, "4.4.4.4"))
	require.NoError(t, gate.Record(ctx, "4.4.4.4", OutcomeSuccess))
	require.ErrorIs(t, gate.Check(ctx, "4.4.4.4"), ErrRateLimitExceeded)

	// Move the clock past the window; the key is treated as never seen.
	gate.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.NoError(t, gate.Check(ctx, "4.4.4.4"))

	require.NoError(t, gate.Record(ctx, "4.4.4.4", OutcomeSuccess))
	require.ErrorIs(t, gate.Check(ctx, "4.4.4.4"), ErrRateLimitExceeded)
}

func TestKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t, time.Hour, 1)

	require.NoError(t, gate.Check(ctx, "1.1.1.1"))
	require.NoError(t, gate.Record(ctx, "1.1.1.1", OutcomeSuccess))
	require.ErrorIs(t, gate.Check(ctx, "1.1.1.1"), ErrRateLimitExceeded)

	require.NoError(t, gate.Check(ctx, "2.2.2.2"))
}
