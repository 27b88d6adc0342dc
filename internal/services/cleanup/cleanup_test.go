package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"budgetauth/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

type fakeLedger struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *fakeLedger) SweepTokens(ctx context.Context, now time.Time, maxAge time.Duration) (models.SweepResult, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return models.SweepResult{}, errors.New("store down")
	}
	return models.SweepResult{Invalidated: 1, Purged: 2}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForCalls(t *testing.T, ledger *fakeLedger, want int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for ledger.calls.Load() < want {
		select {
		case <-deadline:
			t.Fatalf("expected %d sweep calls, got %d", want, ledger.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTriggerRunsSweep(t *testing.T) {
	ledger := &fakeLedger{}
	s := New(discardLogger(), ledger, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Trigger()
	waitForCalls(t, ledger, 1)
}

func TestIntervalRunsSweep(t *testing.T) {
	ledger := &fakeLedger{}
	s := New(discardLogger(), ledger, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForCalls(t, ledger, 2)
}

func TestSweepFailureDoesNotStopLoop(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.fail.Store(true)
	s := New(discardLogger(), ledger, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Trigger()
	waitForCalls(t, ledger, 1)

	ledger.fail.Store(false)
	s.Trigger()
	waitForCalls(t, ledger, 2)
}

func TestTriggerCollapsesWhileQueued(t *testing.T) {
	s := New(discardLogger(), &fakeLedger{}, time.Hour, time.Hour)

	// No worker running: the second trigger must not block.
	s.Trigger()
	done := make(chan struct{})
	go func() {
		s.Trigger()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked on a full queue")
	}

	assert.Len(t, s.trigger, 1)
}
