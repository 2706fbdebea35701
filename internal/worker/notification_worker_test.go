package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type flakyRunner struct {
	calls atomic.Int32
	block chan struct{}
}

func (r *flakyRunner) Run(ctx context.Context) error {
	if r.calls.Add(1) == 1 {
		return errors.New("connection refused")
	}
	close(r.block)
	<-ctx.Done()
	return ctx.Err()
}

func TestStartRunnerRestartsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &flakyRunner{block: make(chan struct{})}
	done := StartRunner(ctx, "relay", runner, nil)

	select {
	case <-runner.block:
	case <-time.After(5 * time.Second):
		t.Fatal("runner was not restarted after failing")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	if got := runner.calls.Load(); got != 2 {
		t.Fatalf("Run called %d times, want 2", got)
	}
}
