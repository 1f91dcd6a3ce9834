package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSweeper_RunsImmediatelyThenOnInterval(t *testing.T) {
	var runs atomic.Int64
	sweeper := NewSweeper(20*time.Millisecond, func(context.Context) {
		runs.Add(1)
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweeps: got %d, want >= 3", runs.Load())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	<-done
}

func TestSweeper_StopsOnCancel(t *testing.T) {
	var runs atomic.Int64
	sweeper := NewSweeper(10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}

	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != settled {
		t.Error("sweeps continued after cancel")
	}
}
