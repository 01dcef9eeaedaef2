package sched

import (
	"context"
	"testing"
	"time"
)

func TestFakeAdvanceFiresTicker(t *testing.T) {
	clk := NewFake(time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC))
	ticker := clk.NewTicker(time.Second)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before time advanced")
	default:
	}

	clk.Advance(time.Second)
	select {
	case now := <-ticker.C():
		if now.Second() != 1 {
			t.Fatalf("tick at %v", now)
		}
	default:
		t.Fatal("ticker did not fire after a full period")
	}
}

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	if err := clk.Sleep(context.Background(), time.Minute); err != nil {
		t.Fatal(err)
	}
	if got := clk.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Fatalf("now = %v, want %v", got, start.Add(time.Minute))
	}
}

func TestFakeSleepCancelledContext(t *testing.T) {
	clk := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := clk.Sleep(ctx, time.Minute); err == nil {
		t.Fatal("sleep on cancelled context returned nil")
	}
}

func TestLoopRunsImmediatelyAndOnTicks(t *testing.T) {
	clk := NewFake(time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan time.Time, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Loop(ctx, clk, time.Second, func(now time.Time) { calls <- now })
	}()

	// First invocation happens before any tick.
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not run immediately")
	}

	// The ticker is registered right after the first invocation; keep
	// advancing until the tick lands.
	deadline := time.After(2 * time.Second)
	for fired := false; !fired; {
		clk.Advance(time.Second)
		select {
		case <-calls:
			fired = true
		case <-deadline:
			t.Fatal("loop did not run on tick")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}
