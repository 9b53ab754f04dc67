package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "Slate-Tron/internal/errors"
)

func TestRetrierSucceedsWithoutSleep(t *testing.T) {
	var slept []time.Duration
	r := New(3, 500*time.Millisecond,
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)

	calls := 0
	err := r.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
	if len(slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", slept)
	}
}

func TestRetrierExhaustsWithBackoff(t *testing.T) {
	var slept []time.Duration
	r := New(3, 500*time.Millisecond,
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
		WithRandFloat(func() float64 { return 0 }),
	)

	boom := errors.New("boom")
	calls := 0
	err := r.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return boom
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeRetriesExhausted {
		t.Fatalf("expected RETRIES_EXHAUSTED, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(slept))
	}
	expected := []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}
	for i, d := range slept {
		if d < expected[i] {
			t.Fatalf("sleep %d shorter than minimum backoff: %v < %v", i, d, expected[i])
		}
	}
}

func TestRetrierJitterBounds(t *testing.T) {
	r := New(2, 400*time.Millisecond, WithRandFloat(func() float64 { return 0.9999 }))
	delay := r.backoff(1)
	if delay < 400*time.Millisecond {
		t.Fatalf("jitter must not shorten the delay: %v", delay)
	}
	if delay >= 500*time.Millisecond {
		t.Fatalf("jitter capped at 25%%: %v", delay)
	}
}

func TestRetrierStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(5, time.Millisecond, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	err := r.Do(ctx, "fetch", func(context.Context) error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPacerSkipsFirstWait(t *testing.T) {
	var slept []time.Duration
	p := NewPacer(time.Second)
	p.SetSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 paced waits, got %d", len(slept))
	}
	for _, d := range slept {
		if d != time.Second {
			t.Fatalf("unexpected pace delay: %v", d)
		}
	}

	p.Reset()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slept) != 2 {
		t.Fatalf("reset must skip the next wait, got %d sleeps", len(slept))
	}
}
