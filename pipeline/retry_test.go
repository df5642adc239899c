package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(10 * time.Millisecond)
	b.Min = time.Millisecond

	calls := 0
	err := WithRetry(context.Background(), 5, b, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	b := NewBackoff(10 * time.Millisecond)
	b.Min = time.Millisecond

	calls := 0
	sentinel := errors.New("still down")
	err := WithRetry(context.Background(), 3, b, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want wrapped sentinel", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	b := NewBackoff(time.Minute)
	b.Min = time.Minute // the sleep must be interrupted, not served

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- WithRetry(ctx, 5, b, func(ctx context.Context) error {
			calls++
			return errors.New("down")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WithRetry kept sleeping through cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetryDefaultsAttempts(t *testing.T) {
	b := NewBackoff(10 * time.Millisecond)
	b.Min = time.Millisecond

	calls := 0
	_ = WithRetry(context.Background(), 0, b, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	if calls != 3 {
		t.Errorf("calls = %d, want default of 3", calls)
	}
}

func TestBackoffSchedule(t *testing.T) {
	b := NewBackoff(10 * time.Second)
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped
		10 * time.Second,
	}
	for i, w := range want {
		if got := b.Duration(); got != w {
			t.Errorf("delay[%d] = %s, want %s", i, got, w)
		}
	}
}
