package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestDo_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	var notified []int
	err := Do(context.Background(), Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Notify: func(attempt int, _ time.Duration, _ error) {
			notified = append(notified, attempt)
		},
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Errorf("notified = %v, want [1 2]", notified)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}, func(context.Context) error {
		calls++
		return statusErr(404)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.StatusCode() != 404 {
		t.Errorf("Do() error = %v, want status 404", err)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, func(context.Context) error {
		calls++
		return statusErr(429)
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !IsRateLimited(err) {
		t.Errorf("Do() error = %v, want rate limited", err)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, func(context.Context) error {
		calls++
		return statusErr(500)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, InitialBackoff: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return statusErr(502)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{statusErr(500), true},
		{statusErr(504), true},
		{statusErr(401), false},
		{statusErr(404), false},
		{statusErr(429), false},
		{fmt.Errorf("wrapped: %w", statusErr(502)), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("something else"), false},
		{context.Canceled, false},
	}

	for _, tc := range testCases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
