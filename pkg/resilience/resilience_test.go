package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry(t *testing.T) {
	transient := errors.New("transient")
	tests := []struct {
		name      string
		failures  int
		err       error
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"succeeds first time", 0, transient, 3, 1, false},
		{"succeeds after retries", 2, transient, 3, 3, false},
		{"exhausts attempts", 5, transient, 3, 3, true},
		{"open circuit is not retried", 5, ErrCircuitOpen, 3, 1, true},
		{"attempt timeout is retried", 1, qerrors.ErrTimeout, 3, 2, false},
		{"caller deadline is not retried", 5, context.DeadlineExceeded, 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), "op", fastRetry(tt.attempts), func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tt.err) {
				t.Errorf("err = %v does not wrap %v", err, tt.err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetry_OnRetryAndCustomRetryable(t *testing.T) {
	permanent := errors.New("bad row")
	var retried []int
	cfg := fastRetry(4)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	calls := 0
	err := Retry(context.Background(), "op", cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("reset")
		}
		return permanent
	})
	if err != permanent {
		t.Errorf("err = %v, want the unwrapped permanent error", err)
	}
	if calls != 3 || len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("calls = %d, retried after %v; want 3 calls, retries after [1 2]", calls, retried)
	}
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, "op", fastRetry(5), func() error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("err = %v after %d calls, want context.Canceled after 1", err, calls)
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterFraction: 0.1}.withDefaults()
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		d := cfg.delay(tt.attempt)
		lo, hi := tt.base*9/10, tt.base*11/10
		if d < lo || d > hi {
			t.Errorf("delay(%d) = %v, want within [%v, %v]", tt.attempt, d, lo, hi)
		}
	}
}

// fakeClock lets breaker tests move past ResetTimeout without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("store", cfg)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	var changes []State
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, _, to State) { changes = append(changes, to) },
	})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Execute = %v", err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}
	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open breaker let a call through: %v", err)
	}
	if c := cb.Counts(); c.Failures != 2 || c.Rejected != 1 {
		t.Errorf("counts = %+v, want 2 failures and 1 rejection", c)
	}

	clock.advance(time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.GetState())
	}
	if c := cb.Counts(); c != (Counts{}) {
		t.Errorf("counts after closing = %+v, want zero", c)
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, changes[i], want[i])
		}
	}
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	clock.advance(time.Second)
	if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("trial = %v, want boom", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}
	// The cool-down restarts from the failed trial.
	clock.advance(500 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenAdmitsOneTrial(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	cb.Execute(func() error { return errors.New("boom") })
	clock.advance(time.Second)

	var inner error
	err := cb.Execute(func() error {
		inner = cb.Execute(func() error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("trial: %v", err)
	}
	if !errors.Is(inner, ErrCircuitOpen) {
		t.Errorf("second call during trial = %v, want ErrCircuitOpen", inner)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.GetState())
	}
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	notFound := errors.New("no such document")
	tests := []struct {
		name      string
		isFailure func(error) bool
		err       error
	}{
		{"cancelled caller", nil, context.Canceled},
		{"classified as data error", func(err error) bool { return !errors.Is(err, notFound) }, notFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, IsFailure: tt.isFailure})
			for i := 0; i < 3; i++ {
				if err := cb.Execute(func() error { return tt.err }); !errors.Is(err, tt.err) {
					t.Fatalf("Execute = %v, want %v", err, tt.err)
				}
			}
			if cb.GetState() != StateClosed {
				t.Errorf("state = %s, want closed", cb.GetState())
			}
			if c := cb.Counts(); c.Failures != 0 || c.Requests != 3 {
				t.Errorf("counts = %+v, want 3 requests and no failures", c)
			}
		})
	}
}

func TestCircuitBreaker_SuccessResetsStreak(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	boom := errors.New("boom")
	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return boom })
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed", cb.GetState())
	}
	if c := cb.Counts(); c.ConsecutiveFailures != 1 || c.Failures != 2 {
		t.Errorf("counts = %+v, want streak 1 of 2 failures", c)
	}
}

func TestWithTimeout(t *testing.T) {
	waitForDone := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	t.Run("attempt deadline", func(t *testing.T) {
		err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", waitForDone)
		if !errors.Is(err, qerrors.ErrTimeout) {
			t.Fatalf("err = %v, want ErrTimeout", err)
		}
		if !IsRetryable(err) {
			t.Errorf("attempt timeout %v is not retryable", err)
		}
		if qerrors.HTTPStatusCode(err) != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", qerrors.HTTPStatusCode(err))
		}
	})

	t.Run("caller cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithTimeout(ctx, time.Second, "cancelled", waitForDone)
		if !errors.Is(err, context.Canceled) || errors.Is(err, qerrors.ErrTimeout) {
			t.Errorf("err = %v, want context.Canceled only", err)
		}
		if IsRetryable(err) {
			t.Errorf("caller cancellation %v is retryable", err)
		}
	})

	t.Run("returns before finishing", func(t *testing.T) {
		finished := false
		WithTimeout(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			finished = true
			return ctx.Err()
		})
		if !finished {
			t.Error("WithTimeout returned while the attempt was still running")
		}
	})

	t.Run("fast call", func(t *testing.T) {
		if err := WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }); err != nil {
			t.Errorf("fast call: %v", err)
		}
	})
}
