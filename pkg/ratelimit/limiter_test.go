package ratelimit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestState_Thresholds(t *testing.T) {
	tests := []struct {
		name         string
		remaining    int
		wantBlock    bool
		wantThrottle bool
		wantHealthy  bool
	}{
		{"healthy", 100, false, false, true},
		{"at healthy threshold", ErrorThresholdHealthy, false, false, true},
		{"degraded", 30, false, false, false},
		{"warning", 15, false, true, false},
		{"critical", 3, true, false, false},
		{"empty", 0, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{ErrorsRemaining: tt.remaining}
			s.UpdateHealth()

			if got := s.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := s.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
			if s.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", s.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	past := &State{ResetAt: time.Now().Add(-time.Minute)}
	if past.TimeUntilReset() != 0 {
		t.Error("TimeUntilReset() for a past reset should be 0")
	}

	future := &State{ResetAt: time.Now().Add(time.Minute)}
	if d := future.TimeUntilReset(); d <= 0 || d > time.Minute {
		t.Errorf("TimeUntilReset() = %v, want (0, 1m]", d)
	}
}

func TestLimiter_BlocksWhenBudgetCritical(t *testing.T) {
	l := New(Config{ErrorBudget: 6, BudgetWindow: time.Hour}, testLogger())
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() on fresh limiter = %v", err)
	}

	l.Report(errors.New("boom"))
	l.Report(errors.New("boom"))
	if err := l.Wait(ctx); !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("Wait() with 4 remaining = %v, want ErrBudgetExhausted", err)
	}
}

func TestLimiter_ReportIgnoresSuccess(t *testing.T) {
	l := New(Config{ErrorBudget: 10}, testLogger())
	l.Report(nil)
	if got := l.State().ErrorsRemaining; got != 10 {
		t.Errorf("ErrorsRemaining = %d, want 10", got)
	}
}

func TestLimiter_WindowResets(t *testing.T) {
	l := New(Config{ErrorBudget: 5, BudgetWindow: time.Minute}, testLogger())
	now := time.Now()
	l.now = func() time.Time { return now }
	l.state.ResetAt = now.Add(time.Minute)

	for i := 0; i < 5; i++ {
		l.Report(errors.New("boom"))
	}
	if got := l.State().ErrorsRemaining; got != 0 {
		t.Fatalf("ErrorsRemaining = %d, want 0", got)
	}

	now = now.Add(2 * time.Minute)
	if got := l.State().ErrorsRemaining; got != 5 {
		t.Errorf("ErrorsRemaining after window = %d, want 5", got)
	}
}

func TestLimiter_PacesRequests(t *testing.T) {
	l := New(Config{RequestsPerSecond: 20, Burst: 1}, testLogger())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	}
	// 1 burst token + 3 tokens at 20/s.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("4 calls took %v, want >= 100ms", elapsed)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.1, Burst: 1}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = l.Wait(ctx) // consumes the burst token
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the context ends before a token is available")
	}
}
