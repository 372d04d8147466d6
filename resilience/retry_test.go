package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

func quick(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond}
}

// failing returns an fn that fails with err for the first n calls.
func failing(n int, err error, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= n {
			return "", err
		}
		return "ok", nil
	}
}

func TestRetry(t *testing.T) {
	transient := stderrors.New("connection reset")

	tests := []struct {
		name      string
		cfg       RetryConfig
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{"first attempt", quick(3), 0, transient, 1, false},
		{"recovers", quick(3), 2, transient, 3, false},
		{"exhausted", quick(3), 5, transient, 3, true},
		{"zero attempts defaults to three", quick(0), 5, transient, 3, true},
		{"non-retryable app error", quick(3), 5, errors.ConfigurationError("bad file", nil), 1, true},
		{"retryable app error", quick(3), 5, errors.SpecificationError("download failed", nil), 3, true},
		{"context error", quick(3), 5, context.Canceled, 1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			got, err := Retry(context.Background(), tc.cfg, failing(tc.failures, tc.err, &calls))
			if calls != tc.wantCalls {
				t.Errorf("expected %d calls, got %d", tc.wantCalls, calls)
			}
			if tc.wantErr {
				if !stderrors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil || got != "ok" {
				t.Fatalf("expected ok, got %q, %v", got, err)
			}
		})
	}
}

func TestRetry_CustomRetryIf(t *testing.T) {
	fatal := stderrors.New("fatal")
	cfg := quick(3)
	cfg.RetryIf = func(err error) bool { return !stderrors.Is(err, fatal) }

	calls := 0
	if _, err := Retry(context.Background(), cfg, failing(5, fatal, &calls)); !stderrors.Is(err, fatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_StopsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: 200 * time.Millisecond}
	calls := 0
	_, err := Retry(ctx, cfg, failing(10, stderrors.New("down"), &calls))
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the deadline to cut the first wait, got %d calls", calls)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var attempts []int
	cfg := quick(3)
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }

	calls := 0
	_, _ = Retry(context.Background(), cfg, failing(5, stderrors.New("down"), &calls))
	if diff := cmp.Diff([]int{1, 2}, attempts); diff != "" {
		t.Errorf("OnRetry attempts mismatch (-want +got):\n%s", diff)
	}
}

func TestDelay(t *testing.T) {
	tests := []struct {
		name string
		cfg  RetryConfig
		want []time.Duration
	}{
		{
			name: "exponential capped",
			cfg:  RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2},
			want: []time.Duration{
				100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
				800 * time.Millisecond, time.Second, time.Second,
			},
		},
		{
			name: "specification window",
			cfg:  DefaultRetryConfig(),
			want: []time.Duration{4 * time.Second, 4 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := make([]time.Duration, len(tc.want))
			for i := range got {
				got[i] = tc.cfg.delay(i + 1)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("delays mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
