package authapi

import (
	"testing"
	"time"
)

var throttleNow = time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC)

// failuresAgo builds a failure list from offsets back in time, newest first.
func failuresAgo(offsets ...time.Duration) []time.Time {
	out := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, throttleNow.Add(-off))
	}
	return out
}

func TestEvaluateWindowThrottle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		failures  []time.Time
		max       int
		window    time.Duration
		wantBlock bool
		wantRetry time.Duration
	}{
		{
			name:      "blocks at threshold, retry from oldest in window",
			failures:  failuresAgo(time.Minute, 2*time.Minute, 6*time.Minute),
			max:       2,
			window:    5 * time.Minute,
			wantBlock: true,
			wantRetry: 3 * time.Minute,
		},
		{
			name:     "old failures fall out of the window",
			failures: failuresAgo(time.Minute, 2*time.Minute, 6*time.Minute),
			max:      3,
			window:   5 * time.Minute,
		},
		{
			name:      "exactly max in window blocks",
			failures:  failuresAgo(time.Minute, 4*time.Minute),
			max:       2,
			window:    5 * time.Minute,
			wantBlock: true,
			wantRetry: time.Minute,
		},
		{
			name:     "no failures",
			failures: nil,
			max:      1,
			window:   5 * time.Minute,
		},
		{
			name:     "disabled when max is zero",
			failures: failuresAgo(time.Second, 2*time.Second, 3*time.Second),
			max:      0,
			window:   5 * time.Minute,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			blocked, retry := evaluateWindowThrottle(throttleNow, tc.failures, tc.max, tc.window)
			if blocked != tc.wantBlock {
				t.Fatalf("blocked=%v want=%v", blocked, tc.wantBlock)
			}
			if retry != tc.wantRetry {
				t.Fatalf("retry=%v want=%v", retry, tc.wantRetry)
			}
		})
	}
}

func TestEvaluateProgressiveLockout(t *testing.T) {
	t.Parallel()

	tiers := []lockoutTier{
		{Threshold: 20, Duration: 2 * time.Hour},
		{Threshold: 10, Duration: 30 * time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
	}

	t.Run("short tier counts from newest failure", func(t *testing.T) {
		t.Parallel()
		failures := failuresAgo(30*time.Second, time.Minute, 2*time.Minute, 3*time.Minute, 4*time.Minute)
		blocked, retry := evaluateProgressiveLockout(throttleNow, failures, tiers)
		if !blocked {
			t.Fatalf("expected short-tier lockout")
		}
		if want := 4*time.Minute + 30*time.Second; retry != want {
			t.Fatalf("retry=%v want=%v", retry, want)
		}
	})

	t.Run("lockout clears once the duration elapses", func(t *testing.T) {
		t.Parallel()
		failures := failuresAgo(6*time.Minute, 7*time.Minute, 8*time.Minute, 9*time.Minute, 10*time.Minute)
		blocked, retry := evaluateProgressiveLockout(throttleNow, failures, tiers[2:])
		if blocked || retry != 0 {
			t.Fatalf("expected cleared lockout, got blocked=%v retry=%v", blocked, retry)
		}
	})

	t.Run("most severe matching tier wins", func(t *testing.T) {
		t.Parallel()
		offsets := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			offsets = append(offsets, time.Duration(i+1)*time.Minute)
		}
		failures := failuresAgo(offsets...)

		blocked, retry := evaluateProgressiveLockout(throttleNow, failures, tiers)
		if !blocked {
			t.Fatalf("expected severe-tier lockout")
		}
		// Newest failure is 1m ago; two hours on from it.
		if want := 2*time.Hour - time.Minute; retry != want {
			t.Fatalf("retry=%v want=%v", retry, want)
		}
	})

	t.Run("newest failure found regardless of order", func(t *testing.T) {
		t.Parallel()
		failures := failuresAgo(4*time.Minute, 3*time.Minute, 30*time.Second, 2*time.Minute, time.Minute)
		blocked, retry := evaluateProgressiveLockout(throttleNow, failures, tiers)
		if !blocked {
			t.Fatalf("expected lockout")
		}
		if want := 4*time.Minute + 30*time.Second; retry != want {
			t.Fatalf("retry=%v want=%v", retry, want)
		}
	})

	t.Run("no failures never blocks", func(t *testing.T) {
		t.Parallel()
		if blocked, _ := evaluateProgressiveLockout(throttleNow, nil, tiers); blocked {
			t.Fatalf("empty history must not block")
		}
	})
}
