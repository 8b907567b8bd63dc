package jobs

import (
	"testing"
	"time"
)

func TestRetryBackoffGrowth(t *testing.T) {
	base := 1 * time.Second
	capD := 600 * time.Second
	noJitter := func() float64 { return 0 }

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{9, 512 * time.Second},
		{10, 600 * time.Second},
		{30, 600 * time.Second},
	}
	for _, c := range cases {
		got := RetryBackoff(base, capD, c.attempt, noJitter)
		if got != c.want {
			t.Errorf("attempt=%d: got %v want %v", c.attempt, got, c.want)
		}
	}
}

func TestRetryBackoffJitterBounds(t *testing.T) {
	base := 1 * time.Second
	capD := 600 * time.Second

	almostOne := func() float64 { return 0.999999 }
	got := RetryBackoff(base, capD, 0, almostOne)
	if got < base || got >= base+base {
		t.Errorf("jitter out of [base, 2*base): %v", got)
	}

	half := func() float64 { return 0.5 }
	got = RetryBackoff(base, capD, 2, half)
	want := 4*time.Second + 500*time.Millisecond
	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestRetryBackoffCapWinsOverflow(t *testing.T) {
	got := RetryBackoff(1*time.Second, 600*time.Second, 100, nil)
	if got != 600*time.Second {
		t.Errorf("overflowing attempt should clamp to cap, got %v", got)
	}
}

func TestRetryBackoffDegenerateInputs(t *testing.T) {
	if got := RetryBackoff(0, 0, 0, nil); got != time.Second {
		t.Errorf("zero base should default to 1s, got %v", got)
	}
	if got := RetryBackoff(2*time.Second, time.Second, 0, nil); got != 2*time.Second {
		t.Errorf("cap below base should lift to base, got %v", got)
	}
	if got := RetryBackoff(time.Second, time.Minute, -3, nil); got != time.Second {
		t.Errorf("negative attempt should clamp to 0, got %v", got)
	}
}
