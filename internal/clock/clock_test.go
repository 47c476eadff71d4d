package clock_test

import (
	"testing"
	"time"

	"learn.admission/internal/clock"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
	if got := c.Advance(250 * time.Millisecond); !got.Equal(start.Add(250 * time.Millisecond)) {
		t.Fatalf("Advance returned %v", got)
	}
	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Set did not move the clock back: %v", got)
	}
}

func TestClampAndElapsed(t *testing.T) {
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	earlier := base.Add(-time.Second)

	if got := clock.Clamp(earlier, base); !got.Equal(base) {
		t.Errorf("Clamp(earlier, base) = %v, want %v", got, base)
	}
	if got := clock.Clamp(base.Add(time.Second), base); !got.Equal(base.Add(time.Second)) {
		t.Errorf("Clamp moved a later time: %v", got)
	}
	if got := clock.Elapsed(earlier, base); got != 0 {
		t.Errorf("Elapsed for regressed clock = %v, want 0", got)
	}
	if got := clock.Elapsed(base.Add(time.Second), base); got != time.Second {
		t.Errorf("Elapsed = %v, want 1s", got)
	}
}

func TestFuncClock(t *testing.T) {
	fixed := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	c := clock.Func(func() time.Time { return fixed })
	if !c.Now().Equal(fixed) {
		t.Fatal("Func clock did not return the fixed time")
	}
}
