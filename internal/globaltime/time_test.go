package globaltime

import (
	"testing"
	"time"
)

func TestMockClock(t *testing.T) {
	fixed := time.Date(2025, 7, 1, 10, 20, 30, 0, time.FixedZone("PDT", -7*60*60))
	SetMockTime(fixed)
	t.Cleanup(ResetTime)

	if got := Now(); !got.Equal(fixed) {
		t.Fatalf("Now() = %v, want %v", got, fixed)
	}
	if got := UTC(); got.Location() != time.UTC || !got.Equal(fixed) {
		t.Fatalf("UTC() = %v", got)
	}
	if got := Since(fixed.Add(-time.Minute)); got != time.Minute {
		t.Fatalf("Since() = %v, want 1m", got)
	}
}

func TestSetNowFuncRestores(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	restoreFirst := SetNowFunc(func() time.Time { return first })
	t.Cleanup(ResetTime)
	restoreSecond := SetNowFunc(func() time.Time { return second })

	if !Now().Equal(second) {
		t.Fatalf("expected second clock")
	}
	restoreSecond()
	if !Now().Equal(first) {
		t.Fatalf("expected first clock after restore")
	}
	restoreFirst()
	if Now().Equal(first) {
		t.Fatalf("expected real clock after restoring everything")
	}
}
