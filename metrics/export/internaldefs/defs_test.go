package internaldefs

import (
	"testing"
	"time"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

func TestBucketLabels(t *testing.T) {
	bounds := efficio.HashLatencyBounds[:]
	wantLe := []string{"0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "1", "+Inf"}
	wantSuffix := []string{"0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "1", "inf"}

	for i := range wantLe {
		if got := LeLabel(bounds, i); got != wantLe[i] {
			t.Fatalf("LeLabel(%d) = %q, want %q", i, got, wantLe[i])
		}
		if got := NameSuffix(bounds, i); got != wantSuffix[i] {
			t.Fatalf("NameSuffix(%d) = %q, want %q", i, got, wantSuffix[i])
		}
	}
}

func TestCumulative(t *testing.T) {
	bounds := []time.Duration{time.Millisecond, time.Second}

	got := Cumulative(efficio.HistogramSnapshot{Counts: []uint64{1, 2, 3}}, bounds)
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 6 {
		t.Fatalf("unexpected cumulative %v", got)
	}

	got = Cumulative(efficio.HistogramSnapshot{}, bounds)
	if len(got) != 3 || got[2] != 0 {
		t.Fatalf("missing histogram should render zeros, got %v", got)
	}

	got = Cumulative(efficio.HistogramSnapshot{Counts: []uint64{1, 1, 1, 4}}, bounds)
	if got[2] != 7 {
		t.Fatalf("overflow buckets should fold into +Inf, got %v", got)
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(1500 * time.Millisecond); got != "1.5" {
		t.Fatalf("Seconds = %q", got)
	}
	if got := Seconds(0); got != "0" {
		t.Fatalf("Seconds(0) = %q", got)
	}
}
