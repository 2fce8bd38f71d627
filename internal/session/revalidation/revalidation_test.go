package revalidation

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := DefaultFreshnessWindow

	testCases := []struct {
		name string
		now  time.Time
		want Path
	}{
		{"same instant", issued, FastPath},
		{"one second before window", issued.Add(w - time.Second), FastPath},
		{"exactly at window", issued.Add(w), SlowPath},
		{"one second after window", issued.Add(w + time.Second), SlowPath},
		{"days later", issued.Add(72 * time.Hour), SlowPath},
		{"issued in the future", issued.Add(-time.Second), SlowPath},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(issued, tc.now, w); got != tc.want {
				t.Errorf("Decide = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecide_CustomAndInvalidWindow(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := Decide(issued, issued.Add(5*time.Second), 5*time.Second); got != SlowPath {
		t.Errorf("5s window at 5s = %v, want slow", got)
	}
	if got := Decide(issued, issued.Add(10*time.Second), 0); got != FastPath {
		t.Errorf("zero window should fall back to the default, got %v", got)
	}
}

func TestPathString(t *testing.T) {
	if FastPath.String() != "fast" || SlowPath.String() != "slow" {
		t.Errorf("String() = %q/%q", FastPath.String(), SlowPath.String())
	}
}
