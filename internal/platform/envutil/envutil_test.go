package envutil

import (
	"testing"
	"time"
)

func TestHours(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 6 * time.Hour},
		{"12", 12 * time.Hour},
		{"0.5", 30 * time.Minute},
		{"-1", 6 * time.Hour},
		{"soon", 6 * time.Hour},
	}
	for _, tc := range cases {
		t.Setenv("CVETRACK_TEST_HOURS", tc.raw)
		if got := Hours("CVETRACK_TEST_HOURS", 6*time.Hour, nil); got != tc.want {
			t.Fatalf("Hours(%q): got=%v want=%v", tc.raw, got, tc.want)
		}
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("CVETRACK_TEST_INT", "50")
	t.Setenv("CVETRACK_TEST_BOOL", "off")
	if got := Int("CVETRACK_TEST_INT", 1, nil); got != 50 {
		t.Fatalf("Int: got=%d", got)
	}
	if got := Bool("CVETRACK_TEST_BOOL", true, nil); got {
		t.Fatalf("Bool: expected false")
	}
	if got := String("CVETRACK_TEST_MISSING", "dflt", nil); got != "dflt" {
		t.Fatalf("String default: got=%q", got)
	}
}
