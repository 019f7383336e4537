package panel

import (
	"testing"
	"time"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0h 0m"},
		{59 * time.Second, "0h 0m"},
		{61 * time.Minute, "1h 1m"},
		{25*time.Hour + 30*time.Minute, "25h 30m"},
		{-time.Minute, "0h 0m"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.d); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestConfidenceHelpers(t *testing.T) {
	if got := Percent(0.856); got != "86%" {
		t.Errorf("Percent = %q", got)
	}
	for f, want := range map[float64]string{0.95: "high", 0.8: "high", 0.65: "medium", 0.2: "low"} {
		if got := ConfidenceLevel(f); got != want {
			t.Errorf("ConfidenceLevel(%v) = %q, want %q", f, got, want)
		}
	}
	if got := Capitalize("glass_break"); got != "Glass_break" {
		t.Errorf("Capitalize = %q", got)
	}
	if got := Capitalize(""); got != "" {
		t.Errorf("Capitalize(\"\") = %q", got)
	}
	class := "traffic"
	if ProlongedClass(nil) != "None" || ProlongedClass(&class) != "traffic" {
		t.Error("ProlongedClass")
	}
}
