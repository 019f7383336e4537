package panel

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// FormatUptime renders an active time as "<hours>h <minutes>m".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// Percent renders a fraction as a rounded percentage, e.g. 0.856 -> "86%".
func Percent(f float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(f*100)))
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// ConfidenceLevel buckets a detection confidence: "high" at 80% and above,
// "medium" from 60%, otherwise "low".
func ConfidenceLevel(f float64) string {
	switch pct := math.Round(f * 100); {
	case pct >= 80:
		return "high"
	case pct >= 60:
		return "medium"
	default:
		return "low"
	}
}

// ProlongedClass returns the detected class or "None".
func ProlongedClass(class *string) string {
	if class == nil || strings.TrimSpace(*class) == "" {
		return "None"
	}
	return *class
}
