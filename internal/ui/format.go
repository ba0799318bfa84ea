package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bamsammich/blockshot/internal/stats"
)

var rateUnits = [...]string{"B/s", "KiB/s", "MiB/s", "GiB/s", "TiB/s", "PiB/s"}

// FormatRate formats a bytes-per-second rate with binary units, matching
// FormatBytes. Three significant digits are kept below 100 of a unit.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	val, unit := bytesPerSec, 0
	for val >= 1024 && unit < len(rateUnits)-1 {
		val /= 1024
		unit++
	}
	switch {
	case unit == 0 || val >= 100:
		return fmt.Sprintf("%.0f %s", val, rateUnits[unit])
	case val >= 10:
		return fmt.Sprintf("%.1f %s", val, rateUnits[unit])
	default:
		return fmt.Sprintf("%.2f %s", val, rateUnits[unit])
	}
}

// FormatETA formats a remaining-time estimate; unknown estimates print "--".
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return FormatDuration(d)
}

// FormatDuration formats elapsed time concisely: 42s, 3m 07s, 1h 02m 03s.
func FormatDuration(d time.Duration) string {
	d = max(d, 0)
	total := int64(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, total/60%60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ProgressBar renders a bar of width cells, ▪ for done and □ for pending.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(min(max(pct, 0), 1) * float64(width))
	return strings.Repeat("▪", filled) + strings.Repeat("□", width-filled)
}

// FormatBytes wraps stats.FormatBytes for UI use.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// truncPath shortens a path to at most maxLen bytes, keeping its tail.
func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-maxLen+3:]
}
