package utils

import (
	"fmt"
	"math"
)

// FormatRoundedUnit renders seconds in the largest whole unit: 45s, 12m, 3h.
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%dm", seconds/60)
}

// FormatHours renders fractional hours as "2h 05m", or minutes alone below
// one hour.
func FormatHours(hours float64) string {
	minutes := int64(math.Round(math.Abs(hours) * 60))
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
