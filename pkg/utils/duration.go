package utils

import (
	"fmt"
	"strings"
)

var durationUnits = []struct {
	suffix  string
	seconds int64
}{
	{"년", 365 * 24 * 60 * 60},
	{"일", 24 * 60 * 60},
	{"시간", 60 * 60},
	{"분", 60},
	{"초", 1},
}

// FormatDuration renders seconds as "1년 2일 3시간 4분 5초", leaving out
// zero units. Zero (or negative) input renders as "0초".
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	var parts []string
	for _, unit := range durationUnits {
		value := totalSeconds / unit.seconds
		totalSeconds %= unit.seconds
		if value > 0 || (unit.seconds == 1 && len(parts) == 0) {
			parts = append(parts, fmt.Sprintf("%d%s", value, unit.suffix))
		}
	}
	return strings.Join(parts, " ")
}
