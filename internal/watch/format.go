package watch

import (
	"fmt"
	"time"
)

// FormatCountdown renders d as minutes:seconds, e.g. 540s -> "9:00".
// Negative durations render as "0:00".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
