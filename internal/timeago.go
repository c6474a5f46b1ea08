package internal

import (
	"fmt"
	"time"
)

// FormatTimeAgo renders how long ago sentAt was, in the coarsest unit that
// fits: seconds, minutes, hours, days. A diff of exactly one day renders as
// "1d ago" (the day branch is inclusive at its lower bound).
func FormatTimeAgo(sentAt, now time.Time) string {
	diff := now.Sub(sentAt).Seconds()
	if diff < 0 {
		diff = 0
	}
	switch {
	case diff < 60:
		return fmt.Sprintf("%ds ago", int(diff))
	case diff < 3600:
		return fmt.Sprintf("%dm ago", int(diff/60))
	case diff < 86400:
		return fmt.Sprintf("%dh ago", int(diff/3600))
	default:
		return fmt.Sprintf("%dd ago", int(diff/86400))
	}
}
