package utils

import (
	"fmt"
	"time"
)

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TimeAgo renders the age of a millisecond timestamp for the session list.
func TimeAgo(ts int64, now time.Time) string {
	diff := now.UnixMilli() - ts
	if diff < 0 {
		diff = 0
	}
	secs := diff / 1000
	switch {
	case secs < 2:
		return "Just now"
	case secs < 60:
		return fmt.Sprintf("%d seconds ago", secs)
	case secs < 3600:
		return plural(secs/60, "minute")
	case secs < 86400:
		return plural(secs/3600, "hour")
	default:
		return plural(secs/86400, "day")
	}
}

// LastOnline renders a device's lastOnline timestamp.
func LastOnline(ts int64, now time.Time) string {
	if ts <= 0 {
		return "Never"
	}
	diff := now.UnixMilli() - ts
	if diff < 0 {
		diff = 0
	}
	mins := diff / 60000
	hours := mins / 60
	days := hours / 24
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%d min ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d hr ago", hours)
	case days == 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
