package session

import "fmt"

// TimeAgo formats the gap between two Unix timestamps as a
// human-readable "time ago" string.
func TimeAgo(then, now int64) string {
	seconds := now - then
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 604800:
		return plural(seconds/86400, "day")
	case seconds < 2592000:
		return plural(seconds/604800, "week")
	default:
		return plural(seconds/2592000, "month")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Duration formats the span between two Unix timestamps compactly:
// "45s", "12m", "2h 05m".
func Duration(start, end int64) string {
	total := end - start
	if total < 0 {
		total = 0
	}

	switch {
	case total < 60:
		return fmt.Sprintf("%ds", total)
	case total < 3600:
		return fmt.Sprintf("%dm", total/60)
	default:
		hours := total / 3600
		minutes := (total % 3600) / 60
		if minutes > 0 {
			return fmt.Sprintf("%dh %02dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
}
