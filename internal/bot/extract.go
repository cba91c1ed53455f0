package bot

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultDurationDays is assumed when no duration can be parsed.
const defaultDurationDays = 7

var (
	dayPattern  = regexp.MustCompile(`(\d+)\s*day`)
	weekPattern = regexp.MustCompile(`(\d+)\s*week`)
)

// ExtractStartDate resolves a best-effort start date from free text.
// "today" is now, "tomorrow" is now+24h, "monday" is the next Monday
// (never today, even when called on a Monday). Anything else defaults
// to tomorrow. Extraction never fails; the user is never blocked on a
// date they did not phrase the way we expect.
func ExtractStartDate(now time.Time, text string) time.Time {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "today"):
		return now
	case strings.Contains(lower, "tomorrow"):
		return now.Add(24 * time.Hour)
	case strings.Contains(lower, "monday"):
		daysUntilMonday := (8 - int(now.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		return now.Add(time.Duration(daysUntilMonday) * 24 * time.Hour)
	default:
		return now.Add(24 * time.Hour)
	}
}

// ExtractDuration resolves a best-effort duration in days from free
// text. "N day(s)" wins over "N week(s)"; weeks are multiplied by 7;
// unparseable input defaults to a week. Always positive.
func ExtractDuration(text string) int {
	lower := strings.ToLower(text)

	if m := dayPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if m := weekPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n * 7
		}
	}
	return defaultDurationDays
}

// formatStartTime phrases a start date relative to now for the commit
// confirmation message.
func formatStartTime(now, start time.Time) string {
	diffDays := int(math.Ceil(start.Sub(now).Hours() / 24))
	switch {
	case diffDays <= 0:
		return "today"
	case diffDays == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", diffDays)
	}
}
