package dashboard

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for window boundaries.
const DateLayout = "2006-01-02"

// RecentPeriod returns the inclusive window ending today and spanning the
// given number of days. Days below 1 are treated as 1.
func RecentPeriod(days int) (time.Time, time.Time) {
	return recentPeriodFrom(time.Now(), days)
}

func recentPeriodFrom(now time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -(days - 1))
	return start, end
}

// ResolveWindow completes a possibly partial start/end pair. A missing
// boundary is derived from the other one and the window length; when both are
// missing the window ends today. Dates use DateLayout.
func ResolveWindow(start, end string, windowDays int) (time.Time, time.Time, error) {
	if windowDays < 1 {
		windowDays = 1
	}

	var parsedStart, parsedEnd time.Time
	var err error
	if start != "" {
		parsedStart, err = time.Parse(DateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
	}
	if end != "" {
		parsedEnd, err = time.Parse(DateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
	}

	switch {
	case !parsedStart.IsZero() && parsedEnd.IsZero():
		parsedEnd = parsedStart.AddDate(0, 0, windowDays-1)
	case parsedStart.IsZero() && !parsedEnd.IsZero():
		parsedStart = parsedEnd.AddDate(0, 0, -(windowDays - 1))
	case parsedStart.IsZero() && parsedEnd.IsZero():
		parsedStart, parsedEnd = RecentPeriod(windowDays)
	}

	if parsedEnd.Before(parsedStart) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s precedes start %s", parsedEnd.Format(DateLayout), parsedStart.Format(DateLayout))
	}
	return parsedStart, parsedEnd, nil
}

// YearAgo returns the same calendar date one year earlier. February 29th has
// no prior-year counterpart and falls back to subtracting 365 days.
func YearAgo(day time.Time) time.Time {
	prior := time.Date(day.Year()-1, day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if prior.Month() != day.Month() {
		return day.AddDate(0, 0, -365)
	}
	return prior
}
