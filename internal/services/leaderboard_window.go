package services

import (
	"time"

	"github.com/luxestay/hotel-booking-backend/internal/models"
)

// Window is an inclusive [From, To] time range
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window, both ends inclusive
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// WeeklyWindow returns Monday 00:00:00.000 through Sunday 23:59:59.999 of the
// ISO week containing now, in now's location.
func WeeklyWindow(now time.Time) Window {
	// time.Weekday has Sunday == 0; shift so Monday == 0
	offset := (int(now.Weekday()) + 6) % 7
	start := startOfDay(now).AddDate(0, 0, -offset)
	return Window{From: start, To: endOfDay(start.AddDate(0, 0, 6))}
}

// MonthlyWindow returns the first day 00:00:00.000 through the last day
// 23:59:59.999 of the month containing now, in now's location.
func MonthlyWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{From: start, To: endOfDay(start.AddDate(0, 1, -1))}
}

// WindowFor resolves a leaderboard period to its window
func WindowFor(period models.LeaderboardPeriod, now time.Time) (Window, error) {
	switch period {
	case models.LeaderboardWeekly:
		return WeeklyWindow(now), nil
	case models.LeaderboardMonthly:
		return MonthlyWindow(now), nil
	default:
		return Window{}, models.NewValidationError("period", "period must be 'weekly' or 'monthly'")
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
