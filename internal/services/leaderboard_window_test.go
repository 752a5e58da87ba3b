package services

import (
	"errors"
	"testing"
	"time"

	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyWindow(t *testing.T) {
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	sundayEnd := time.Date(2024, 3, 17, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	tests := []struct {
		name string
		now  time.Time
	}{
		{"monday midnight", monday},
		{"wednesday noon", time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)},
		{"sunday last millisecond", sundayEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WeeklyWindow(tt.now)
			assert.Equal(t, monday, w.From)
			assert.Equal(t, sundayEnd, w.To)
			assert.True(t, w.Contains(tt.now))
		})
	}

	t.Run("boundaries are inclusive", func(t *testing.T) {
		w := WeeklyWindow(monday)
		assert.True(t, w.Contains(monday))
		assert.True(t, w.Contains(sundayEnd))
		assert.False(t, w.Contains(monday.Add(-time.Millisecond)))
		assert.False(t, w.Contains(sundayEnd.Add(time.Millisecond)))
	})

	t.Run("week spanning a month boundary", func(t *testing.T) {
		w := WeeklyWindow(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), w.From)
		assert.Equal(t, time.Date(2024, 3, 3, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.To)
	})
}

func TestMonthlyWindow(t *testing.T) {
	t.Run("leap february", func(t *testing.T) {
		w := MonthlyWindow(time.Date(2024, 2, 15, 8, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), w.From)
		assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.To)
	})

	t.Run("december", func(t *testing.T) {
		w := MonthlyWindow(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), w.From)
		assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.To)
	})

	t.Run("keeps location", func(t *testing.T) {
		loc := time.FixedZone("EAT", 3*60*60)
		w := MonthlyWindow(time.Date(2024, 6, 10, 1, 0, 0, 0, loc))
		assert.Equal(t, loc, w.From.Location())
		assert.Equal(t, 1, w.From.Day())
	})
}

func TestWindowFor(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	w, err := WindowFor(models.LeaderboardWeekly, now)
	require.NoError(t, err)
	assert.Equal(t, WeeklyWindow(now), w)

	w, err = WindowFor(models.LeaderboardMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, MonthlyWindow(now), w)

	_, err = WindowFor("daily", now)
	assert.True(t, errors.Is(err, models.ErrValidation))
}
