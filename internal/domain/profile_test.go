package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyReadingDay_FirstDay(t *testing.T) {
	p := &UserReadingProfile{UserID: "user-1"}

	p.ApplyReadingDay("2026-03-02")

	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 1, p.MaxStreakDays)
	assert.Equal(t, 1, p.TotalReadingDays)
	assert.Equal(t, "2026-03-02", p.LastReadingDate)
}

func TestApplyReadingDay_SameDayIsNoOp(t *testing.T) {
	p := &UserReadingProfile{UserID: "user-1"}

	p.ApplyReadingDay("2026-03-02")
	p.ApplyReadingDay("2026-03-02")

	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 1, p.TotalReadingDays, "two sessions on one date count the day once")
}

func TestApplyReadingDay_ConsecutiveDaysExtendStreak(t *testing.T) {
	p := &UserReadingProfile{UserID: "user-1"}

	p.ApplyReadingDay("2026-03-02")
	p.ApplyReadingDay("2026-03-03")
	p.ApplyReadingDay("2026-03-04")

	assert.Equal(t, 3, p.CurrentStreakDays)
	assert.Equal(t, 3, p.MaxStreakDays)
	assert.Equal(t, 3, p.TotalReadingDays)
}

func TestApplyReadingDay_GapResetsStreak(t *testing.T) {
	p := &UserReadingProfile{UserID: "user-1"}

	p.ApplyReadingDay("2026-03-02")
	p.ApplyReadingDay("2026-03-03")
	p.ApplyReadingDay("2026-03-06")

	assert.Equal(t, 1, p.CurrentStreakDays, "a gap resets the streak")
	assert.Equal(t, 2, p.MaxStreakDays, "max streak survives the reset")
	assert.Equal(t, 3, p.TotalReadingDays, "distinct days keep counting")
}

func TestApplyReadingDay_MonthBoundary(t *testing.T) {
	p := &UserReadingProfile{UserID: "user-1"}

	p.ApplyReadingDay("2026-02-28")
	p.ApplyReadingDay("2026-03-01")

	assert.Equal(t, 2, p.CurrentStreakDays)
}

func TestApplyReadingDay_StaleDateIgnored(t *testing.T) {
	p := &UserReadingProfile{UserID: "user-1"}

	p.ApplyReadingDay("2026-03-05")
	p.ApplyReadingDay("2026-03-03")

	assert.Equal(t, 1, p.CurrentStreakDays)
	assert.Equal(t, 1, p.TotalReadingDays)
	assert.Equal(t, "2026-03-05", p.LastReadingDate)
}

func TestNextDate(t *testing.T) {
	assert.Equal(t, "2026-03-01", NextDate("2026-02-28"))
	assert.Equal(t, "2024-02-29", NextDate("2024-02-28"), "leap year")
	assert.Equal(t, "2027-01-01", NextDate("2026-12-31"))
	assert.Equal(t, "garbage", NextDate("garbage"), "malformed input passes through")
}
