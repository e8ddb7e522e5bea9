package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnchorInMonth_ClampsToMonthEnd(t *testing.T) {
	assert.Equal(t, MustParseDate("2026-02-28"), AnchorInMonth(2026, time.February, 31))
	assert.Equal(t, MustParseDate("2028-02-29"), AnchorInMonth(2028, time.February, 30))
	assert.Equal(t, MustParseDate("2026-04-30"), AnchorInMonth(2026, time.April, 31))
	assert.Equal(t, MustParseDate("2026-01-01"), AnchorInMonth(2026, time.January, 0))
	// month zero normalises to december of the previous year
	assert.Equal(t, MustParseDate("2025-12-15"), AnchorInMonth(2026, 0, 15))
}

func TestAnchorOnOrBefore(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		anchorDay int
		expected  string
	}{
		{name: "on the anchor day", date: "2026-03-10", anchorDay: 10, expected: "2026-03-10"},
		{name: "after the anchor day", date: "2026-03-25", anchorDay: 10, expected: "2026-03-10"},
		{name: "before the anchor day", date: "2026-03-05", anchorDay: 10, expected: "2026-02-10"},
		{name: "before the anchor day in january", date: "2026-01-05", anchorDay: 10, expected: "2025-12-10"},
		{name: "clamped anchor", date: "2026-03-01", anchorDay: 31, expected: "2026-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, MustParseDate(tt.expected), AnchorOnOrBefore(MustParseDate(tt.date), tt.anchorDay))
		})
	}
}

func TestNextAnchorAfter(t *testing.T) {
	assert.Equal(t, MustParseDate("2026-04-10"), NextAnchorAfter(MustParseDate("2026-03-10"), 10))
	assert.Equal(t, MustParseDate("2026-03-10"), NextAnchorAfter(MustParseDate("2026-03-09"), 10))
	assert.Equal(t, MustParseDate("2026-02-28"), NextAnchorAfter(MustParseDate("2026-01-31"), 31))
	assert.Equal(t, MustParseDate("2026-03-31"), NextAnchorAfter(MustParseDate("2026-02-28"), 31))
	assert.Equal(t, MustParseDate("2027-01-05"), NextAnchorAfter(MustParseDate("2026-12-05"), 5))
}

func TestAnchorsBetween(t *testing.T) {
	got := AnchorsBetween(MustParseDate("2026-01-10"), MustParseDate("2026-04-10"), 10)
	assert.Equal(t, []Date{
		MustParseDate("2026-02-10"),
		MustParseDate("2026-03-10"),
		MustParseDate("2026-04-10"),
	}, got)

	assert.Empty(t, AnchorsBetween(MustParseDate("2026-01-10"), MustParseDate("2026-02-09"), 10))
}

func TestDateIn_UsesSubscriptionTimezone(t *testing.T) {
	loc, err := LoadTimezone("ART")
	assert.NoError(t, err)

	// 01:30 UTC on the 10th is still the 9th in Buenos Aires
	instant := time.Date(2026, time.March, 10, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, MustParseDate("2026-03-09"), DateIn(instant, loc))
	assert.Equal(t, MustParseDate("2026-03-10"), DateIn(instant, time.UTC))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	assert.NoError(t, d.Scan(time.Date(2026, time.May, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, MustParseDate("2026-05-03"), d)

	assert.NoError(t, d.Scan("2026-06-07T00:00:00Z"))
	assert.Equal(t, MustParseDate("2026-06-07"), d)

	assert.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}
