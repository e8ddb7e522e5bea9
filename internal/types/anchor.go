package types

import "time"

// daysIn returns the number of days of the month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AnchorInMonth returns the anchor date of the given month. An anchor day past the end
// of the month is clamped to the month's last day (anchor 31 bills on Feb 28/29).
func AnchorInMonth(year int, month time.Month, anchorDay int) Date {
	first := NewDate(year, month, 1)
	day := min(max(anchorDay, 1), daysIn(first.Year, first.Month))
	return Date{Year: first.Year, Month: first.Month, Day: day}
}

// AnchorOnOrBefore returns the latest anchor date that is not after the given date.
func AnchorOnOrBefore(d Date, anchorDay int) Date {
	anchor := AnchorInMonth(d.Year, d.Month, anchorDay)
	if anchor.After(d) {
		return AnchorInMonth(d.Year, d.Month-1, anchorDay)
	}
	return anchor
}

// NextAnchorAfter returns the first anchor date strictly after the given date.
func NextAnchorAfter(d Date, anchorDay int) Date {
	anchor := AnchorInMonth(d.Year, d.Month, anchorDay)
	if anchor.After(d) {
		return anchor
	}
	return AnchorInMonth(d.Year, d.Month+1, anchorDay)
}

// AnchorsBetween lists the anchor dates in (from, to], oldest first.
func AnchorsBetween(from, to Date, anchorDay int) []Date {
	var out []Date
	for next := NextAnchorAfter(from, anchorDay); !next.After(to); next = NextAnchorAfter(next, anchorDay) {
		out = append(out, next)
	}
	return out
}
