// Package series generates the future-dated clones of an expense record.
// Generation happens only at submission time; during editing the UI shows a
// count-only preview and never materializes the clones.
package series

import (
	"time"

	"expenseform/internal/core"
)

// Generate returns futureMonths clones of the base record, excluding the base
// itself. Each clone copies every field of the base except its identity and
// the date, which advances by one calendar month per clone relative to the
// base date. When the base day does not exist in a target month (day 31 in a
// 30-day month) the day clamps to the last valid day of that month.
func Generate(base core.CandidateRecord, futureMonths int) []core.CandidateRecord {
	if futureMonths <= 0 {
		return nil
	}
	clones := make([]core.CandidateRecord, 0, futureMonths)
	for i := 1; i <= futureMonths; i++ {
		clone := base.Clone()
		clone.ID = ""
		clone.Date = AddMonthsClamped(base.Date, i)
		clones = append(clones, clone)
	}
	return clones
}

// AddMonthsClamped advances the date by n calendar months, clamping the day
// to the last valid day of the target month. Unlike time.AddDate, it never
// rolls over into the following month (Jan 31 + 1 month is Feb 28, not Mar 3).
func AddMonthsClamped(d core.Date, n int) core.Date {
	year, month, day := d.Date()
	// First of the target month, then clamp the day.
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, d.Location())
	last := lastDayOfMonth(target.Year(), target.Month())
	if day > last {
		day = last
	}
	return core.Date{Time: time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, d.Location())}
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
