// Package forecast implements the calendar projection engine: occurrence
// generation for recurring records, day-ledger assembly with reconciliation
// against actual transactions, running-balance computation, pressure-point
// detection, and month-to-month chaining into a year forecast.
package forecast

import (
	"errors"
	"fmt"
	"time"

	"undertow/internal/core"
)

// ErrUnsupportedFrequency is returned for a frequency value the generator
// does not know. A recurring record carrying a typo'd frequency surfaces
// here instead of silently producing no occurrences.
var ErrUnsupportedFrequency = errors.New("unsupported frequency")

// Generate expands a recurring start date into every occurrence within
// [rangeStart, rangeEnd], inclusive of both endpoints. All dates are
// normalized to midnight UTC, ascending. A zero startDate yields no
// occurrences. Pure function, safe for concurrent use.
//
// Weekly steps 7 days, biweekly 14, monthly one calendar month keeping the
// start date's day-of-month as anchor and clamping to the last day of
// shorter months (Jan 31 -> Feb 28 -> Mar 31).
func Generate(startDate, rangeStart, rangeEnd time.Time, freq core.Frequency) ([]time.Time, error) {
	if startDate.IsZero() {
		return nil, nil
	}
	if !freq.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, freq)
	}

	start := core.NormalizeDate(startDate)
	lo := core.NormalizeDate(rangeStart)
	hi := core.NormalizeDate(rangeEnd)
	if hi.Before(lo) {
		return nil, nil
	}

	var out []time.Time
	switch freq {
	case core.Weekly, core.Biweekly:
		step := 7
		if freq == core.Biweekly {
			step = 14
		}
		cur := start
		// Fast-forward to the range without emitting anything before it.
		for cur.Before(lo) {
			cur = cur.AddDate(0, 0, step)
		}
		for !cur.After(hi) {
			out = append(out, cur)
			cur = cur.AddDate(0, 0, step)
		}
	case core.Monthly:
		anchor := start.Day()
		year, month := start.Year(), int(start.Month())
		cur := start
		for cur.Before(lo) {
			month++
			cur = monthlyOccurrence(year, month, anchor)
		}
		for !cur.After(hi) {
			out = append(out, cur)
			month++
			cur = monthlyOccurrence(year, month, anchor)
		}
	}
	return out, nil
}

// monthlyOccurrence places the anchor day in the given month, clamped to the
// month's last day. Month values beyond 12 roll into following years.
func monthlyOccurrence(year, month, anchor int) time.Time {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	day := anchor
	if last := core.DaysInMonth(first.Year(), int(first.Month())); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
