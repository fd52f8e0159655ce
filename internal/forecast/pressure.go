package forecast

import (
	"sort"

	"undertow/internal/core"
)

// maxPressurePoints caps how many heavy-expense days a month reports.
const maxPressurePoints = 3

// PressurePoints ranks days by expense load and returns the heaviest ones,
// at most limit. Only days with a positive expense total qualify; ties keep
// ascending date order. Pure function over a completed day sequence.
func PressurePoints(days []core.DayLedger, limit int) []core.PressurePoint {
	var loaded []core.DayLedger
	for _, d := range days {
		if d.ExpenseTotal.Cents > 0 {
			loaded = append(loaded, d)
		}
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].ExpenseTotal.Cents > loaded[j].ExpenseTotal.Cents
	})

	if len(loaded) > limit {
		loaded = loaded[:limit]
	}

	points := make([]core.PressurePoint, len(loaded))
	for i, d := range loaded {
		points[i] = core.PressurePoint{
			Date:         d.Date,
			ExpenseTotal: d.ExpenseTotal,
			EndBalance:   d.EndBalance,
		}
	}
	return points
}
