package forecast

import (
	"context"
	"fmt"

	"undertow/internal/core"
)

// BuildYear chains twelve month builds into a year forecast. Months run
// strictly in order: each month's starting balance is the previous month's
// ending balance, so there is nothing to parallelize. A failure in any month
// aborts the whole forecast; no partial result is returned.
func (b *Builder) BuildYear(ctx context.Context, userID int64, year int, startingBalanceOverride *core.Money) (core.YearForecast, error) {
	if err := core.ValidateYearMonth(year, 1); err != nil {
		return core.YearForecast{}, err
	}

	forecast := core.YearForecast{
		Year:   year,
		Months: make([]core.MonthProjection, 0, 12),
	}

	override := startingBalanceOverride
	var (
		totalIncome   int64
		totalExpenses int64
		lowest        *int64
		highest       *int64
		endingBalance int64
	)

	for m := 1; m <= 12; m++ {
		proj, err := b.BuildMonth(ctx, userID, year, m, override)
		if err != nil {
			return core.YearForecast{}, fmt.Errorf("build month %d/%d: %w", year, m, err)
		}
		forecast.Months = append(forecast.Months, proj)

		s := proj.Summary
		totalIncome += s.TotalIncome.Cents
		totalExpenses += s.TotalExpenses.Cents
		endingBalance = s.EndingBalance.Cents

		if lowest == nil || s.LowestBalance.Cents < *lowest {
			v := s.LowestBalance.Cents
			lowest = &v
		}
		if highest == nil || s.HighestBalance.Cents > *highest {
			v := s.HighestBalance.Cents
			highest = &v
		}

		// Next month starts from this month's ending balance.
		next := s.EndingBalance
		override = &next
	}

	forecast.Summary = core.MonthSummary{
		TotalIncome:    core.Money{Cents: totalIncome},
		TotalExpenses:  core.Money{Cents: totalExpenses},
		NetChange:      core.Money{Cents: totalIncome - totalExpenses},
		EndingBalance:  core.Money{Cents: endingBalance},
		LowestBalance:  core.Money{Cents: *lowest},
		HighestBalance: core.Money{Cents: *highest},
	}
	return forecast, nil
}
