package forecast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"undertow/internal/core"
)

func TestBuildYearChainsMonthBalances(t *testing.T) {
	src := rentSource()
	src.paycheck = &core.PaycheckStream{
		Amount:    core.Money{Cents: 120000},
		Frequency: core.Biweekly,
		StartDate: date(2025, 1, 3),
	}
	b := NewBuilder(src, nil)

	forecast, err := b.BuildYear(context.Background(), 1, 2025, nil)
	require.NoError(t, err)
	require.Len(t, forecast.Months, 12)

	assert.Equal(t, 2025, forecast.Year)
	assert.Equal(t, int64(100000), forecast.Months[0].StartingBalance.Cents,
		"january starts from the stored balance")
	for m := 1; m < 12; m++ {
		assert.Equal(t,
			forecast.Months[m-1].Summary.EndingBalance.Cents,
			forecast.Months[m].StartingBalance.Cents,
			"month %d must start where month %d ended", m+1, m)
	}
	assert.Equal(t,
		forecast.Months[11].Summary.EndingBalance.Cents,
		forecast.Summary.EndingBalance.Cents)
}

func TestBuildYearAggregates(t *testing.T) {
	b := NewBuilder(rentSource(), nil)

	forecast, err := b.BuildYear(context.Background(), 1, 2025, nil)
	require.NoError(t, err)

	var totalIncome, totalExpenses int64
	lowest := forecast.Months[0].Summary.LowestBalance.Cents
	highest := forecast.Months[0].Summary.HighestBalance.Cents
	for _, m := range forecast.Months {
		totalIncome += m.Summary.TotalIncome.Cents
		totalExpenses += m.Summary.TotalExpenses.Cents
		if m.Summary.LowestBalance.Cents < lowest {
			lowest = m.Summary.LowestBalance.Cents
		}
		if m.Summary.HighestBalance.Cents > highest {
			highest = m.Summary.HighestBalance.Cents
		}
	}

	assert.Equal(t, totalIncome, forecast.Summary.TotalIncome.Cents)
	assert.Equal(t, totalExpenses, forecast.Summary.TotalExpenses.Cents)
	assert.Equal(t, totalIncome-totalExpenses, forecast.Summary.NetChange.Cents)
	assert.Equal(t, lowest, forecast.Summary.LowestBalance.Cents)
	assert.Equal(t, highest, forecast.Summary.HighestBalance.Cents)

	// Twelve months of rent and nothing else.
	assert.Equal(t, int64(12*50000), forecast.Summary.TotalExpenses.Cents)
}

func TestBuildYearOverrideSeedsJanuary(t *testing.T) {
	b := NewBuilder(rentSource(), nil)

	override := core.Money{Cents: 5000}
	forecast, err := b.BuildYear(context.Background(), 1, 2025, &override)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), forecast.Months[0].StartingBalance.Cents)
}

func TestBuildYearRejectsInvalidYear(t *testing.T) {
	b := NewBuilder(&stubSource{}, nil)
	_, err := b.BuildYear(context.Background(), 1, 10000, nil)
	assert.ErrorIs(t, err, core.ErrInvalidYear)
}
