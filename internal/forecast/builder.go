package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"undertow/internal/core"
	"undertow/internal/log"
)

// Warning labels attached to a projection when a record-store fetch degrades
// to an empty default. Callers use these to tell true zero from missing data.
const (
	WarnRecurringUnavailable    = "recurring definitions unavailable"
	WarnPaycheckUnavailable     = "paycheck stream unavailable"
	WarnBalanceUnavailable      = "starting balance unavailable"
	WarnTransactionsUnavailable = "transactions unavailable"
)

// Builder assembles month projections and year forecasts from a record
// snapshot. It holds no mutable state between calls; given the same snapshot
// a build is deterministic and side-effect free.
type Builder struct {
	source Source
	logger *log.Logger
}

func NewBuilder(source Source, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentForecast)
	}
	return &Builder{source: source, logger: logger}
}

// snapshot is the result of the four concurrent fetches for one month build.
type snapshot struct {
	recurring    []core.RecurringDefinition
	paycheck     *core.PaycheckStream
	startBalance *core.StartingBalance
	transactions []core.Transaction
	warnings     []string
}

// BuildMonth produces the day-by-day projection for one calendar month.
// A startingBalanceOverride, when non-nil, takes precedence over the stored
// starting balance record. Invalid year/month is rejected before any fetch.
func (b *Builder) BuildMonth(ctx context.Context, userID int64, year, month int, startingBalanceOverride *core.Money) (core.MonthProjection, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthProjection{}, err
	}

	firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(year, time.Month(month+1), 0, 0, 0, 0, 0, time.UTC)

	snap := b.fetch(ctx, userID, firstDay, lastDay)

	startingBalance := core.Money{}
	switch {
	case startingBalanceOverride != nil:
		startingBalance = *startingBalanceOverride
	case snap.startBalance != nil:
		startingBalance = snap.startBalance.Amount
	}

	daysInMonth := lastDay.Day()
	days := make([]core.DayLedger, daysInMonth)
	for d := 1; d <= daysInMonth; d++ {
		days[d-1] = core.DayLedger{
			Date:   time.Date(year, time.Month(month), d, 0, 0, 0, 0, time.UTC),
			Day:    d,
			Events: []core.CalendarEvent{},
		}
	}

	proj := core.MonthProjection{
		Year:            year,
		Month:           month,
		StartDate:       firstDay,
		EndDate:         lastDay,
		StartingBalance: startingBalance,
		Days:            days,
		Warnings:        snap.warnings,
	}

	// Days that already carry an actual of a given kind: projections of that
	// kind are skipped there, since actuals supersede them.
	actualIncome, actualExpense := actualKindSets(snap.transactions, firstDay, lastDay)

	for _, rec := range snap.recurring {
		occs, err := Generate(rec.StartDate, firstDay, lastDay, rec.Frequency)
		if err != nil {
			b.logger.WarnContext(ctx, "Skipping recurring definition",
				"id", rec.ID, "name", rec.Name, "frequency", rec.Frequency, "error", err)
			proj.Warnings = append(proj.Warnings,
				fmt.Sprintf("recurring %q skipped: %v", rec.Name, err))
			continue
		}
		ev := core.CalendarEvent{
			Kind:      rec.Kind,
			Name:      rec.Name,
			Amount:    rec.Amount,
			Projected: true,
			Source:    core.SourceRecurring,
			OriginID:  rec.ID,
		}
		placeProjected(proj.Days, occs, ev, actualIncome, actualExpense)
	}

	if snap.paycheck != nil && !snap.paycheck.StartDate.IsZero() && snap.paycheck.Amount.Cents > 0 {
		occs, err := Generate(snap.paycheck.StartDate, firstDay, lastDay, snap.paycheck.Frequency)
		if err != nil {
			b.logger.WarnContext(ctx, "Skipping paycheck stream",
				"frequency", snap.paycheck.Frequency, "error", err)
			proj.Warnings = append(proj.Warnings, fmt.Sprintf("paycheck stream skipped: %v", err))
		} else {
			ev := core.CalendarEvent{
				Kind:      core.Income,
				Name:      "Paycheck",
				Amount:    snap.paycheck.Amount,
				Projected: true,
				Source:    core.SourcePaycheck,
			}
			placeProjected(proj.Days, occs, ev, actualIncome, actualExpense)
		}
	}

	overlayActuals(proj.Days, snap.transactions, firstDay, lastDay)
	walkBalance(&proj)
	proj.PressurePoints = PressurePoints(proj.Days, maxPressurePoints)

	return proj, nil
}

// fetch runs the four record-store reads concurrently. Each read degrades
// independently to an empty default; failures become warnings, never aborts.
func (b *Builder) fetch(ctx context.Context, userID int64, from, to time.Time) snapshot {
	var (
		snap snapshot
		mu   sync.Mutex
	)
	warn := func(label string, err error) {
		b.logger.WarnContext(ctx, "Record fetch degraded to default",
			"user_id", userID, "warning", label, "error", err)
		mu.Lock()
		snap.warnings = append(snap.warnings, label)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := b.source.ListRecurring(gctx, userID)
		if err != nil {
			warn(WarnRecurringUnavailable, err)
			return nil
		}
		snap.recurring = recs
		return nil
	})
	g.Go(func() error {
		ps, err := b.source.GetPaycheckStream(gctx, userID)
		if err != nil {
			warn(WarnPaycheckUnavailable, err)
			return nil
		}
		snap.paycheck = ps
		return nil
	})
	g.Go(func() error {
		sb, err := b.source.GetStartingBalance(gctx, userID)
		if err != nil {
			warn(WarnBalanceUnavailable, err)
			return nil
		}
		snap.startBalance = sb
		return nil
	})
	g.Go(func() error {
		txs, err := b.source.ListTransactions(gctx, userID, from, to)
		if err != nil {
			warn(WarnTransactionsUnavailable, err)
			return nil
		}
		snap.transactions = txs
		return nil
	})
	_ = g.Wait() // goroutines never return errors; they degrade instead
	return snap
}

// actualKindSets indexes, per kind, the days of the month that carry at
// least one actual transaction, keyed by day-of-month.
func actualKindSets(txs []core.Transaction, from, to time.Time) (income, expense map[int]bool) {
	income = make(map[int]bool)
	expense = make(map[int]bool)
	for _, tx := range txs {
		d := core.NormalizeDate(tx.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		if tx.Kind() == core.Expense {
			expense[d.Day()] = true
		} else {
			income[d.Day()] = true
		}
	}
	return income, expense
}

// placeProjected appends the event on each occurrence date, skipping dates
// where an actual transaction of the same kind already exists.
func placeProjected(days []core.DayLedger, occs []time.Time, ev core.CalendarEvent, actualIncome, actualExpense map[int]bool) {
	for _, occ := range occs {
		d := occ.Day()
		if d < 1 || d > len(days) {
			continue
		}
		if ev.Kind == core.Income && actualIncome[d] {
			continue
		}
		if ev.Kind == core.Expense && actualExpense[d] {
			continue
		}
		day := &days[d-1]
		day.Events = append(day.Events, ev)
		if ev.Kind == core.Income {
			day.IncomeTotal.Cents += ev.Amount.Cents
		} else {
			day.ExpenseTotal.Cents += ev.Amount.Cents
		}
	}
}

// overlayActuals places recorded transactions, removing any projected events
// of the same kind still on that date first. Together with the pre-filter in
// placeProjected this is idempotent regardless of iteration order.
func overlayActuals(days []core.DayLedger, txs []core.Transaction, from, to time.Time) {
	for _, tx := range txs {
		d := core.NormalizeDate(tx.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		day := &days[d.Day()-1]
		kind := tx.Kind()
		amount := tx.Magnitude()

		kept := day.Events[:0]
		for _, ev := range day.Events {
			if ev.Projected && ev.Kind == kind {
				if kind == core.Income {
					day.IncomeTotal.Cents -= ev.Amount.Cents
				} else {
					day.ExpenseTotal.Cents -= ev.Amount.Cents
				}
				continue
			}
			kept = append(kept, ev)
		}
		day.Events = kept

		day.Events = append(day.Events, core.CalendarEvent{
			Kind:      kind,
			Name:      tx.Description,
			Amount:    amount,
			Projected: false,
			Source:    core.SourceTransaction,
			OriginID:  tx.ID,
			Category:  tx.Category,
		})
		if kind == core.Income {
			day.IncomeTotal.Cents += amount.Cents
		} else {
			day.ExpenseTotal.Cents += amount.Cents
		}
	}
}

// walkBalance accumulates the running balance day by day and fills the month
// summary. Extrema include the starting balance itself.
func walkBalance(proj *core.MonthProjection) {
	running := proj.StartingBalance.Cents
	lowest := running
	highest := running
	var totalIncome, totalExpenses int64

	for i := range proj.Days {
		day := &proj.Days[i]
		totalIncome += day.IncomeTotal.Cents
		totalExpenses += day.ExpenseTotal.Cents

		running += day.IncomeTotal.Cents - day.ExpenseTotal.Cents
		day.EndBalance = core.Money{Cents: running}

		if running < lowest {
			lowest = running
		}
		if running > highest {
			highest = running
		}
	}

	proj.Summary = core.MonthSummary{
		TotalIncome:    core.Money{Cents: totalIncome},
		TotalExpenses:  core.Money{Cents: totalExpenses},
		NetChange:      core.Money{Cents: totalIncome - totalExpenses},
		EndingBalance:  core.Money{Cents: running},
		LowestBalance:  core.Money{Cents: lowest},
		HighestBalance: core.Money{Cents: highest},
	}
}
