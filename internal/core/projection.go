package core

import "time"

// CalendarEvent is one income or expense entry on a day ledger. Projected
// events come from recurring definitions or the paycheck stream; actual
// events come from recorded transactions and supersede same-kind projections
// on their date. OriginID points back at the record that produced the event
// so callers can resolve it (for example to delete a single occurrence).
type CalendarEvent struct {
	Kind      EventKind   `json:"kind"`
	Name      string      `json:"name"`
	Amount    Money       `json:"amount"`
	Projected bool        `json:"projected"`
	Source    EventSource `json:"source"`
	OriginID  int64       `json:"originId"`
	Category  string      `json:"category,omitempty"`
}

// DayLedger is one calendar day of a month projection. Days with no events
// still exist, with an empty event list and zero totals.
type DayLedger struct {
	Date         time.Time       `json:"date"`
	Day          int             `json:"day"` // 1-based day of month
	Events       []CalendarEvent `json:"events"`
	IncomeTotal  Money           `json:"incomeTotal"`
	ExpenseTotal Money           `json:"expenseTotal"`
	EndBalance   Money           `json:"endBalance"`
}

// MonthSummary aggregates one projected month.
type MonthSummary struct {
	TotalIncome    Money `json:"totalIncome"`
	TotalExpenses  Money `json:"totalExpenses"`
	NetChange      Money `json:"netChange"`
	EndingBalance  Money `json:"endingBalance"`
	LowestBalance  Money `json:"lowestBalance"`
	HighestBalance Money `json:"highestBalance"`
}

// PressurePoint flags a day of unusually high expense load.
type PressurePoint struct {
	Date         time.Time `json:"date"`
	ExpenseTotal Money     `json:"expenseTotal"`
	EndBalance   Money     `json:"endBalance"`
}

// MonthProjection is the full day-by-day ledger for one calendar month.
// Days is index-addressable by day-of-month (Days[d-1]), always exactly the
// length of the month with no gaps. Warnings lists record-store fetches that
// degraded to defaults, so callers can tell true zero from missing data.
type MonthProjection struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	StartingBalance Money           `json:"startingBalance"`
	Days            []DayLedger     `json:"days"`
	Summary         MonthSummary    `json:"summary"`
	PressurePoints  []PressurePoint `json:"pressurePoints"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// YearForecast chains twelve month projections, each starting from the
// previous month's ending balance.
type YearForecast struct {
	Year    int               `json:"year"`
	Months  []MonthProjection `json:"months"`
	Summary MonthSummary      `json:"summary"`
}
