package amqp

import (
	"encoding/json"
	"time"
)

// PressureDay is one heavy-expense day carried inside an alert.
type PressureDay struct {
	Date         string `json:"date"` // YYYY-MM-DD
	ExpenseCents int64  `json:"expenseCents"`
	BalanceCents int64  `json:"balanceCents"`
}

// LowBalanceAlert is published when a user's projected lowest balance for
// the current month drops below the configured threshold. The worker fetches
// nothing: the message carries everything the notification needs.
type LowBalanceAlert struct {
	UserID         int64         `json:"userId"`
	Email          string        `json:"email"`
	Year           int           `json:"year"`
	Month          int           `json:"month"`
	LowestCents    int64         `json:"lowestCents"`
	ThresholdCents int64         `json:"thresholdCents"`
	PressureDays   []PressureDay `json:"pressureDays,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// ToJSON converts the alert to JSON bytes
func (a *LowBalanceAlert) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// LowBalanceAlertFromJSON creates an alert from JSON bytes
func LowBalanceAlertFromJSON(data []byte) (*LowBalanceAlert, error) {
	var a LowBalanceAlert
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
