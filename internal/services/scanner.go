// Package services orchestrates the forecast engine against the record
// store for background work.
package services

import (
	"context"
	"fmt"
	"time"

	"undertow/internal/amqp"
	"undertow/internal/core"
	"undertow/internal/forecast"
	"undertow/internal/log"
	"undertow/internal/storage"
)

// AlertPublisher is the slice of the AMQP client the scanner needs.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *amqp.LowBalanceAlert) error
}

// Scanner walks every account on a schedule, builds the current month's
// projection, and publishes a low-balance alert when the projected lowest
// balance falls below the threshold. It reads records only through the
// engine; it never mutates them.
type Scanner struct {
	store          *storage.SQLiteRepository
	builder        *forecast.Builder
	publisher      AlertPublisher
	thresholdCents int64
	logger         *log.Logger
}

func NewScanner(store *storage.SQLiteRepository, builder *forecast.Builder, publisher AlertPublisher, thresholdCents int64, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentScanner)
	}
	return &Scanner{
		store:          store,
		builder:        builder,
		publisher:      publisher,
		thresholdCents: thresholdCents,
		logger:         logger,
	}
}

// ScanAll projects the month containing now for every user and returns how
// many alerts were published. Per-user failures are logged and skipped; one
// broken account must not silence alerts for the rest.
func (s *Scanner) ScanAll(ctx context.Context, now time.Time) (int, error) {
	if s.store == nil || s.builder == nil || s.publisher == nil {
		return 0, fmt.Errorf("scanner not properly initialized")
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	year, month := now.Year(), int(now.Month())
	s.logger.InfoContext(ctx, "Scanning accounts for low projected balances",
		"total_users", len(users), "year", year, "month", month,
		"threshold_cents", s.thresholdCents)

	published := 0
	for _, u := range users {
		proj, err := s.builder.BuildMonth(ctx, u.ID, year, month, nil)
		if err != nil {
			s.logger.ErrorContext(ctx, "Month build failed during scan",
				"user_id", u.ID, "error", err)
			continue
		}

		if proj.Summary.LowestBalance.Cents >= s.thresholdCents {
			continue
		}

		alert := buildAlert(u, proj, s.thresholdCents)
		if err := s.publisher.PublishAlert(ctx, alert); err != nil {
			s.logger.ErrorContext(ctx, "Alert publish failed",
				"user_id", u.ID, "error", err)
			continue
		}
		published++
	}

	s.logger.InfoContext(ctx, "Scan complete",
		"alerts_published", published, "total_users", len(users))
	return published, nil
}

func buildAlert(u storage.User, proj core.MonthProjection, threshold int64) *amqp.LowBalanceAlert {
	alert := &amqp.LowBalanceAlert{
		UserID:         u.ID,
		Email:          u.Email,
		Year:           proj.Year,
		Month:          proj.Month,
		LowestCents:    proj.Summary.LowestBalance.Cents,
		ThresholdCents: threshold,
		Timestamp:      time.Now(),
	}
	for _, p := range proj.PressurePoints {
		alert.PressureDays = append(alert.PressureDays, amqp.PressureDay{
			Date:         p.Date.Format("2006-01-02"),
			ExpenseCents: p.ExpenseTotal.Cents,
			BalanceCents: p.EndBalance.Cents,
		})
	}
	return alert
}
