// Package worker consumes queued low-balance alerts and turns them into
// user notifications.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"undertow/internal/amqp"
	"undertow/internal/log"
)

// AlertWorker handles alert messages from the queue, one mail per alert.
type AlertWorker struct {
	mailer Mailer
	logger *log.Logger
}

func NewAlertWorker(mailer Mailer, logger *log.Logger) *AlertWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	}
	return &AlertWorker{mailer: mailer, logger: logger}
}

// HandleAlert sends the notification mail for one alert message.
func (w *AlertWorker) HandleAlert(ctx context.Context, alert *amqp.LowBalanceAlert) error {
	w.logger.InfoContext(ctx, "Processing low balance alert",
		"user_id", alert.UserID,
		"year", alert.Year,
		"month", alert.Month,
		"lowest_cents", alert.LowestCents)

	if w.mailer == nil {
		w.logger.WarnContext(ctx, "No mailer configured, dropping alert",
			"user_id", alert.UserID)
		return nil
	}

	subject, body := RenderAlertMail(alert)
	if err := w.mailer.Send(alert.Email, subject, body); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}

	w.logger.InfoContext(ctx, "Alert mail sent",
		"user_id", alert.UserID, "to", alert.Email)
	return nil
}

// RenderAlertMail formats the notification subject and plain-text body.
func RenderAlertMail(alert *amqp.LowBalanceAlert) (subject, body string) {
	period := time.Date(alert.Year, time.Month(alert.Month), 1, 0, 0, 0, 0, time.UTC)
	subject = fmt.Sprintf("Cash flow warning for %s", period.Format("January 2006"))

	var b strings.Builder
	fmt.Fprintf(&b, "Your projected balance for %s dips to %s.\n\n",
		period.Format("January 2006"), formatCents(alert.LowestCents))

	if len(alert.PressureDays) > 0 {
		b.WriteString("Heaviest expense days:\n")
		for _, p := range alert.PressureDays {
			fmt.Fprintf(&b, "  %s  expenses %s, balance %s\n",
				p.Date, formatCents(p.ExpenseCents), formatCents(p.BalanceCents))
		}
		b.WriteString("\n")
	}

	b.WriteString("Review your upcoming bills and recorded transactions to stay ahead.\n")
	return subject, b.String()
}

func formatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}
