package alert

import (
	"context"
	"fmt"
	"time"

	"capture-analyze-pipeline/database"
	"capture-analyze-pipeline/metrics"

	"github.com/apex/log"
)

// Sender delivers one composed message to a recipient set.
type Sender interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// Dispatcher notifies the configured recipient list when the pipeline
// declares an anomaly. All failures are noted and swallowed: an undeliverable
// alert must never roll back or fail the ingestion that produced it.
type Dispatcher struct {
	db      *database.Database
	sender  Sender
	timeout time.Duration
}

func NewDispatcher(db *database.Database, sender Sender, timeout time.Duration) *Dispatcher {
	return &Dispatcher{db: db, sender: sender, timeout: timeout}
}

// Notify resolves the current recipient list and sends a single alert mail.
// An empty list is a no-op.
func (d *Dispatcher) Notify(ctx context.Context, reason, imageURL string) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	recipients, err := d.db.RecipientEmails(ctx)
	if err != nil {
		log.WithError(err).Warn("Alert dispatch skipped: recipient lookup failed")
		metrics.AlertErrorTotal.Inc()
		return
	}
	if len(recipients) == 0 {
		log.Info("Alert dispatch skipped: recipient list is empty")
		return
	}

	imageRef := imageURL
	if imageRef == "" {
		imageRef = "none"
	}
	body := fmt.Sprintf(`Anomaly detected!

Reason: %s
Time: %s
Image: %s
`, reason, time.Now().Format("02/01/2006 15:04:05"), imageRef)

	if err := d.sender.Send(ctx, "Security Alert", body, recipients); err != nil {
		log.WithError(err).Warnf("Failed to send alert to %d recipients", len(recipients))
		metrics.AlertErrorTotal.Inc()
		return
	}

	log.Infof("Alert sent to %d recipients", len(recipients))
}
