package reminder

import (
	"context"
	"log/slog"
	"time"

	"alice/internal/domain"
)

type DueStore interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error)
	MarkDelivered(ctx context.Context, reminderID string, at time.Time) error
	MarkFailed(ctx context.Context, reminderID, reason string, retryAt time.Time) error
	DeferReminder(ctx context.Context, reminderID string, until time.Time) error
}

type Publisher interface {
	PublishReminder(ctx context.Context, r domain.Reminder) error
}

// Presence reports whether a user has a device connected.
type Presence interface {
	IsOnline(userID string) bool
}

type DeliveryConfig struct {
	ScanInterval   time.Duration
	BatchSize      int
	PublishTimeout time.Duration
	// MaxAttempts is the number of failed publishes after which a reminder
	// is given up on.
	MaxAttempts  int
	RetryBackoff time.Duration
	Now          func() time.Time
}

const maxRetryBackoff = time.Hour

// Deliverer pushes due reminders to devices.
type Deliverer struct {
	store     DueStore
	publisher Publisher
	presence  Presence
	cfg       DeliveryConfig
	logger    *slog.Logger
}

// NewDeliverer builds a delivery worker. With a nil presence every due
// reminder is published; otherwise reminders of offline users wait for the
// next scan.
func NewDeliverer(cfg DeliveryConfig, store DueStore, publisher Publisher, presence Presence, logger *slog.Logger) *Deliverer {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Deliverer{
		store:     store,
		publisher: publisher,
		presence:  presence,
		cfg:       cfg,
		logger:    logger,
	}
}

func (d *Deliverer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if _, err := d.DeliverDue(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("deliver due reminders failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DeliverDue publishes one batch of due reminders and returns how many were
// delivered. A failed publish is retried with exponential backoff until
// MaxAttempts is reached.
func (d *Deliverer) DeliverDue(ctx context.Context) (int, error) {
	now := d.cfg.Now()
	due, err := d.store.ListDueReminders(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, r := range due {
		if d.presence != nil && !d.presence.IsOnline(r.UserID) {
			if err := d.store.DeferReminder(ctx, r.ID, now.Add(d.cfg.ScanInterval)); err != nil {
				d.logger.Warn("defer reminder failed", "reminder_id", r.ID, "error", err)
			}
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
		err := d.publisher.PublishReminder(pubCtx, r)
		cancel()
		if err != nil {
			retryAt := d.retryAt(r.Attempts+1, now)
			if retryAt.IsZero() {
				d.logger.Error("giving up on reminder", "reminder_id", r.ID, "user_id", r.UserID, "attempts", r.Attempts+1, "error", err)
			} else {
				d.logger.Warn("publish reminder failed", "reminder_id", r.ID, "user_id", r.UserID, "retry_at", retryAt, "error", err)
			}
			if markErr := d.store.MarkFailed(ctx, r.ID, err.Error(), retryAt); markErr != nil {
				d.logger.Warn("mark reminder failed", "reminder_id", r.ID, "error", markErr)
			}
			continue
		}
		if err := d.store.MarkDelivered(ctx, r.ID, now); err != nil {
			return delivered, err
		}
		delivered++
	}
	if delivered > 0 {
		d.logger.Info("reminders delivered", "count", delivered)
	}
	return delivered, nil
}

// retryAt returns when to retry after the given number of failed attempts,
// or the zero time once MaxAttempts is reached.
func (d *Deliverer) retryAt(attempts int, now time.Time) time.Time {
	if attempts >= d.cfg.MaxAttempts {
		return time.Time{}
	}
	backoff := d.cfg.RetryBackoff
	for i := 1; i < attempts && backoff < maxRetryBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	return now.Add(backoff)
}
