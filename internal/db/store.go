package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alice/internal/domain"
)

var ErrReminderNotFound = errors.New("reminder not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			reminder_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			skill_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			due_at TIMESTAMPTZ NOT NULL,
			timezone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			delivered_at TIMESTAMPTZ,
			acked_at TIMESTAMPTZ,
			last_error TEXT NOT NULL DEFAULT '',
			attempts INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ,
			failed_at TIMESTAMPTZ
		);`,
		`ALTER TABLE reminders ADD COLUMN IF NOT EXISTS attempts INT NOT NULL DEFAULT 0;`,
		`ALTER TABLE reminders ADD COLUMN IF NOT EXISTS next_attempt_at TIMESTAMPTZ;`,
		`ALTER TABLE reminders ADD COLUMN IF NOT EXISTS failed_at TIMESTAMPTZ;`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_pending_due ON reminders(due_at) WHERE delivered_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user_due ON reminders(user_id, due_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveReminder(ctx context.Context, r domain.Reminder) (domain.Reminder, error) {
	if strings.TrimSpace(r.ID) == "" {
		r.ID = "rem_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reminders(reminder_id, user_id, session_id, skill_id, text, due_at, timezone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.UserID, r.SessionID, r.SkillID, r.Text, r.DueAt.UTC(), r.Timezone, r.CreatedAt)
	if err != nil {
		return domain.Reminder{}, err
	}
	return r, nil
}

// ListDueReminders returns undelivered reminders due at or before now whose
// retry time has come, oldest first. Reminders given up on are skipped.
func (s *Store) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT reminder_id, user_id, session_id, skill_id, text, due_at, timezone, created_at, delivered_at, attempts
		FROM reminders
		WHERE delivered_at IS NULL AND failed_at IS NULL AND due_at <= $1
			AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY due_at ASC
		LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Reminder, 0, limit)
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPendingReminders returns the user's reminders that are still to be
// delivered.
func (s *Store) ListPendingReminders(ctx context.Context, userID string) ([]domain.Reminder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT reminder_id, user_id, session_id, skill_id, text, due_at, timezone, created_at, delivered_at, attempts
		FROM reminders
		WHERE user_id=$1 AND delivered_at IS NULL AND failed_at IS NULL
		ORDER BY due_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkDelivered(ctx context.Context, reminderID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reminders
		SET delivered_at=$2, last_error=''
		WHERE reminder_id=$1
	`, reminderID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// MarkFailed records a failed delivery attempt. The reminder is retried at
// retryAt, or given up on when retryAt is zero.
func (s *Store) MarkFailed(ctx context.Context, reminderID, reason string, retryAt time.Time) error {
	var next *time.Time
	if !retryAt.IsZero() {
		at := retryAt.UTC()
		next = &at
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE reminders
		SET last_error=$2,
			attempts=attempts+1,
			next_attempt_at=$3,
			failed_at=CASE WHEN $3::timestamptz IS NULL THEN NOW() ELSE NULL END
		WHERE reminder_id=$1
	`, reminderID, reason, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// DeferReminder postpones the next delivery attempt without counting it.
func (s *Store) DeferReminder(ctx context.Context, reminderID string, until time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reminders
		SET next_attempt_at=$2
		WHERE reminder_id=$1
	`, reminderID, until.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (s *Store) MarkAcknowledged(ctx context.Context, reminderID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reminders
		SET acked_at=NOW()
		WHERE reminder_id=$1
	`, reminderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// CancelPendingReminders deletes the user's undelivered reminders and
// returns how many were removed.
func (s *Store) CancelPendingReminders(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reminders
		WHERE user_id=$1 AND delivered_at IS NULL
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanReminder(row pgx.Row) (domain.Reminder, error) {
	var out domain.Reminder
	var deliveredAt *time.Time
	err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.SessionID,
		&out.SkillID,
		&out.Text,
		&out.DueAt,
		&out.Timezone,
		&out.CreatedAt,
		&deliveredAt,
		&out.Attempts,
	)
	if err != nil {
		return domain.Reminder{}, err
	}
	if deliveredAt != nil {
		out.DeliveredAt = *deliveredAt
	}
	out.DueAt = out.DueAt.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}
