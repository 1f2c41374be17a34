// Package reminder implements a skill that schedules reminders from
// YANDEX.DATETIME entities.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alice/internal/datetime"
	"alice/internal/domain"
	"alice/internal/skills"
	"alice/internal/timezone"
)

const (
	IntentRemind = "remind"
	IntentCancel = "cancel_reminders"
	IntentList   = "list_reminders"
	IntentHelp   = "YANDEX.HELP"

	SlotWhen = "when"
	SlotWhat = "what"
)

const (
	textWelcome     = "Привет! Скажите, о чём и когда напомнить. Например: напомни позвонить маме завтра в 10."
	textHelp        = "Я запоминаю напоминания. Скажите «напомни» и когда: «через 3 дня», «завтра в 9 утра»."
	textAskWhen     = "Когда напомнить?"
	textAskWhat     = "О чём напомнить?"
	textNotResolved = "Не получилось разобрать дату. Назовите дату и время ещё раз."
	textInPast      = "Это время уже прошло. Когда напомнить?"
	textNoneToClear = "У вас нет запланированных напоминаний."
)

// listLimit is how many reminders a list reply reads out.
const listLimit = 3

type SessionState struct {
	AwaitingDate bool   `json:"awaiting_date,omitempty"`
	PendingText  string `json:"pending_text,omitempty"`
}

type UserState struct {
	Scheduled int `json:"scheduled"`
}

type (
	Message = domain.IncomingMessage[SessionState, UserState]
	Reply   = domain.OutgoingMessage[SessionState, UserState]
)

type Store interface {
	SaveReminder(ctx context.Context, r domain.Reminder) (domain.Reminder, error)
	ListPendingReminders(ctx context.Context, userID string) ([]domain.Reminder, error)
	CancelPendingReminders(ctx context.Context, userID string) (int64, error)
}

type Config struct {
	DefaultLocation *time.Location
	Now             func() time.Time
}

type Service struct {
	store      Store
	defaultLoc *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

func New(cfg Config, store Store, logger *slog.Logger) *Service {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:      store,
		defaultLoc: cfg.DefaultLocation,
		now:        cfg.Now,
		logger:     logger,
	}
}

// Register wires the skill's intents into r.
func (s *Service) Register(r *skills.Registry[SessionState, UserState]) {
	r.Handle(IntentRemind, s.HandleRemind)
	r.Handle(IntentCancel, s.HandleCancel)
	r.Handle(IntentList, s.HandleList)
	r.Handle(IntentHelp, s.HandleHelp)
	r.Fallback(s.HandleUtterance)
}

func (s *Service) HandleHelp(_ context.Context, in *Message) (Reply, error) {
	return reply(textHelp, in.State.Session), nil
}

// HandleRemind handles the remind intent, whose slots carry the date/time
// and the reminder text.
func (s *Service) HandleRemind(ctx context.Context, in *Message) (Reply, error) {
	intent := in.Request.Nlu.Intents[IntentRemind]

	text := pendingText(in)
	if what, ok := intent.Slot(SlotWhat).StringValue(); ok && strings.TrimSpace(what) != "" {
		text = strings.TrimSpace(what)
	}

	when := intent.Slot(SlotWhen)
	if when == nil || !(when.HasDate() || when.HasTime()) {
		when = firstDateTime(&in.Request.Nlu)
	}
	return s.schedule(ctx, in, when, text)
}

// HandleUtterance handles free text: the greeting on a new session, the
// answer to a pending question, or a reminder phrased without the intent.
func (s *Service) HandleUtterance(ctx context.Context, in *Message) (Reply, error) {
	if in.Session.New && strings.TrimSpace(in.Request.Command) == "" {
		return reply(textWelcome, nil), nil
	}

	when := firstDateTime(&in.Request.Nlu)
	text := pendingText(in)
	if text == "" {
		text = reminderText(&in.Request.Nlu, when)
	}
	return s.schedule(ctx, in, when, text)
}

func (s *Service) HandleCancel(ctx context.Context, in *Message) (Reply, error) {
	n, err := s.store.CancelPendingReminders(ctx, in.Session.UserID)
	if err != nil {
		return Reply{}, fmt.Errorf("cancel reminders: %w", err)
	}
	if n == 0 {
		return reply(textNoneToClear, nil), nil
	}
	return reply(fmt.Sprintf("Удалила напоминания: %d.", n), nil), nil
}

// HandleList reads out the nearest pending reminders.
func (s *Service) HandleList(ctx context.Context, in *Message) (Reply, error) {
	pending, err := s.store.ListPendingReminders(ctx, in.Session.UserID)
	if err != nil {
		return Reply{}, fmt.Errorf("list reminders: %w", err)
	}
	if len(pending) == 0 {
		return reply(textNoneToClear, nil), nil
	}

	now, err := timezone.Now(s.now, in.Meta.Timezone, s.defaultLoc)
	if err != nil {
		s.logger.Warn("unknown request timezone", "timezone", in.Meta.Timezone, "error", err)
	}
	items := make([]string, 0, listLimit)
	for _, r := range pending {
		if len(items) == listLimit {
			break
		}
		items = append(items, fmt.Sprintf("%s, %s", r.Text, formatDue(r.DueAt.In(now.Location()), now)))
	}
	return reply(fmt.Sprintf("Запланировано напоминаний: %d. %s.", len(pending), strings.Join(items, "; ")), nil), nil
}

func (s *Service) schedule(ctx context.Context, in *Message, when *domain.Entity, text string) (Reply, error) {
	if when == nil {
		if text == "" {
			return reply(textAskWhat, nil), nil
		}
		return reply(textAskWhen, &SessionState{AwaitingDate: true, PendingText: text}), nil
	}
	if text == "" {
		return reply(textAskWhat, nil), nil
	}
	awaiting := &SessionState{AwaitingDate: true, PendingText: text}

	now, err := timezone.Now(s.now, in.Meta.Timezone, s.defaultLoc)
	if err != nil {
		s.logger.Warn("unknown request timezone", "timezone", in.Meta.Timezone, "error", err)
	}

	dueAt, err := when.DateTime(now)
	if err != nil {
		var fieldErr *datetime.InvalidFieldError
		switch {
		case errors.As(err, &fieldErr):
			s.logger.Warn("resolve datetime failed", "session_id", in.Session.SessionID, "field", fieldErr.Field)
		default:
			s.logger.Warn("resolve datetime failed", "session_id", in.Session.SessionID, "error", err)
		}
		return reply(textNotResolved, awaiting), nil
	}
	if !dueAt.After(now) {
		return reply(textInPast, awaiting), nil
	}

	saved, err := s.store.SaveReminder(ctx, domain.Reminder{
		UserID:    in.Session.UserID,
		SessionID: in.Session.SessionID,
		SkillID:   in.Session.SkillID,
		Text:      text,
		DueAt:     dueAt,
		Timezone:  dueAt.Location().String(),
		CreatedAt: now.UTC(),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("save reminder: %w", err)
	}
	s.logger.Info("reminder scheduled",
		"reminder_id", saved.ID,
		"user_id", saved.UserID,
		"due_at", dueAt.Format(time.RFC3339),
	)

	out := reply(fmt.Sprintf("Хорошо, напомню: %s, %s.", text, formatDue(dueAt, now)), nil)
	scheduled := 1
	if in.State.User != nil {
		scheduled = in.State.User.Scheduled + 1
	}
	out.UserStateUpdate = &UserState{Scheduled: scheduled}
	return out, nil
}

func reply(text string, session *SessionState) Reply {
	out := domain.Reply[SessionState, UserState](text)
	out.SessionState = session
	return out
}

func pendingText(in *Message) string {
	if in.State.Session == nil || !in.State.Session.AwaitingDate {
		return ""
	}
	return strings.TrimSpace(in.State.Session.PendingText)
}

func firstDateTime(nlu *domain.Nlu) *domain.Entity {
	for _, e := range nlu.DateTimeEntities() {
		if e.HasDate() || e.HasTime() {
			return e
		}
	}
	return nil
}

// reminderText is the utterance without the trigger words and the tokens
// of the date/time entity.
func reminderText(nlu *domain.Nlu, when *domain.Entity) string {
	words := make([]string, 0, len(nlu.Tokens))
	for i, tok := range nlu.Tokens {
		if when != nil && i >= int(when.Tokens.Start) && i < int(when.Tokens.End) {
			continue
		}
		if isTriggerWord(tok) {
			continue
		}
		words = append(words, tok)
	}
	return strings.Join(words, " ")
}

func isTriggerWord(tok string) bool {
	switch strings.ToLower(tok) {
	case "напомни", "напомнить", "напомните", "пожалуйста":
		return true
	}
	return false
}

func formatDue(due, now time.Time) string {
	if due.Year() == now.Year() && due.YearDay() == now.YearDay() {
		return "сегодня в " + due.Format("15:04")
	}
	if due.Year() != now.Year() {
		return due.Format("02.01.2006 в 15:04")
	}
	return due.Format("02.01 в 15:04")
}
