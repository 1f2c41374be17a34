package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"alice/internal/domain"
)

var ErrNotConnected = errors.New("mqtt hub is not started")

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// AckHandler is told when a device confirms it has shown a reminder.
type AckHandler interface {
	MarkAcknowledged(ctx context.Context, reminderID string) error
}

// Hub publishes due reminders to the user's devices and tracks which users
// have a device online.
type Hub struct {
	cfg    HubConfig
	client paho.Client
	acks   AckHandler
	logger *slog.Logger

	onlineMu sync.RWMutex
	online   map[string]bool
}

func NewHub(cfg HubConfig, acks AckHandler, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		acks:   acks,
		logger: logger,
		online: make(map[string]bool),
	}
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})

	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if err := h.subscribeHandlers(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) subscribeHandlers() error {
	if token := h.client.Subscribe(TopicUserAcks(h.cfg.TopicPrefix), 1, h.handleAck); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := h.client.Subscribe(TopicUserOnline(h.cfg.TopicPrefix), 1, h.handleOnline); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hub) handleAck(_ paho.Client, msg paho.Message) {
	h.processAck(msg.Topic(), msg.Payload())
}

func (h *Hub) processAck(topic string, payload []byte) {
	userID, err := ParseUserID(topic, h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid ack topic", "topic", topic, "error", err)
		return
	}

	var ack domain.ReminderAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		h.logger.Warn("invalid ack payload", "user_id", userID, "error", err)
		return
	}
	if ack.ReminderID == "" {
		ack.ReminderID = ParseReminderID(topic)
	}
	if !ack.OK {
		h.logger.Warn("reminder rejected by device", "user_id", userID, "reminder_id", ack.ReminderID, "error", ack.Error)
		return
	}
	if h.acks == nil {
		return
	}
	if err := h.acks.MarkAcknowledged(context.Background(), ack.ReminderID); err != nil {
		h.logger.Warn("mark reminder acknowledged failed", "reminder_id", ack.ReminderID, "error", err)
		return
	}
	h.logger.Info("reminder acknowledged", "user_id", userID, "reminder_id", ack.ReminderID)
}

func (h *Hub) handleOnline(_ paho.Client, msg paho.Message) {
	h.processOnline(msg.Topic(), msg.Payload())
}

func (h *Hub) processOnline(topic string, payload []byte) {
	userID, err := ParseUserID(topic, h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid online topic", "topic", topic, "error", err)
		return
	}

	value := strings.TrimSpace(strings.ToLower(string(payload)))
	online := value == "1" || value == "true" || value == "online"

	h.onlineMu.Lock()
	h.online[userID] = online
	h.onlineMu.Unlock()
	h.logger.Info("device online status", "user_id", userID, "online", online)
}

func (h *Hub) IsOnline(userID string) bool {
	h.onlineMu.RLock()
	defer h.onlineMu.RUnlock()
	return h.online[userID]
}

// PublishReminder sends the reminder to the user's device topic.
func (h *Hub) PublishReminder(ctx context.Context, r domain.Reminder) error {
	if h.client == nil {
		return ErrNotConnected
	}
	body, err := json.Marshal(domain.ReminderEvent{
		ReminderID: r.ID,
		UserID:     r.UserID,
		Text:       r.Text,
		DueAt:      r.DueAt,
		Timezone:   r.Timezone,
	})
	if err != nil {
		return err
	}

	token := h.client.Publish(TopicReminder(h.cfg.TopicPrefix, r.UserID, r.ID), 1, false, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
