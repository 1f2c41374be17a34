package domain

import "time"

type Reminder struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	SkillID     string    `json:"skill_id,omitempty"`
	Text        string    `json:"text"`
	DueAt       time.Time `json:"due_at"`
	Timezone    string    `json:"timezone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DeliveredAt time.Time `json:"-"`
	Attempts    int       `json:"-"`
}

// MQTT payloads

type ReminderEvent struct {
	ReminderID string    `json:"reminder_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	DueAt      time.Time `json:"due_at"`
	Timezone   string    `json:"timezone,omitempty"`
}

type ReminderAck struct {
	ReminderID string `json:"reminder_id"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}
