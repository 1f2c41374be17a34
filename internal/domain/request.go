package domain

import "encoding/json"

// https://yandex.ru/dev/dialogs/alice/doc/request.html

// IncomingMessage is the webhook request. S and U are the skill's session
// and user state types; RawIncomingMessage keeps both opaque.
type IncomingMessage[S, U any] struct {
	Meta    Meta        `json:"meta"`
	Request Request     `json:"request"`
	Session Session     `json:"session"`
	Version string      `json:"version"`
	State   State[S, U] `json:"state"`
}

type RawIncomingMessage = IncomingMessage[json.RawMessage, json.RawMessage]

// State carries what the skill stored in earlier replies.
// https://yandex.ru/dev/dialogs/alice/doc/session-persistence.html
type State[S, U any] struct {
	Session *S `json:"session,omitempty"`
	User    *U `json:"user,omitempty"`
}

type Meta struct {
	Locale     string     `json:"locale"`
	Timezone   string     `json:"timezone"`
	ClientID   string     `json:"client_id"`
	Interfaces Interfaces `json:"interfaces"`
}

type Interfaces struct {
	Screen         *InterfaceScreen         `json:"screen,omitempty"`
	AccountLinking *InterfaceAccountLinking `json:"account_linking,omitempty"`
}

type InterfaceScreen struct{}

type InterfaceAccountLinking struct{}

type Request struct {
	Command           string          `json:"command"`
	OriginalUtterance string          `json:"original_utterance"`
	Type              RequestType     `json:"type,omitempty"`
	Markup            Markup          `json:"markup"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Nlu               Nlu             `json:"nlu"`
}

// RequestType is an open set: values other than the known constants are
// kept verbatim.
type RequestType string

const (
	RequestTypeSimpleUtterance RequestType = "SimpleUtterance"
	RequestTypeButtonPressed   RequestType = "ButtonPressed"
)

func (t RequestType) IsKnown() bool {
	switch t {
	case RequestTypeSimpleUtterance, RequestTypeButtonPressed:
		return true
	}
	return false
}

type Markup struct {
	DangerousContext bool `json:"dangerous_context"`
}

type Nlu struct {
	Tokens   []string          `json:"tokens"`
	Entities []Entity          `json:"entities"`
	Intents  map[string]Intent `json:"intents"`
}

// DateTimeEntities returns pointers to the YANDEX.DATETIME entities of the
// utterance, in order.
func (n *Nlu) DateTimeEntities() []*Entity {
	var out []*Entity
	for i := range n.Entities {
		if n.Entities[i].IsDateTime() {
			out = append(out, &n.Entities[i])
		}
	}
	return out
}

type Intent struct {
	Slots map[string]*Entity `json:"slots"`
}

// Slot returns the named slot or nil.
func (i Intent) Slot(name string) *Entity {
	if i.Slots == nil {
		return nil
	}
	return i.Slots[name]
}

type Session struct {
	SessionID string `json:"session_id"`
	SkillID   string `json:"skill_id"`
	UserID    string `json:"user_id"`
	MessageID int64  `json:"message_id"`
	New       bool   `json:"new"`
}
