package domain

import "encoding/json"

// https://yandex.ru/dev/dialogs/alice/doc/response.html

const ProtocolVersion = "1.0"

type OutgoingMessage[S, U any] struct {
	Response        Response `json:"response"`
	SessionState    *S       `json:"session_state,omitempty"`
	UserStateUpdate *U       `json:"user_state_update,omitempty"`
	Version         string   `json:"version"`
}

type RawOutgoingMessage = OutgoingMessage[json.RawMessage, json.RawMessage]

type Response struct {
	Text       string   `json:"text"`
	TTS        string   `json:"tts,omitempty"`
	Buttons    []Button `json:"buttons,omitempty"`
	EndSession bool     `json:"end_session"`
}

type Button struct {
	Title   string          `json:"title"`
	Payload json.RawMessage `json:"payload,omitempty"`
	URL     string          `json:"url,omitempty"`
	Hide    bool            `json:"hide"`
}

// NewOutgoingMessage returns an empty reply that keeps the session open.
func NewOutgoingMessage[S, U any]() OutgoingMessage[S, U] {
	return OutgoingMessage[S, U]{Version: ProtocolVersion}
}

// Reply returns an outgoing message with the given text.
func Reply[S, U any](text string) OutgoingMessage[S, U] {
	out := NewOutgoingMessage[S, U]()
	out.Response.Text = text
	return out
}
