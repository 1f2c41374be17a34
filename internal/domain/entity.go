package domain

import (
	"encoding/json"
	"time"

	"alice/internal/datetime"
)

type EntityTokens struct {
	Start uint16 `json:"start"`
	End   uint16 `json:"end"`
}

// Entity is a named entity recognized in the utterance. Decoded
// YANDEX.DATETIME entities, and those built with NewEntity, parse their value
// on the first date/time query and reuse it; an Entity literal parses on
// every query. Queries are safe for concurrent use.
type Entity struct {
	Tokens EntityTokens    `json:"tokens"`
	Type   string          `json:"type"`
	Value  json.RawMessage `json:"value,omitempty"`

	memo *datetime.Memo
}

func NewEntity(entityType string, value json.RawMessage) *Entity {
	e := &Entity{Type: entityType, Value: value}
	e.attachMemo()
	return e
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	type wireEntity Entity
	var w wireEntity
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Entity(w)
	e.attachMemo()
	return nil
}

func (e *Entity) attachMemo() {
	if e.IsDateTime() {
		e.memo = &datetime.Memo{}
	}
}

func (e *Entity) IsDateTime() bool {
	return e.Type == datetime.EntityType
}

// Fragment returns the parsed date/time value.
func (e *Entity) Fragment() (datetime.Fragment, error) {
	if !e.IsDateTime() {
		return datetime.Fragment{}, &datetime.NotApplicableError{EntityType: e.Type}
	}
	if e.memo == nil {
		return datetime.ParseFragment(e.Value)
	}
	return e.memo.Get(e.Value)
}

// DateTime resolves the entity against now.
func (e *Entity) DateTime(now time.Time) (time.Time, error) {
	frag, err := e.Fragment()
	if err != nil {
		return time.Time{}, err
	}
	return datetime.Resolve(frag, now)
}

func (e *Entity) HasDate() bool {
	frag, err := e.Fragment()
	if err != nil {
		return false
	}
	return frag.HasDate()
}

func (e *Entity) HasTime() bool {
	frag, err := e.Fragment()
	if err != nil {
		return false
	}
	return frag.HasTime()
}

// StringValue returns the value of entities carrying plain text, such as
// free-form intent slots.
func (e *Entity) StringValue() (string, bool) {
	if e == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Value, &s); err != nil {
		return "", false
	}
	return s, true
}
