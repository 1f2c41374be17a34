// Package datetime resolves YANDEX.DATETIME entity values against a
// reference instant.
//
// https://yandex.ru/dev/dialogs/alice/doc/naming-entities.html#naming-entities__datetime
package datetime

import (
	"bytes"
	"encoding/json"
)

// EntityType is the NLU type tag of date/time entities.
const EntityType = "YANDEX.DATETIME"

const (
	FieldYear   = "year"
	FieldMonth  = "month"
	FieldDay    = "day"
	FieldHour   = "hour"
	FieldMinute = "minute"
)

// Field is one recognized component of a fragment. Relative is meaningful
// only when Present is true.
type Field struct {
	Value    int
	Relative bool
	Present  bool
}

// Abs returns a present absolute field.
func Abs(v int) Field {
	return Field{Value: v, Present: true}
}

// Rel returns a present field holding a delta to the reference instant.
func Rel(v int) Field {
	return Field{Value: v, Relative: true, Present: true}
}

func (f Field) apply(current int) int {
	if f.Relative {
		return current + f.Value
	}
	return f.Value
}

// Fragment is a partially specified date/time. The zero value carries no
// date/time information.
type Fragment struct {
	Year   Field
	Month  Field
	Day    Field
	Hour   Field
	Minute Field
}

func (f Fragment) HasDate() bool {
	return f.Year.Present || f.Month.Present || f.Day.Present
}

func (f Fragment) HasTime() bool {
	return f.Hour.Present || f.Minute.Present
}

func (f Fragment) IsEmpty() bool {
	return !f.HasDate() && !f.HasTime()
}

type wireFragment struct {
	Year             *int `json:"year"`
	YearIsRelative   bool `json:"year_is_relative"`
	Month            *int `json:"month"`
	MonthIsRelative  bool `json:"month_is_relative"`
	Day              *int `json:"day"`
	DayIsRelative    bool `json:"day_is_relative"`
	Hour             *int `json:"hour"`
	HourIsRelative   bool `json:"hour_is_relative"`
	Minute           *int `json:"minute"`
	MinuteIsRelative bool `json:"minute_is_relative"`
}

// ParseFragment decodes the value of a YANDEX.DATETIME entity. Missing or
// null keys leave the field absent and its relative flag false.
func ParseFragment(raw json.RawMessage) (Fragment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Fragment{}, nil
	}

	var w wireFragment
	if err := json.Unmarshal(raw, &w); err != nil {
		return Fragment{}, &ParseError{Err: err}
	}
	return Fragment{
		Year:   toField(w.Year, w.YearIsRelative),
		Month:  toField(w.Month, w.MonthIsRelative),
		Day:    toField(w.Day, w.DayIsRelative),
		Hour:   toField(w.Hour, w.HourIsRelative),
		Minute: toField(w.Minute, w.MinuteIsRelative),
	}, nil
}

func toField(v *int, relative bool) Field {
	if v == nil {
		return Field{}
	}
	return Field{Value: *v, Relative: relative, Present: true}
}

// MarshalJSON encodes the fragment in the entity value shape. Absent fields
// and their flags are omitted.
func (f Fragment) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 10)
	put := func(name string, field Field) {
		if !field.Present {
			return
		}
		out[name] = field.Value
		if field.Relative {
			out[name+"_is_relative"] = true
		}
	}
	put(FieldYear, f.Year)
	put(FieldMonth, f.Month)
	put(FieldDay, f.Day)
	put(FieldHour, f.Hour)
	put(FieldMinute, f.Minute)
	return json.Marshal(out)
}
