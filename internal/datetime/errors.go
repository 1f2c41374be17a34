package datetime

import (
	"errors"
	"fmt"
)

var (
	ErrNotApplicable = errors.New("entity is not a date/time entity")
	ErrParse         = errors.New("invalid date/time payload")
	ErrInvalidField  = errors.New("date/time field produced a non-existent instant")
)

// NotApplicableError is returned when resolution is requested on an entity
// whose type tag is not YANDEX.DATETIME.
type NotApplicableError struct {
	EntityType string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("entity type %q is not %s", e.EntityType, EntityType)
}

func (e *NotApplicableError) Is(target error) bool {
	return target == ErrNotApplicable
}

// ParseError wraps the decode failure of an entity value.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse date/time fragment: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// InvalidFieldError names the fragment field whose application produced an
// instant that does not exist on the calendar or the clock.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}
