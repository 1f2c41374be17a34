package datetime

import "time"

// Resolve applies the fragment to now and returns the resulting instant.
//
// Fields are applied in the order year, month, day, hour, minute. Each field
// either replaces the working component or, when relative, adds to it; a
// relative day is therefore counted from the already adjusted year and month.
// Nothing is carried between components: a month of 13 or a minute of 75 is
// an error, not a rollover. The day-of-month is validated once the last
// recognized date field has been applied, so {month: 2, day: 30} fails on
// "day" whatever the reference day is.
//
// A result that falls into a gap of the location (a DST switch) is an error
// on the last field present in the fragment, not on the field whose step
// entered the gap: {hour: 2, minute: 30} across a 02:00 to 03:00 switch fails
// on "minute".
//
// Seconds, nanoseconds and the location of now are kept as is.
func Resolve(f Fragment, now time.Time) (time.Time, error) {
	if f.IsEmpty() {
		return now, nil
	}

	w := clockOf(now)
	lastDate := lastPresent(
		namedField{FieldYear, f.Year},
		namedField{FieldMonth, f.Month},
		namedField{FieldDay, f.Day},
	)

	if f.Year.Present {
		w.year = f.Year.apply(w.year)
		if lastDate == FieldYear && !w.validDay() {
			return time.Time{}, &InvalidFieldError{Field: FieldYear}
		}
	}
	if f.Month.Present {
		w.month = f.Month.apply(w.month)
		if w.month < 1 || w.month > 12 {
			return time.Time{}, &InvalidFieldError{Field: FieldMonth}
		}
		if lastDate == FieldMonth && !w.validDay() {
			return time.Time{}, &InvalidFieldError{Field: FieldMonth}
		}
	}
	if f.Day.Present {
		w.day = f.Day.apply(w.day)
		if !w.validDay() {
			return time.Time{}, &InvalidFieldError{Field: FieldDay}
		}
	}
	if f.Hour.Present {
		w.hour = f.Hour.apply(w.hour)
		if w.hour < 0 || w.hour > 23 {
			return time.Time{}, &InvalidFieldError{Field: FieldHour}
		}
	}
	if f.Minute.Present {
		w.minute = f.Minute.apply(w.minute)
		if w.minute < 0 || w.minute > 59 {
			return time.Time{}, &InvalidFieldError{Field: FieldMinute}
		}
	}

	out := w.instant()
	if !w.matches(out) {
		// The wall clock falls into a gap of the location (DST switch).
		last := lastPresent(
			namedField{FieldYear, f.Year},
			namedField{FieldMonth, f.Month},
			namedField{FieldDay, f.Day},
			namedField{FieldHour, f.Hour},
			namedField{FieldMinute, f.Minute},
		)
		return time.Time{}, &InvalidFieldError{Field: last}
	}
	return out, nil
}

type namedField struct {
	name  string
	field Field
}

func lastPresent(fields ...namedField) string {
	last := ""
	for _, nf := range fields {
		if nf.field.Present {
			last = nf.name
		}
	}
	return last
}

type clock struct {
	year, month, day     int
	hour, minute, second int
	nsec                 int
	loc                  *time.Location
}

func clockOf(t time.Time) clock {
	return clock{
		year:   t.Year(),
		month:  int(t.Month()),
		day:    t.Day(),
		hour:   t.Hour(),
		minute: t.Minute(),
		second: t.Second(),
		nsec:   t.Nanosecond(),
		loc:    t.Location(),
	}
}

func (c clock) validDay() bool {
	return c.day >= 1 && c.day <= daysIn(c.year, c.month)
}

func (c clock) instant() time.Time {
	return time.Date(c.year, time.Month(c.month), c.day, c.hour, c.minute, c.second, c.nsec, c.loc)
}

func (c clock) matches(t time.Time) bool {
	return t.Year() == c.year &&
		int(t.Month()) == c.month &&
		t.Day() == c.day &&
		t.Hour() == c.hour &&
		t.Minute() == c.minute
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
