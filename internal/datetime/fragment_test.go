package datetime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyFragment(t *testing.T) {
	var f Fragment
	assert.False(t, f.HasDate())
	assert.False(t, f.HasTime())
	assert.True(t, f.IsEmpty())
}

func TestFragmentHasDateHasTime(t *testing.T) {
	tests := []struct {
		name     string
		frag     Fragment
		wantDate bool
		wantTime bool
	}{
		{name: "year", frag: Fragment{Year: Abs(2000)}, wantDate: true},
		{name: "relative month", frag: Fragment{Month: Rel(1)}, wantDate: true},
		{name: "day", frag: Fragment{Day: Abs(3)}, wantDate: true},
		{name: "hour", frag: Fragment{Hour: Abs(10)}, wantTime: true},
		{name: "minute", frag: Fragment{Minute: Rel(15)}, wantTime: true},
		{name: "both", frag: Fragment{Day: Rel(1), Hour: Abs(9)}, wantDate: true, wantTime: true},
		{name: "relative flag without value", frag: Fragment{Year: Field{Relative: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDate, tt.frag.HasDate())
			assert.Equal(t, tt.wantTime, tt.frag.HasTime())
		})
	}
}

func TestParseFragment(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Fragment
	}{
		{name: "empty object", raw: `{}`, want: Fragment{}},
		{name: "null", raw: `null`, want: Fragment{}},
		{name: "blank", raw: ``, want: Fragment{}},
		{
			name: "relative day",
			raw:  `{"day": 1, "day_is_relative": true}`,
			want: Fragment{Day: Rel(1)},
		},
		{
			name: "absolute date and time",
			raw:  `{"year": 2021, "month": 5, "day": 9, "hour": 18, "minute": 30}`,
			want: Fragment{Year: Abs(2021), Month: Abs(5), Day: Abs(9), Hour: Abs(18), Minute: Abs(30)},
		},
		{
			name: "negative relative hour",
			raw:  `{"hour": -2, "hour_is_relative": true}`,
			want: Fragment{Hour: Rel(-2)},
		},
		{
			name: "flag without value is dropped",
			raw:  `{"minute_is_relative": true}`,
			want: Fragment{},
		},
		{
			name: "null value",
			raw:  `{"year": null, "year_is_relative": true, "month": 3}`,
			want: Fragment{Month: Abs(3)},
		},
		{
			name: "unknown keys ignored",
			raw:  `{"week": 2, "hour": 7}`,
			want: Fragment{Hour: Abs(7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFragment(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFragmentRejectsNonInteger(t *testing.T) {
	for _, raw := range []string{
		`{"year": "2021"}`,
		`{"month": 2.5}`,
		`{"day": true}`,
		`{"hour": {"value": 1}}`,
		`{"minute_is_relative": "yes", "minute": 1}`,
		`"tomorrow"`,
		`[1, 2]`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseFragment(json.RawMessage(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.NotNil(t, perr.Unwrap())
		})
	}
}

func TestFragmentMarshalJSON(t *testing.T) {
	frag := Fragment{Year: Rel(1), Hour: Abs(9)}
	body, err := json.Marshal(frag)
	require.NoError(t, err)
	assert.JSONEq(t, `{"year": 1, "year_is_relative": true, "hour": 9}`, string(body))

	back, err := ParseFragment(body)
	require.NoError(t, err)
	assert.Equal(t, frag, back)
}
