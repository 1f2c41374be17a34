package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alice/internal/datetime"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
		want string
	}{
		{
			name: "relative year",
			args: []string{"resolve", "--now", "2010-03-01T00:00:00Z", `{"year": 1, "year_is_relative": true}`},
			want: "2011-03-01T00:00:00Z",
		},
		{
			name: "absolute year from stdin",
			args: []string{"resolve", "--now", "2010-03-01T00:00:00Z"},
			in:   `{"year": 2000}`,
			want: "2000-03-01T00:00:00Z",
		},
		{
			name: "fixed offset kept",
			args: []string{"resolve", "--now", "2020-05-10T21:15:00+03:00", `{"day": 1, "day_is_relative": true, "hour": 9, "minute": 0}`},
			want: "2020-05-11T09:00:00+03:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.in, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestResolveCommandErrors(t *testing.T) {
	_, err := run(t, "", "resolve", "--now", "2010-03-01T00:00:00Z", `{"month": 2, "day": 30}`)
	require.ErrorIs(t, err, datetime.ErrInvalidField)

	_, err = run(t, "", "resolve", `{"day": "tomorrow"}`)
	require.ErrorIs(t, err, datetime.ErrParse)

	_, err = run(t, "", "resolve", "--type", "YANDEX.GEO", `{}`)
	require.ErrorIs(t, err, datetime.ErrNotApplicable)

	_, err = run(t, "", "resolve", "--now", "yesterday", `{}`)
	require.Error(t, err)
}

func TestDecodeCommand(t *testing.T) {
	request := `{
		"meta": {"timezone": "UTC"},
		"request": {
			"command": "через 3 дня",
			"type": "SimpleUtterance",
			"nlu": {
				"entities": [
					{"type": "YANDEX.DATETIME", "tokens": {"start": 0, "end": 3}, "value": {"day": 3, "day_is_relative": true}},
					{"type": "YANDEX.NUMBER", "tokens": {"start": 1, "end": 2}, "value": 3},
					{"type": "YANDEX.DATETIME", "value": {"month": 2, "day": 30}}
				]
			}
		},
		"session": {"new": true}
	}`

	out, err := run(t, request, "decode", "--now", "2021-06-01T12:00:00Z")
	require.NoError(t, err)

	var got requestSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "SimpleUtterance", got.RequestType)
	assert.True(t, got.KnownType)
	assert.True(t, got.NewSession)
	require.Len(t, got.Entities, 3)

	assert.True(t, got.Entities[0].HasDate)
	assert.False(t, got.Entities[0].HasTime)
	assert.Equal(t, "2021-06-04T12:00:00Z", got.Entities[0].Resolved)

	assert.False(t, got.Entities[1].HasDate)
	assert.Empty(t, got.Entities[1].Resolved)

	assert.Equal(t, "invalid day", got.Entities[2].Error)
}
