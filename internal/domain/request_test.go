package domain

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alice/internal/datetime"
)

const sampleRequest = `{
  "meta": {
    "locale": "ru-RU",
    "timezone": "Europe/Moscow",
    "client_id": "ru.yandex.searchplugin/7.16",
    "interfaces": {"screen": {}, "account_linking": {}}
  },
  "request": {
    "command": "напомни позвонить маме завтра в 10 утра",
    "original_utterance": "напомни позвонить маме завтра в 10 утра",
    "type": "SimpleUtterance",
    "markup": {"dangerous_context": false},
    "payload": {},
    "nlu": {
      "tokens": ["напомни", "позвонить", "маме", "завтра", "в", "10", "утра"],
      "entities": [
        {
          "tokens": {"start": 3, "end": 7},
          "type": "YANDEX.DATETIME",
          "value": {"day": 1, "day_is_relative": true, "hour": 10, "hour_is_relative": false}
        },
        {
          "tokens": {"start": 5, "end": 6},
          "type": "YANDEX.NUMBER",
          "value": 10
        }
      ],
      "intents": {
        "remind": {
          "slots": {
            "what": {"type": "YANDEX.STRING", "tokens": {"start": 1, "end": 3}, "value": "позвонить маме"},
            "when": {"type": "YANDEX.DATETIME", "tokens": {"start": 3, "end": 7}, "value": {"day": 1, "day_is_relative": true}}
          }
        }
      }
    }
  },
  "session": {
    "message_id": 3,
    "session_id": "2eac4854-fce721f3-b845abba-20d60",
    "skill_id": "3ad36498-f5rd-4079-a14b-788652932056",
    "user_id": "47C73714B580ED2469056E71081159529FFC676A4E5B059D629A819E857DC2F8",
    "new": false
  },
  "state": {
    "session": {"step": "ask"},
    "user": {"count": 2}
  },
  "version": "1.0"
}`

func TestDecodeIncomingMessage(t *testing.T) {
	var in RawIncomingMessage
	require.NoError(t, json.Unmarshal([]byte(sampleRequest), &in))

	assert.Equal(t, "ru-RU", in.Meta.Locale)
	assert.Equal(t, "Europe/Moscow", in.Meta.Timezone)
	assert.NotNil(t, in.Meta.Interfaces.Screen)
	assert.NotNil(t, in.Meta.Interfaces.AccountLinking)
	assert.Equal(t, RequestTypeSimpleUtterance, in.Request.Type)
	assert.Len(t, in.Request.Nlu.Entities, 2)
	assert.Equal(t, int64(3), in.Session.MessageID)
	assert.False(t, in.Session.New)
	require.NotNil(t, in.State.Session)
	assert.JSONEq(t, `{"step": "ask"}`, string(*in.State.Session))
	require.NotNil(t, in.State.User)
	assert.JSONEq(t, `{"count": 2}`, string(*in.State.User))

	dt := in.Request.Nlu.DateTimeEntities()
	require.Len(t, dt, 1)
	assert.True(t, dt[0].HasDate())
	assert.True(t, dt[0].HasTime())

	now := time.Date(2021, time.June, 1, 20, 15, 0, 0, time.UTC)
	got, err := dt[0].DateTime(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.June, 2, 10, 15, 0, 0, time.UTC), got)

	when := in.Request.Nlu.Intents["remind"].Slot("when")
	require.NotNil(t, when)
	assert.True(t, when.HasDate())
	assert.False(t, when.HasTime())

	what, ok := in.Request.Nlu.Intents["remind"].Slot("what").StringValue()
	require.True(t, ok)
	assert.Equal(t, "позвонить маме", what)
	assert.Nil(t, in.Request.Nlu.Intents["remind"].Slot("missing"))
}

type sessionState struct {
	Step string `json:"step"`
}

type userState struct {
	Count int `json:"count"`
}

func TestDecodeTypedState(t *testing.T) {
	var in IncomingMessage[sessionState, userState]
	require.NoError(t, json.Unmarshal([]byte(sampleRequest), &in))
	require.NotNil(t, in.State.Session)
	assert.Equal(t, "ask", in.State.Session.Step)
	require.NotNil(t, in.State.User)
	assert.Equal(t, 2, in.State.User.Count)
}

func TestDecodeEmptyMessageDefaults(t *testing.T) {
	var in RawIncomingMessage
	require.NoError(t, json.Unmarshal([]byte(`{}`), &in))
	assert.Nil(t, in.State.Session)
	assert.Nil(t, in.State.User)
	assert.Empty(t, in.Request.Nlu.Entities)
	assert.Empty(t, in.Request.Type)
	assert.False(t, in.Request.Markup.DangerousContext)
}

func TestDecodeInterfaces(t *testing.T) {
	tests := []struct {
		raw            string
		screen         bool
		accountLinking bool
	}{
		{raw: `{}`},
		{raw: `{"screen":{}}`, screen: true},
		{raw: `{"account_linking":{}}`, accountLinking: true},
		{raw: `{"account_linking":{}, "screen":{"a": true}}`, screen: true, accountLinking: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var v Interfaces
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.screen, v.Screen != nil)
			assert.Equal(t, tt.accountLinking, v.AccountLinking != nil)
		})
	}
}

func TestDecodeMarkup(t *testing.T) {
	var v Markup
	require.NoError(t, json.Unmarshal([]byte(`{}`), &v))
	assert.False(t, v.DangerousContext)

	require.NoError(t, json.Unmarshal([]byte(`{"dangerous_context": true}`), &v))
	assert.True(t, v.DangerousContext)
}

func TestRequestTypeOpenSet(t *testing.T) {
	tests := []struct {
		raw   string
		want  RequestType
		known bool
	}{
		{raw: `"SimpleUtterance"`, want: RequestTypeSimpleUtterance, known: true},
		{raw: `"ButtonPressed"`, want: RequestTypeButtonPressed, known: true},
		{raw: `"Show.Pull"`, want: RequestType("Show.Pull")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var got RequestType
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, got.IsKnown())

			body, err := json.Marshal(got)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, string(body))
		})
	}
}

func TestEntityNotDateTime(t *testing.T) {
	e := &Entity{Type: "YANDEX.GEO", Value: json.RawMessage(`{"city": "москва"}`)}
	assert.False(t, e.IsDateTime())
	assert.False(t, e.HasDate())
	assert.False(t, e.HasTime())

	_, err := e.DateTime(time.Now())
	require.ErrorIs(t, err, datetime.ErrNotApplicable)
	var naErr *datetime.NotApplicableError
	require.ErrorAs(t, err, &naErr)
	assert.Equal(t, "YANDEX.GEO", naErr.EntityType)
	assert.Nil(t, e.memo, "non date/time entities must not be parsed")
}

func TestEntityMalformedDateTime(t *testing.T) {
	e := &Entity{Type: datetime.EntityType, Value: json.RawMessage(`{"day": "tomorrow"}`)}
	for i := 0; i < 3; i++ {
		assert.False(t, e.HasDate())
		assert.False(t, e.HasTime())
	}
	_, err := e.DateTime(time.Now())
	require.ErrorIs(t, err, datetime.ErrParse)
}

func TestEntityQueriesAreStable(t *testing.T) {
	e := NewEntity(datetime.EntityType, json.RawMessage(`{"hour": 7}`))
	for i := 0; i < 5; i++ {
		assert.False(t, e.HasDate())
		assert.True(t, e.HasTime())
	}

	// the parsed fragment is reused even if the raw value changes later
	e.Value = json.RawMessage(`{"year": 2000}`)
	assert.False(t, e.HasDate())
	assert.True(t, e.HasTime())
}

func TestEntityEmptyDateTime(t *testing.T) {
	e := &Entity{Type: datetime.EntityType, Value: json.RawMessage(`{}`)}
	assert.False(t, e.HasDate())
	assert.False(t, e.HasTime())

	now := time.Date(2020, time.January, 2, 3, 4, 5, 0, time.UTC)
	got, err := e.DateTime(now)
	require.NoError(t, err)
	assert.Equal(t, now, got)
}

func TestEntityResolveInvalid(t *testing.T) {
	e := &Entity{Type: datetime.EntityType, Value: json.RawMessage(`{"month": 2, "day": 30}`)}
	_, err := e.DateTime(time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC))
	var ferr *datetime.InvalidFieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "day", ferr.Field)
}

func TestDecodedEntityKeepsParsedValue(t *testing.T) {
	var nlu Nlu
	require.NoError(t, json.Unmarshal([]byte(`{
		"entities": [
			{"type": "YANDEX.DATETIME", "tokens": {"start": 0, "end": 1}, "value": {"day": 1, "day_is_relative": true}},
			{"type": "YANDEX.NUMBER", "tokens": {"start": 1, "end": 2}, "value": 3}
		],
		"intents": {"remind": {"slots": {"when": {"type": "YANDEX.DATETIME", "value": {"hour": 9}}}}}
	}`), &nlu))

	require.Len(t, nlu.Entities, 2)
	assert.NotNil(t, nlu.Entities[0].memo)
	assert.Nil(t, nlu.Entities[1].memo)
	assert.NotNil(t, nlu.Intents["remind"].Slot("when").memo)

	e := &nlu.Entities[0]
	assert.True(t, e.HasDate())
	e.Value = json.RawMessage(`{"hour": 9}`)
	assert.True(t, e.HasDate())
	assert.False(t, e.HasTime())
}

func TestEntityLiteralParsesEveryQuery(t *testing.T) {
	e := &Entity{Type: datetime.EntityType, Value: json.RawMessage(`{"hour": 7}`)}
	assert.True(t, e.HasTime())

	e.Value = json.RawMessage(`{"year": 2000}`)
	assert.True(t, e.HasDate())
	assert.False(t, e.HasTime())
	assert.Nil(t, e.memo)
}

func TestEntityConcurrentQueries(t *testing.T) {
	entities := map[string]*Entity{
		"constructed": NewEntity(datetime.EntityType, json.RawMessage(`{"day": 1, "day_is_relative": true}`)),
		"literal":     {Type: datetime.EntityType, Value: json.RawMessage(`{"day": 1, "day_is_relative": true}`)},
	}
	var decoded Entity
	require.NoError(t, json.Unmarshal([]byte(`{"type": "YANDEX.DATETIME", "value": {"day": 1, "day_is_relative": true}}`), &decoded))
	entities["decoded"] = &decoded

	now := time.Date(2021, time.June, 1, 12, 0, 0, 0, time.UTC)
	for name, e := range entities {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			results := make([]time.Time, 8)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.True(t, e.HasDate())
					assert.False(t, e.HasTime())
					got, err := e.DateTime(now)
					assert.NoError(t, err)
					results[i] = got
				}(i)
			}
			wg.Wait()
			for _, got := range results {
				assert.Equal(t, now.AddDate(0, 0, 1), got)
			}
		})
	}
}
