package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
)

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{in: `"abc-1"`, want: "abc-1"},
		{in: `42`, want: "42"},
		{in: `null`, want: ""},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			var id ID
			err := json.Unmarshal([]byte(tt.in), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, id)
		})
	}
}

func TestTimestampFormats(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "rfc3339", in: `"2024-03-01T12:00:00Z"`, want: want},
		{name: "offset", in: `"2024-03-01T14:00:00+02:00"`, want: want},
		{name: "millis offset", in: `"2024-03-01T12:00:00.000+0000"`, want: want},
		{name: "naive", in: `"2024-03-01 12:00:00"`, want: want},
		{name: "unix millis", in: fmt.Sprint(want.UnixMilli()), want: want},
		{name: "null", in: `null`},
		{name: "garbage", in: `"yesterday"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			require.True(t, tt.want.Equal(ts.Time()), "got %s", ts.Time())
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	env, err := DecodeEnvelope("notification", []byte(`{"source":"forum","payload":{"id":1}}`))
	require.NoError(t, err)
	require.Equal(t, "notification", env.Event)
	require.Equal(t, "forum", env.Source)
	require.JSONEq(t, `{"id":1}`, string(env.Payload))

	env, err = DecodeEnvelope("notification", []byte(`{"event":"job","payload":{}}`))
	require.NoError(t, err)
	require.Equal(t, "job", env.Event)

	env, err = DecodeEnvelope("notification", []byte(` {"id":"7","message":"hi"} `))
	require.NoError(t, err)
	require.Empty(t, env.Source)
	require.JSONEq(t, `{"id":"7","message":"hi"}`, string(env.Payload))

	// A record that merely has a payload field is not an envelope.
	record := `{"id":"9","message":"build finished","payload":{"artifact":"app.tar"}}`
	env, err = DecodeEnvelope("notification", []byte(record))
	require.NoError(t, err)
	require.Equal(t, "notification", env.Event)
	require.Empty(t, env.Source)
	require.JSONEq(t, record, string(env.Payload))

	_, err = DecodeEnvelope("notification", []byte(`[1,2]`))
	require.Error(t, err)
	_, err = DecodeEnvelope("notification", []byte(`{"payload":`))
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want model.Source
	}{
		{name: "forum shape", in: `{"id":1,"sender":{"first_name":"A"},"discussion":{"id":2}}`, want: model.SourceForum},
		{name: "sender only", in: `{"id":1,"sender":{"first_name":"A"}}`, want: model.SourceSystem},
		{name: "null discussion", in: `{"id":1,"sender":{},"discussion":null}`, want: model.SourceSystem},
		{name: "system shape", in: `{"id":1,"title":"Job"}`, want: model.SourceSystem},
		{name: "invalid", in: `nope`, want: model.SourceSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Classify([]byte(tt.in)))
		})
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	require.NoError(t, ClassifyError(model.SourceSystem, nil))

	auth := &AuthError{Source: model.SourceSystem, Message: "expired"}
	require.Same(t, auth, ClassifyError(model.SourceSystem, auth))

	err := ClassifyError(model.SourceForum, fmt.Errorf("get: %w", context.DeadlineExceeded))
	require.True(t, IsUnavailable(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	server := &StatusError{Source: model.SourceForum, Code: 503}
	require.True(t, IsUnavailable(ClassifyError(model.SourceForum, server)))

	client := &StatusError{Source: model.SourceForum, Code: 404}
	got := ClassifyError(model.SourceForum, client)
	require.False(t, IsUnavailable(got))
	require.True(t, errors.Is(got, client))
}

func TestFetchOptionsNormalize(t *testing.T) {
	t.Parallel()

	require.Equal(t, FetchOptions{Page: 1, Limit: 20}, FetchOptions{}.Normalize())
	require.Equal(t, FetchOptions{Page: 3, Limit: 5, UnreadOnly: true},
		FetchOptions{Page: 3, Limit: 5, UnreadOnly: true}.Normalize())
}

func TestDegrade(t *testing.T) {
	t.Parallel()

	res := Degrade(errors.New("down"))
	require.True(t, res.Degraded)
	require.NotNil(t, res.Items)
	require.Empty(t, res.Items)
}
