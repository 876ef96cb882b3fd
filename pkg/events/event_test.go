package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	e := BaseEvent{
		Type:       "chat.turn_completed",
		Data:       map[string]interface{}{"session_id": "s1", "confidence": 0.8},
		OccurredAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
	raw, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal("ignored", raw)
	require.NoError(t, err)
	assert.Equal(t, "chat.turn_completed", got.EventType())
	assert.Equal(t, "s1", got.String("session_id"))
	assert.True(t, e.OccurredAt.Equal(got.Timestamp()))
}

func TestUnmarshalBarePayload(t *testing.T) {
	got, err := Unmarshal("course.updated", []byte(`{"course_id":"go-101","title":"Go"}`))
	require.NoError(t, err)
	assert.Equal(t, "course.updated", got.EventType())
	assert.Equal(t, "go-101", got.String("course_id"))
	assert.Equal(t, "", got.String("missing"))

	_, err = Unmarshal("x", []byte("not json"))
	assert.Error(t, err)
}
