package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.topic = topic
	f.payload = payload
	return f.err
}

func TestMQTTSink_PublishesPerType(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, "medtime/events")

	require.NoError(t, sink.Notify(context.Background(), Event{Type: EventAlarmActive, AlarmID: 7, Name: "Losartana", LEDIndex: 2}))
	assert.Equal(t, "medtime/events/alarm_active", pub.topic)

	var ev Event
	require.NoError(t, json.Unmarshal(pub.payload, &ev))
	assert.Equal(t, int64(7), ev.AlarmID)
	assert.Equal(t, 2, ev.LEDIndex)
}

func TestMQTTSink_PublishError(t *testing.T) {
	sink := NewMQTTSink(&fakePublisher{err: errors.New("not connected")}, "t")
	assert.Error(t, sink.Notify(context.Background(), Event{Type: EventAlarmCreated}))
}
