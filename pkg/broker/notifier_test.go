package broker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	published map[string][][]byte
	err       error
}

func (f *fakeBroker) Connect() error                                       { return nil }
func (f *fakeBroker) ConnectAndSubscribe(h Handler, topics []string) error { return nil }
func (f *fakeBroker) Disconnect() error                                    { return nil }
func (f *fakeBroker) Subscribe(topics []string, h Handler) error           { return nil }
func (f *fakeBroker) String() string                                       { return "fake" }

func (f *fakeBroker) Publish(topic string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	if f.published == nil {
		f.published = make(map[string][][]byte)
	}
	f.published[topic] = append(f.published[topic], payload.([]byte))
	return nil
}

func TestNotifier_Notify(t *testing.T) {
	fb := &fakeBroker{}
	n := NewNotifier(fb, "", nil)
	assert.Equal(t, DefaultTopic, n.Topic())

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	msg := NewMessage(BackupCompleted, "dnac.example.com", now)
	msg.BackupID = "b-1"
	n.Notify(msg)

	require.Len(t, fb.published[DefaultTopic], 1)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(fb.published[DefaultTopic][0], &got))
	assert.Equal(t, "backup_completed", got["event_type"])
	assert.Equal(t, "2024-05-01T03:00:00Z", got["created_at"])
	assert.Equal(t, "b-1", got["backup_id"])
	assert.NotContains(t, got, "deleted")
}

func TestNotifier_PublishErrorIsSwallowed(t *testing.T) {
	n := NewNotifier(&fakeBroker{err: errors.New("no connection")}, "jobs", nil)
	assert.NotPanics(t, func() { n.Notify(NewMessage(PurgeFailed, "h", time.Now())) })
}

func TestNotifier_Nil(t *testing.T) {
	var n *Notifier
	assert.Equal(t, "", n.Topic())
	assert.NoError(t, n.Close())
	assert.NotPanics(t, func() { n.Notify(NewMessage(PurgeCompleted, "h", time.Now())) })
}

func TestDecodeMessage(t *testing.T) {
	msg := NewMessage(PurgeCompleted, "h", time.Unix(0, 0))
	msg.Deleted = []string{"a"}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	got, err := DecodeMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	_, err = DecodeMessage([]byte(`{"event_type":"agent_upgrade"}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)
}
