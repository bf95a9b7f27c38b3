package broker

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	BackupCompleted = "backup_completed"
	BackupFailed    = "backup_failed"
	PurgeCompleted  = "purge_completed"
	PurgeFailed     = "purge_failed"
)

// DefaultTopic is where job events go when no topic is configured.
const DefaultTopic = "dnac-backup/events"

// ErrUnknownEventType is raised when decoding an event this version does not know.
var ErrUnknownEventType = errors.New("unknown event type")

// Message is the job event format.
type Message struct {
	EventType string `json:"event_type"`
	Host      string `json:"host"`
	CreatedAt string `json:"created_at"`
	Error     string `json:"error,omitempty"`

	// For backups.
	BackupID    string `json:"backup_id,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`

	// For purges.
	Policy  string   `json:"policy,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
	Failed  []string `json:"failed,omitempty"`
	Kept    int      `json:"kept,omitempty"`
	Aborted bool     `json:"aborted,omitempty"`
}

// NewMessage stamps an event of type eventType for host.
func NewMessage(eventType, host string, now time.Time) Message {
	return Message{
		EventType: eventType,
		Host:      host,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

// DecodeMessage parses an event published by Notifier.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	switch msg.EventType {
	case BackupCompleted, BackupFailed, PurgeCompleted, PurgeFailed:
		return msg, nil
	}
	return msg, ErrUnknownEventType
}
