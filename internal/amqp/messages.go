package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// RecordEvent is the lightweight message published after a record lands.
// It carries only the id, the action and the future-record count; consumers
// fetch the full record from the backend.
type RecordEvent struct {
	RecordID      string    `json:"record_id"`
	Action        string    `json:"action"`
	FutureRecords int       `json:"future_records"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewRecordEvent(recordID, action string, futureRecords int) *RecordEvent {
	return &RecordEvent{
		RecordID:      recordID,
		Action:        action,
		FutureRecords: futureRecords,
		Timestamp:     time.Now(),
	}
}

func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var e RecordEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
