package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LedgerEvent announces one completed ledger mutation. It carries only
// the action and the transaction id; consumers read current state from
// the database.
type LedgerEvent struct {
	Action    string    `json:"action"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(action string, id int64) *LedgerEvent {
	return &LedgerEvent{
		Action:    action,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) Validate() error {
	switch e.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return errors.New("unknown ledger event action: " + e.Action)
	}
	if e.ID <= 0 {
		return errors.New("ledger event requires a positive transaction id")
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON creates an event from JSON bytes
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
