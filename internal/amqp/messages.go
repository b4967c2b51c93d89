package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action names the kind of change an ExpenseEvent reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ExpenseEvent is a lightweight change notification for an expense. Consumers
// that need the full record fetch it by id.
type ExpenseEvent struct {
	Action      Action    `json:"action"`
	ExpenseID   int64     `json:"expense_id"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Category    string    `json:"category,omitempty"`
	Date        string    `json:"date,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event stamped with the current time
func NewExpenseEvent(action Action, id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Action:    action,
		ExpenseID: id,
		Timestamp: time.Now(),
	}
}

// RoutingKey is the topic the event is published under, e.g. "expense.created".
func (e *ExpenseEvent) RoutingKey() string {
	return "expense." + string(e.Action)
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes an event and rejects unknown actions
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown expense event action %q", e.Action)
	}
	return &e, nil
}
