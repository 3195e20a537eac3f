package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"creditledger/internal/core"
)

type EventType string

const (
	CreditCreated EventType = "created"
	CreditUpdated EventType = "updated"
	CreditDeleted EventType = "deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case CreditCreated, CreditUpdated, CreditDeleted:
		return true
	}
	return false
}

// CreditEvent announces a committed ledger write. Credit is the state after the
// write and is nil for deletions.
type CreditEvent struct {
	Type      EventType    `json:"type"`
	ID        int64        `json:"id"`
	Credit    *core.Credit `json:"credit,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewCreditEvent(t EventType, id int64, credit *core.Credit) *CreditEvent {
	return &CreditEvent{
		Type:      t,
		ID:        id,
		Credit:    credit,
		Timestamp: time.Now().UTC(),
	}
}

func (m *CreditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CreditEventFromJSON decodes and sanity-checks a message body.
func CreditEventFromJSON(data []byte) (*CreditEvent, error) {
	var msg CreditEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid credit id %d", msg.ID)
	}
	if msg.Type != CreditDeleted && msg.Credit == nil {
		return nil, fmt.Errorf("%s event without credit", msg.Type)
	}
	return &msg, nil
}
