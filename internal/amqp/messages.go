package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sync targets. TargetAll refreshes the ledger, the budget and the index.
const (
	TargetTransactions = "transactions"
	TargetBudget       = "budget"
	TargetIndex        = "index"
	TargetAll          = "all"
)

// SyncRequestMessage asks the worker to pull a target from Google Sheets.
type SyncRequestMessage struct {
	Target      string    `json:"target"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewSyncRequestMessage(target string) *SyncRequestMessage {
	return &SyncRequestMessage{Target: target, RequestedAt: time.Now()}
}

// Validate rejects unknown targets so they are dropped instead of retried.
func (m *SyncRequestMessage) Validate() error {
	switch m.Target {
	case TargetTransactions, TargetBudget, TargetIndex, TargetAll:
		return nil
	default:
		return fmt.Errorf("unknown sync target %q", m.Target)
	}
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ImportCompletedMessage announces that a target was reloaded.
type ImportCompletedMessage struct {
	Target    string    `json:"target"`
	Imported  int       `json:"imported"`
	Skipped   int       `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
