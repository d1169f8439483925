package amqp

import (
	"encoding/json"
	"time"

	"frugal/internal/core"
)

// SummaryRunMessage asks the worker to recompute the monthly snapshot
// for one owner and period. It carries only the key; the worker reads
// the transaction history from the remote store itself.
type SummaryRunMessage struct {
	OwnerID   string      `json:"owner_id"`
	Period    core.Period `json:"period"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewSummaryRunMessage(ownerID string, period core.Period) *SummaryRunMessage {
	return &SummaryRunMessage{
		OwnerID:   ownerID,
		Period:    period,
		Timestamp: time.Now(),
	}
}

func (m *SummaryRunMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SummaryRunMessageFromJSON(data []byte) (*SummaryRunMessage, error) {
	var msg SummaryRunMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
