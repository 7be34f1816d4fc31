package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"statements/internal/core"
)

const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// TransactionEventMessage carries one ledger life-cycle event across
// processes. Created and updated events embed the full canonical record;
// deleted events carry only the id.
type TransactionEventMessage struct {
	Kind        string            `json:"kind"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	ID          string            `json:"id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewCreatedMessage(tx core.Transaction) *TransactionEventMessage {
	return &TransactionEventMessage{Kind: KindCreated, Transaction: &tx, ID: tx.ID, Timestamp: time.Now()}
}

func NewUpdatedMessage(tx core.Transaction) *TransactionEventMessage {
	return &TransactionEventMessage{Kind: KindUpdated, Transaction: &tx, ID: tx.ID, Timestamp: time.Now()}
}

func NewDeletedMessage(id string) *TransactionEventMessage {
	return &TransactionEventMessage{Kind: KindDeleted, ID: id, Timestamp: time.Now()}
}

func (m *TransactionEventMessage) Validate() error {
	switch m.Kind {
	case KindCreated, KindUpdated:
		if m.Transaction == nil || m.Transaction.ID == "" {
			return fmt.Errorf("%s message without transaction", m.Kind)
		}
	case KindDeleted:
		if m.ID == "" {
			return fmt.Errorf("deleted message without id")
		}
	default:
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
	return nil
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
