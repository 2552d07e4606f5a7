package amqp

import (
	"encoding/json"
	"time"
)

// Sync operations carried by TransactionSyncMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TransactionSyncMessage is the lightweight message queued for the
// export worker. It carries only the transaction id and the operation;
// the worker fetches the current row from the database, so a message
// can never carry stale data.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id int64, op string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
