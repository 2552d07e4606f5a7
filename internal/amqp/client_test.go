package amqp

import (
	"testing"
	"time"
)

func TestNewTransactionSyncMessage(t *testing.T) {
	msg := NewTransactionSyncMessage(12345, OpUpsert)

	if msg.ID != 12345 {
		t.Errorf("ID = %v, want 12345", msg.ID)
	}
	if msg.Op != OpUpsert {
		t.Errorf("Op = %v, want %v", msg.Op, OpUpsert)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestTransactionSyncMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &TransactionSyncMessage{
		ID:        12345,
		Op:        OpDelete,
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransactionSyncMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("TransactionSyncMessageFromJSON() error = %v", err)
	}

	if parsed.ID != msg.ID {
		t.Errorf("Parsed ID = %v, want %v", parsed.ID, msg.ID)
	}
	if parsed.Op != msg.Op {
		t.Errorf("Parsed Op = %v, want %v", parsed.Op, msg.Op)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestTransactionSyncMessage_InvalidJSON(t *testing.T) {
	if _, err := TransactionSyncMessageFromJSON([]byte(`{"id": "not_a_number"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
