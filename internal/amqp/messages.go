package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionAppendedMessage announces a row written to the sheet. Every
// dashboard instance bound to the exchange refreshes on receipt; Source lets
// the instance that made the append skip its own message.
type TransactionAppendedMessage struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	UpdatedRange string    `json:"updatedRange"`
	Kind         string    `json:"kind"`
	Category     string    `json:"category"`
	Amount       string    `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewTransactionAppendedMessage creates a message with a fresh id
func NewTransactionAppendedMessage(source, updatedRange, kind, category, amount string) *TransactionAppendedMessage {
	return &TransactionAppendedMessage{
		ID:           uuid.NewString(),
		Source:       source,
		UpdatedRange: updatedRange,
		Kind:         kind,
		Category:     category,
		Amount:       amount,
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionAppendedMessageFromJSON creates a message from JSON bytes
func TransactionAppendedMessageFromJSON(data []byte) (*TransactionAppendedMessage, error) {
	var msg TransactionAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, fmt.Errorf("message id %q: %w", msg.ID, err)
	}
	return &msg, nil
}
