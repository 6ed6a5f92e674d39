package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fintrack/internal/core"
)

var errMalformed = errors.New("malformed message")

// TransactionEvent announces a committed write. It carries ids only; the
// consumer reads the transaction itself from the store.
type TransactionEvent struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(ownerID, id, action string) *TransactionEvent {
	return &TransactionEvent{ID: id, OwnerID: ownerID, Action: action, Timestamp: time.Now().UTC()}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.OwnerID == "" || msg.Action == "" {
		return nil, errMalformed
	}
	return &msg, nil
}

// ChatLogMessage is one answered chatbot exchange on its way to storage.
type ChatLogMessage struct {
	OwnerID   string    `json:"owner_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatLogMessage(m core.ChatMessage) *ChatLogMessage {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ChatLogMessage{OwnerID: m.OwnerID, Message: m.Message, Response: m.Response, Timestamp: ts}
}

func (m *ChatLogMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChatLogMessageFromJSON(data []byte) (*ChatLogMessage, error) {
	var msg ChatLogMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errMalformed
	}
	return &msg, nil
}

// ChatMessage converts the log entry back to the domain type.
func (m *ChatLogMessage) ChatMessage() core.ChatMessage {
	return core.ChatMessage{OwnerID: m.OwnerID, Message: m.Message, Response: m.Response, Timestamp: m.Timestamp}
}
