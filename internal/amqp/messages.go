package amqp

import (
	"encoding/json"
	"time"
)

// RecordSubmittedMessage announces a journalled income or expense. It carries
// only the journal ID; the consumer reads the entry from the journal.
type RecordSubmittedMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordSubmittedMessage(id, kind string) *RecordSubmittedMessage {
	return &RecordSubmittedMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSubmittedMessageFromJSON decodes a message body.
func RecordSubmittedMessageFromJSON(data []byte) (*RecordSubmittedMessage, error) {
	var msg RecordSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
