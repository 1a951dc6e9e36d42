package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

// Event is one row of the outbox table. AggregateID doubles as the broker
// partition/routing key so that events for one order stay ordered.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	EventID       string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}

// Message is the broker-neutral form handed to a Producer.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}
