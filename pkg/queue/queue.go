package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer side: publish a typed message and return.
// The reconcile path publishes here so an UNKNOWN order outcome survives a
// process restart.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job is a registered consumer for one message type.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Type returns the message type the job handles.
	Type() string

	// Handle processes one payload. Returning an error requeues the message
	// until the retry limit.
	Handle(ctx context.Context, payload interface{}) error
}

// MessageHandler is a function that processes a message.
type MessageHandler func(context.Context, interface{}) error

// QueueConfig contains worker pool and retry settings.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is one queued unit of work.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload converts a payload back to its concrete type. A payload
// arrives as *T or T when produced in-process, and as a decoded JSON map or
// raw JSON when it came through Redis.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case map[string]interface{}:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload map: %w", err)
		}
		var result T
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	case json.RawMessage:
		var result T
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
