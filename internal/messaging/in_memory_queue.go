package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

type Message struct {
	Queue   string
	Payload []byte
}

// InMemoryQueue keeps published messages in process instead of sending them to
// a broker. It is the publisher of local runs without RABBITMQ_URL.
type InMemoryQueue struct {
	mu       sync.Mutex
	messages []Message
}

var _ Publisher = (*InMemoryQueue)(nil)

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

func (q *InMemoryQueue) PublishPredictionsReady(ctx context.Context, payload PredictionsReadyPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", PredictionsReadyQueue, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, Message{Queue: PredictionsReadyQueue, Payload: data})

	slog.Info("queued message in memory", "queue", PredictionsReadyQueue, "payload", string(data))
	return nil
}

func (q *InMemoryQueue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.messages...)
}

func (q *InMemoryQueue) Close() {}
