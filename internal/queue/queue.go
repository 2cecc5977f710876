// Package queue provides the buffering layer between the request path and
// the usage-record writer. Two backends: an in-memory channel queue for
// standalone deployments (records lost on restart) and a Redis list queue
// that survives restarts and supports multiple worker pods.
package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of JSON-serializable items.
type Queue interface {
	// Enqueue adds an item. Returns ErrQueueClosed after Close.
	Enqueue(ctx context.Context, item interface{}) error

	// Dequeue retrieves up to maxItems. It waits up to wait for the first
	// item, then drains whatever else is immediately available. An empty
	// slice means the wait elapsed with nothing queued.
	Dequeue(ctx context.Context, maxItems int, wait time.Duration) ([]interface{}, error)

	// Length returns the current queue depth.
	Length(ctx context.Context) (int, error)

	// Close shuts the queue down.
	Close() error
}

// DeadLetterQueue holds items the worker gave up on, for operator
// inspection and manual replay.
type DeadLetterQueue interface {
	Add(ctx context.Context, item interface{}, cause error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem wraps a failed item with its failure context.
type DeadLetterItem struct {
	ID        string      `json:"id"`
	Item      interface{} `json:"item"`
	Error     string      `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// Config holds queue tuning knobs shared by both backends.
type Config struct {
	BatchSize    int           // max items per worker batch
	BatchTimeout time.Duration // max wait before a partial batch is processed
	MaxRetries   int           // per-item retries before the DLQ
	RetryBackoff time.Duration // initial backoff between retries
	QueueName    string        // key suffix for the Redis backend
}

// DefaultConfig returns the tuning used when no explicit config is given.
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}
