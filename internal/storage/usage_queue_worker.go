package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"llm_router/internal/models"
	"llm_router/internal/queue"
	"llm_router/internal/utils"
)

// UsageWriter is what the worker needs from the repository. Tests use an
// in-memory implementation.
type UsageWriter interface {
	Create(ctx context.Context, record *models.UsageRecord) error
	CreateBatch(ctx context.Context, records []*models.UsageRecord) error
}

// UsageQueueWorker drains the usage queue in batches and writes them to the
// database, with per-record retry fallback and a dead letter queue for
// records that keep failing.
type UsageQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	writer      UsageWriter
	config      *queue.Config
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageQueueWorker creates a worker; nil config uses defaults.
func NewUsageQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, writer UsageWriter, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageQueueWorker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine.
func (w *UsageQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker after the in-flight batch completes.
func (w *UsageQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds a usage record to the queue.
func (w *UsageQueueWorker) Enqueue(ctx context.Context, record *models.UsageRecord) error {
	return w.queue.Enqueue(ctx, record)
}

func (w *UsageQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	logger := utils.NewLogger("usage-worker")

	for {
		select {
		case <-w.stopChan:
			logger.Info("Usage worker stopping")
			return
		case <-ctx.Done():
			logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx, logger)
		}
	}
}

func (w *UsageQueueWorker) processBatch(ctx context.Context, logger *utils.Logger) {
	items, err := w.queue.Dequeue(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		logger.Error("Failed to dequeue usage records", "error", err)
		time.Sleep(1 * time.Second) // back off on error
		return
	}

	if len(items) == 0 {
		return
	}

	records := make([]*models.UsageRecord, 0, len(items))
	for _, item := range items {
		record, err := decodeRecord(item)
		if err != nil {
			logger.Error("Failed to decode usage record", "error", err)
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return
	}

	logger.Debug("Processing usage batch", "count", len(records))

	if err := w.writer.CreateBatch(ctx, records); err == nil {
		return
	} else {
		logger.Error("Batch insert failed, falling back to individual inserts", "error", err)
	}

	for _, record := range records {
		if err := w.insertWithRetry(ctx, record); err != nil {
			logger.Error("Giving up on usage record", "record_id", record.ID, "error", err)
			if w.dlq != nil {
				if dlqErr := w.dlq.Add(ctx, record, err); dlqErr != nil {
					logger.Error("Failed to dead-letter usage record", "error", dlqErr)
				}
			}
		}
	}
}

func (w *UsageQueueWorker) insertWithRetry(ctx context.Context, record *models.UsageRecord) error {
	backoff := w.config.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		if lastErr = w.writer.Create(ctx, record); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("insert failed after %d retries: %w", w.config.MaxRetries, lastErr)
}

// decodeRecord handles both in-process items (*models.UsageRecord) and
// Redis items (json.RawMessage).
func decodeRecord(item interface{}) (*models.UsageRecord, error) {
	switch v := item.(type) {
	case *models.UsageRecord:
		return v, nil
	case json.RawMessage:
		var record models.UsageRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return nil, err
		}
		return &record, nil
	case []byte:
		var record models.UsageRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return nil, err
		}
		return &record, nil
	default:
		return nil, fmt.Errorf("unexpected item type %T", item)
	}
}
