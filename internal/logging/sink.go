package logging

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LogRecord captures one authorized request as seen by the router core.
type LogRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	UserID         string    `json:"user_id"`
	Endpoint       string    `json:"endpoint"`
	Category       string    `json:"category,omitempty"`
	RankingOrder   string    `json:"ranking_order,omitempty"`
	AnalysisTarget string    `json:"analysis_target,omitempty"`
	StatusCode     int       `json:"status_code"`
	DurationMS     int64     `json:"duration_ms"`
	Error          string    `json:"error,omitempty"`
}

// Sink receives log records from the request path. Enqueue must be cheap and
// non-blocking; delivery is best effort.
type Sink interface {
	Enqueue(rec *LogRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records. Used when the S3 sink is disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *LogRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}

// BatchWriter uploads a batch of records somewhere durable. Implemented by
// S3Writer; tests substitute an in-memory writer.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*LogRecord) (string, error)
}

// S3SinkConfig holds settings for the buffered S3 sink.
type S3SinkConfig struct {
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
}

// S3Sink buffers records in memory and flushes them in batches, either when
// FlushSize records accumulate or FlushInterval elapses.
type S3Sink struct {
	writer   BatchWriter
	config   S3SinkConfig
	buffer   chan *LogRecord
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewS3Sink creates a buffered sink and starts its flush loop.
func NewS3Sink(writer BatchWriter, cfg S3SinkConfig) *S3Sink {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Minute
	}

	s := &S3Sink{
		writer:   writer,
		config:   cfg,
		buffer:   make(chan *LogRecord, cfg.BufferSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	go s.run()
	return s
}

// Enqueue adds a record to the buffer. When the buffer is full the record is
// dropped rather than blocking the request path.
func (s *S3Sink) Enqueue(rec *LogRecord) error {
	select {
	case s.buffer <- rec:
		return nil
	default:
		return fmt.Errorf("log buffer full, record dropped")
	}
}

// Shutdown stops the flush loop and writes out any buffered records.
func (s *S3Sink) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	select {
	case <-s.doneChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *S3Sink) run() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]*LogRecord, 0, s.config.FlushSize)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := s.writer.WriteBatch(ctx, pending); err != nil {
			Errorf("log sink flush failed count=%d: %v", len(pending), err)
		}
		cancel()
		pending = pending[:0]
	}

	for {
		select {
		case rec := <-s.buffer:
			pending = append(pending, rec)
			if len(pending) >= s.config.FlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopChan:
			// Drain whatever is already buffered, then flush once.
			for {
				select {
				case rec := <-s.buffer:
					pending = append(pending, rec)
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}
