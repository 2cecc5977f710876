package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	items, err := q.Dequeue(ctx, 10, time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("got %d items, want 3", len(items))
	}
}

func TestMemoryQueue_DequeueRespectsMax(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	items, err := q.Dequeue(ctx, 2, time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if length != 3 {
		t.Errorf("length = %d, want 3", length)
	}
}

func TestMemoryQueue_DequeueTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	start := time.Now()
	items, err := q.Dequeue(context.Background(), 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %s, want the wait to elapse", elapsed)
	}
}

func TestMemoryQueue_ClosedOperationsFail(t *testing.T) {
	q := NewMemoryQueue(nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	if err := q.Enqueue(ctx, 1); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue error = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Dequeue(ctx, 1, time.Millisecond); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Dequeue error = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Length(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Length error = %v, want ErrQueueClosed", err)
	}

	// Double close is fine.
	if err := q.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewMemoryQueue(&Config{BatchSize: 100})
	defer q.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := q.Enqueue(ctx, i); err != nil {
					t.Errorf("Enqueue: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	var total int
	for {
		items, err := q.Dequeue(ctx, 50, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if len(items) == 0 {
			break
		}
		total += len(items)
	}

	if total != 100 {
		t.Errorf("drained %d items, want 100", total)
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()
	ctx := context.Background()

	if err := dlq.Add(ctx, "payload", errors.New("insert failed")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	items, err := dlq.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Error != "insert failed" {
		t.Errorf("Error = %q", items[0].Error)
	}
	if items[0].ID == "" {
		t.Error("ID is empty")
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := dlq.Remove(ctx, items[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("second Remove error = %v, want ErrItemNotFound", err)
	}
}
