package batch

import (
	"context"
	"sync"
	"time"
)

// Batcher coalesces items and hands them to a flush function either when
// the pending batch reaches size or on every interval tick, whichever
// comes first.
type Batcher[T any] struct {
	size     int
	interval time.Duration
	flush    func(ctx context.Context, items []T) error

	mu        sync.Mutex
	pending   []T
	flushChan chan struct{}
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewBatcher[T any](size int, interval time.Duration, flush func(ctx context.Context, items []T) error) *Batcher[T] {
	b := &Batcher[T]{
		size:      size,
		interval:  interval,
		flush:     flush,
		pending:   make([]T, 0, size),
		flushChan: make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}

	go b.run()

	return b
}

// Add queues an item for the next flush.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	b.pending = append(b.pending, item)
	full := len(b.pending) >= b.size
	b.mu.Unlock()

	if full {
		select {
		case b.flushChan <- struct{}{}:
		default:
		}
	}
}

// Flush drains all pending items through the flush function.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}

	items := make([]T, len(b.pending))
	copy(items, b.pending)
	b.pending = b.pending[:0]
	b.mu.Unlock()

	return b.flush(ctx, items)
}

func (b *Batcher[T]) run() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = b.Flush(context.Background())
		case <-b.flushChan:
			_ = b.Flush(context.Background())
		case <-b.stopChan:
			_ = b.Flush(context.Background())
			return
		}
	}
}

// Stop flushes remaining items and stops the background loop.
func (b *Batcher[T]) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
}

// PendingCount returns the number of queued items.
func (b *Batcher[T]) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
