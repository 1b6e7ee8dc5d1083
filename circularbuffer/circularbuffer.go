// Package circularbuffer keeps the most recent N values pushed into it.
package circularbuffer

import (
	"fmt"
	"sync"

	"gregoryjjb/ringseq/ring"
)

// CircularBuffer is a bounded history on top of a ring. Once full, each push
// evicts the oldest value. It is safe for concurrent use.
type CircularBuffer[T any] struct {
	values *ring.Ring[T]
	size   int
	mu     sync.Mutex
}

func New[T any](size int) (*CircularBuffer[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("circular buffer size must be greater than 0, got %d", size)
	}

	return &CircularBuffer[T]{
		values: ring.Of[T](),
		size:   size,
	}, nil
}

// Push adds element, returning the evicted value if the buffer was full.
func (cb *CircularBuffer[T]) Push(element T) (evicted T, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.values.Len() >= cb.size {
		// Cannot fail, the ring is not empty.
		evicted, _ = cb.values.ShiftFirst()
		ok = true
	}
	cb.values.Append(element)
	return evicted, ok
}

// Each iterates over all elements in the buffer in the order they were inserted
func (cb *CircularBuffer[T]) Each(fn func(T)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	for _, v := range cb.values.ForwardCount(0, cb.values.Len()).All() {
		fn(v)
	}
}

// Snapshot copies the buffer out, oldest first.
func (cb *CircularBuffer[T]) Snapshot() []T {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.values.Slice()
}

func (cb *CircularBuffer[T]) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.values.Len()
}

func (cb *CircularBuffer[T]) Cap() int {
	return cb.size
}
