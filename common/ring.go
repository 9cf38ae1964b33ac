package common

import (
	"sync"
)

// RingBuffer keeps the last size values added, safe for concurrent use.
type RingBuffer[T any] struct {
	mu     sync.Mutex
	buffer []T
	write  int
	count  int
}

func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &RingBuffer[T]{buffer: make([]T, size)}
}

// Add inserts value, overwriting the oldest if full.
func (rb *RingBuffer[T]) Add(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buffer[rb.write] = value
	rb.write = (rb.write + 1) % len(rb.buffer)
	if rb.count < len(rb.buffer) {
		rb.count++
	}
}

// Get returns the contents oldest first.
func (rb *RingBuffer[T]) Get() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]T, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		out = append(out, rb.buffer[rb.index(i)])
	}
	return out
}

// Remove drops every value for which drop returns true, keeping the order of the rest.
func (rb *RingBuffer[T]) Remove(drop func(T) bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	kept := make([]T, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		if v := rb.buffer[rb.index(i)]; !drop(v) {
			kept = append(kept, v)
		}
	}
	var zero T
	for i := range rb.buffer {
		rb.buffer[i] = zero
	}
	copy(rb.buffer, kept)
	rb.count = len(kept)
	rb.write = len(kept) % len(rb.buffer)
}

func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// index maps the i-th oldest element to its slot.
func (rb *RingBuffer[T]) index(i int) int {
	return (rb.write + len(rb.buffer) - rb.count + i) % len(rb.buffer)
}
