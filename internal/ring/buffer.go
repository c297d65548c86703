// SPDX-License-Identifier: MIT

// Package ring implements the bounded capture queue that sits between audio
// device callbacks and the fixed-rate pipeline tick.
//
// The queue is lossy on purpose: a visualizer only cares about the most recent
// audio, so when a producer pushes more than the queue can hold the oldest bytes
// are discarded instead of blocking the device callback.
package ring

import "sync"

// Buffer is a fixed-capacity FIFO byte queue. Push never blocks beyond the
// internal mutex and never grows the backing storage; Read either returns a
// complete block or nothing at all.
type Buffer struct {
	mu   sync.Mutex
	buf  []byte
	head int // index of the oldest byte
	n    int // bytes currently stored
}

// New returns a Buffer holding at most capacity bytes. A capacity below one is
// raised to one so that Push always has somewhere to write.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Push appends p to the tail of the queue. When the result would exceed the
// capacity the oldest bytes are discarded first, so after an oversized burst
// the queue holds exactly the last Cap() bytes of p. It returns the number of
// bytes that were discarded (from the queue or from p itself).
func (b *Buffer) Push(p []byte) (dropped int) {
	if len(p) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.buf)

	// The burst alone fills the queue: keep its tail, forget everything else.
	if len(p) >= size {
		dropped = b.n + len(p) - size
		copy(b.buf, p[len(p)-size:])
		b.head = 0
		b.n = size
		return dropped
	}

	if over := b.n + len(p) - size; over > 0 {
		b.head = (b.head + over) % size
		b.n -= over
		dropped = over
	}

	tail := (b.head + b.n) % size
	written := copy(b.buf[tail:], p)
	if written < len(p) {
		copy(b.buf, p[written:])
	}
	b.n += len(p)

	return dropped
}

// Read removes exactly len(p) bytes from the head of the queue into p and
// reports true. If fewer bytes are buffered it reports false and leaves both
// the queue and p untouched; an underrun is an expected condition, not an error.
func (b *Buffer) Read(p []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) > b.n {
		return false
	}
	if len(p) == 0 {
		return true
	}

	size := len(b.buf)
	read := copy(p, b.buf[b.head:min(b.head+len(p), size)])
	if read < len(p) {
		copy(p[read:], b.buf[:len(p)-read])
	}

	b.head = (b.head + len(p)) % size
	b.n -= len(p)
	if b.n == 0 {
		b.head = 0
	}

	return true
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Cap returns the fixed capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Reset discards all buffered bytes.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.head = 0
	b.n = 0
	b.mu.Unlock()
}
