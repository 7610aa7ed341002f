package recorder

import (
	"sync"

	"github.com/rickgao/pushprobe/internal/race"
)

// resultBuffer is a thread-safe ring buffer of attempt results that doubles
// its capacity when it reaches 70% full. Sends never block, so a slow or
// unreachable database cannot stall the harness goroutines feeding it.
type resultBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []race.TestResult
	head     int
	tail     int
	count    int
	capacity int
	closed   bool
}

func newResultBuffer(initialCapacity int) *resultBuffer {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &resultBuffer{
		buf:      make([]race.TestResult, initialCapacity),
		capacity: initialCapacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send adds a result to the buffer. Returns false if the buffer is closed.
func (b *resultBuffer) Send(res race.TestResult) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = res
	b.tail = (b.tail + 1) % b.capacity
	b.count++

	b.cond.Signal()
	return true
}

// TryReceive attempts to receive without blocking.
func (b *resultBuffer) TryReceive() (race.TestResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return race.TestResult{}, false
	}
	return b.pop(), true
}

// Receive blocks until a result is available or the buffer is closed.
func (b *resultBuffer) Receive() (race.TestResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 && b.closed {
		return race.TestResult{}, false
	}
	return b.pop(), true
}

// Close closes the buffer. After closing, Send returns false; receivers
// drain remaining items then get the closed signal.
func (b *resultBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the current number of buffered results.
func (b *resultBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// pop removes the head element. Must be called with lock held and count > 0.
func (b *resultBuffer) pop() race.TestResult {
	res := b.buf[b.head]
	b.buf[b.head] = race.TestResult{}
	b.head = (b.head + 1) % b.capacity
	b.count--
	return res
}

// grow doubles the buffer capacity. Must be called with lock held.
func (b *resultBuffer) grow() {
	newBuf := make([]race.TestResult, b.capacity*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}
	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity *= 2
}
