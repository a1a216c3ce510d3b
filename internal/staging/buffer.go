// Package staging provides the bounded circular slot pool shared between the
// dataflow pipelines and the compute stage.
//
// A Buffer holds a fixed number of tile slots over one long-lived backing
// array. The producer reserves a contiguous range of free slots, fills them,
// and pushes them; the consumer waits for a contiguous filled range, reads
// it, and pops it. Ranges are handed out in FIFO order and never overlap, so
// a slot is owned by exactly one side at a time and the returned slices can
// be written and read without further synchronization.
package staging

import (
	"fmt"
	"sync"
)

// Buffer is a bounded FIFO pool of equally sized tile slots.
type Buffer struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	data      []uint32
	slots     int
	slotWords int

	head   int // next slot the consumer will read
	tail   int // next slot the producer will write
	filled int // slots pushed and not yet popped
	free   int // slots neither reserved nor filled
}

// New allocates a buffer of slots tile slots, each slotWords wide.
func New(slots, slotWords int) (*Buffer, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("staging: slot count must be positive, got %d", slots)
	}
	if slotWords <= 0 {
		return nil, fmt.Errorf("staging: slot width must be positive, got %d", slotWords)
	}
	b := &Buffer{
		data:      make([]uint32, slots*slotWords),
		slots:     slots,
		slotWords: slotWords,
		free:      slots,
	}
	b.notFull = sync.NewCond(&b.mu)
	b.notEmpty = sync.NewCond(&b.mu)
	return b, nil
}

// Slots returns the buffer capacity in slots.
func (b *Buffer) Slots() int { return b.slots }

// SlotWords returns the width of one slot in 32-bit words.
func (b *Buffer) SlotWords() int { return b.slotWords }

// ReserveBack blocks until n free slots exist, claims them, and returns the
// backing words of the claimed range. The range stays invisible to the
// consumer until PushBack. Reservations must be sized so that the range
// never wraps the circular backing array; callers reserve in uniform chunks
// and size the buffer as a multiple of the chunk.
func (b *Buffer) ReserveBack(n int) []uint32 {
	b.checkCount(n)
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.free < n {
		b.notFull.Wait()
	}
	if b.tail+n > b.slots {
		panic("staging: reservation wraps the slot pool")
	}
	start := b.tail * b.slotWords
	b.tail = (b.tail + n) % b.slots
	b.free -= n
	return b.data[start : start+n*b.slotWords]
}

// PushBack publishes the oldest n reserved slots to the consumer.
func (b *Buffer) PushBack(n int) {
	b.checkCount(n)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.filled+b.free+n > b.slots {
		panic("staging: push exceeds reserved slots")
	}
	b.filled += n
	b.notEmpty.Broadcast()
}

// WaitFront blocks until n filled slots exist and returns the backing words
// of the oldest filled range without consuming it.
func (b *Buffer) WaitFront(n int) []uint32 {
	b.checkCount(n)
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.filled < n {
		b.notEmpty.Wait()
	}
	if b.head+n > b.slots {
		panic("staging: read range wraps the slot pool")
	}
	start := b.head * b.slotWords
	return b.data[start : start+n*b.slotWords]
}

// PopFront releases the oldest n filled slots back to the producer.
func (b *Buffer) PopFront(n int) {
	b.checkCount(n)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.filled < n {
		panic("staging: pop exceeds filled slots")
	}
	b.head = (b.head + n) % b.slots
	b.filled -= n
	b.free += n
	b.notFull.Broadcast()
}

func (b *Buffer) checkCount(n int) {
	if n <= 0 || n > b.slots {
		panic(fmt.Sprintf("staging: slot count %d out of range 1..%d", n, b.slots))
	}
}
