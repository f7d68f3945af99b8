package buffer

import (
	"github.com/indigo-web/h1/transport"
)

// Buffer accumulates bytes of a single connection until they're consumed by the parser.
// The memory is split into the consumed region (before begin), the unconsumed one (from
// begin up to the write cursor, which is len(memory)) and the free capacity. The write
// cursor never exceeds maxSize.
type Buffer struct {
	memory  []byte
	begin   int
	maxSize int
}

func New(initialSize, maxSize int) *Buffer {
	if initialSize > maxSize {
		initialSize = maxSize
	}

	return &Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// ReadFrom makes a single read attempt from the source into the free capacity. Pending
// bytes are moved to the front if the write cursor has hit the capacity, otherwise the
// memory grows, but never past maxSize. If the buffer is full at the ceiling, the source
// isn't touched and WouldBlock is returned.
func (b *Buffer) ReadFrom(src transport.Reader) (n int, state transport.State, err error) {
	if len(b.memory) == cap(b.memory) && !b.makeRoom() {
		return 0, transport.WouldBlock, nil
	}

	n, state, err = src.TryRead(b.memory[len(b.memory):cap(b.memory)])
	if err != nil {
		return 0, 0, err
	}

	b.memory = b.memory[:len(b.memory)+n]
	if state == transport.Ready && n == 0 {
		state = transport.WouldBlock
	}

	return n, state, nil
}

func (b *Buffer) makeRoom() bool {
	if b.Compact() > 0 {
		return true
	}

	if cap(b.memory) >= b.maxSize {
		return false
	}

	newSize := min(max(cap(b.memory)*2, 64), b.maxSize)
	memory := make([]byte, len(b.memory), newSize)
	copy(memory, b.memory)
	b.memory = memory

	return true
}

// Compact moves the unconsumed bytes to the beginning of the memory, returning how many
// bytes of capacity were freed.
func (b *Buffer) Compact() int {
	if b.begin == 0 {
		return 0
	}

	freed := b.begin
	n := copy(b.memory, b.memory[b.begin:])
	b.memory = b.memory[:n]
	b.begin = 0

	return freed
}

// Bytes returns the unconsumed region. It stays valid until the next ReadFrom, Compact
// or Reset call.
func (b *Buffer) Bytes() []byte {
	return b.memory[b.begin:]
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.memory) - b.begin
}

// Consume marks n bytes as consumed. Consuming more than Len() is a caller bug.
func (b *Buffer) Consume(n int) {
	if n > b.Len() || n < 0 {
		panic("buffer: consuming more than buffered")
	}

	b.begin += n
}

// Reset collapses both cursors to the beginning, but only if there are no unconsumed bytes.
func (b *Buffer) Reset() {
	if b.Len() == 0 {
		b.begin = 0
		b.memory = b.memory[:0]
	}
}

// IsMaxSize reports whether the write cursor has reached the ceiling.
func (b *Buffer) IsMaxSize() bool {
	return len(b.memory) >= b.maxSize
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return cap(b.memory)
}
