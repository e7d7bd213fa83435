package audio

import "sync/atomic"

// ----- Packet ----- //

// Packet is one USB-MIDI style event: cable/framing byte, status byte and two data bytes.
type Packet [4]byte

// NewPacket ...
func NewPacket(status, data1, data2 byte) Packet {
	return Packet{status >> 4, status, data1, data2}
}

func (p Packet) status() byte  { return p[1] }
func (p Packet) message() byte { return p[1] & 0xF0 }
func (p Packet) data1() byte   { return p[2] & 0x7F }
func (p Packet) data2() byte   { return p[3] & 0x7F }

// packetFromMessage wraps a raw 2 or 3 byte channel message. System messages are rejected.
func packetFromMessage(data []byte) (Packet, bool) {
	if len(data) < 2 || data[0] < 0x80 || data[0] >= 0xF0 {
		return Packet{}, false
	}
	var d2 byte
	if len(data) > 2 {
		d2 = data[2]
	}
	return NewPacket(data[0], data[1], d2), true
}

// ----- Event Queue ----- //

// EventQueue is a single-producer/single-consumer ring of packets.
// head is only written by the producer and tail only by the consumer.
// One slot is kept empty so that head == tail always means "empty".
type EventQueue struct {
	buf     []Packet
	mask    uint32
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint64
}

// NewEventQueue allocates a queue with size slots, rounded up to a power of two.
func NewEventQueue(size int) *EventQueue {
	n := nextPowerOfTwo(size)
	return &EventQueue{
		buf:  make([]Packet, n),
		mask: uint32(n - 1),
	}
}

func nextPowerOfTwo(n int) int {
	p := 2
	for p < n {
		p <<= 1
	}
	return p
}

// Push appends p. When the queue is full the packet is dropped and false is returned.
// Never blocks.
func (q *EventQueue) Push(p Packet) bool {
	head := q.head.Load()
	next := (head + 1) & q.mask
	if next == q.tail.Load() {
		q.dropped.Add(1)
		return false
	}
	q.buf[head] = p
	q.head.Store(next)
	return true
}

// Pop removes the oldest packet.
func (q *EventQueue) Pop() (Packet, bool) {
	tail := q.tail.Load()
	if tail == q.head.Load() {
		return Packet{}, false
	}
	p := q.buf[tail]
	q.tail.Store((tail + 1) & q.mask)
	return p, true
}

// Len is only a snapshot when called concurrently with Push or Pop.
func (q *EventQueue) Len() int {
	return int((q.head.Load() - q.tail.Load()) & q.mask)
}

// Cap ...
func (q *EventQueue) Cap() int {
	return len(q.buf) - 1
}

// Dropped counts packets rejected because the queue was full.
func (q *EventQueue) Dropped() uint64 {
	return q.dropped.Load()
}
