package audio

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueOrder(t *testing.T) {
	q := NewEventQueue(8)
	for i := 0; i < 5; i++ {
		require.True(t, q.Push(NewPacket(0x90, byte(60+i), 100)))
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		p, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, byte(60+i), p.data1())
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestEventQueueDropsWhenFull(t *testing.T) {
	q := NewEventQueue(4)
	require.Equal(t, 3, q.Cap())
	for i := 0; i < 3; i++ {
		require.True(t, q.Push(NewPacket(0x90, byte(i), 1)))
	}
	assert.False(t, q.Push(NewPacket(0x90, 99, 1)))
	assert.Equal(t, uint64(1), q.Dropped())

	// the rejected packet never shows up
	for i := 0; i < 3; i++ {
		p, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, byte(i), p.data1())
	}
	assert.Equal(t, 0, q.Len())
}

func TestEventQueueRoundsUp(t *testing.T) {
	assert.Equal(t, 7, NewEventQueue(5).Cap())
	assert.Equal(t, 127, NewEventQueue(128).Cap())
	assert.Equal(t, 1, NewEventQueue(0).Cap())
}

func TestEventQueueConcurrent(t *testing.T) {
	const n = 20000
	q := NewEventQueue(16)
	go func() {
		for i := 0; i < n; i++ {
			p := NewPacket(0xB0, byte(i&0x7F), byte((i>>7)&0x7F))
			for !q.Push(p) {
				runtime.Gosched()
			}
		}
	}()
	for i := 0; i < n; i++ {
		var p Packet
		var ok bool
		for {
			if p, ok = q.Pop(); ok {
				break
			}
			runtime.Gosched()
		}
		require.Equal(t, byte(i&0x7F), p.data1())
		require.Equal(t, byte((i>>7)&0x7F), p.data2())
	}
}

func TestPacketFromMessage(t *testing.T) {
	p, ok := packetFromMessage([]byte{0x93, 60, 100})
	require.True(t, ok)
	assert.Equal(t, byte(0x90), p.message())
	assert.Equal(t, byte(0x93), p.status())
	assert.Equal(t, byte(60), p.data1())
	assert.Equal(t, byte(100), p.data2())

	p, ok = packetFromMessage([]byte{0xC0, 5})
	require.True(t, ok)
	assert.Equal(t, byte(0), p.data2())

	for _, data := range [][]byte{nil, {0x90}, {0x40, 1, 2}, {0xF8, 0, 0}, {0xF0, 1, 2}} {
		_, ok := packetFromMessage(data)
		assert.False(t, ok, "%v", data)
	}
}
