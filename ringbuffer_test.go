package wsclient

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferAdvanceResetsWhenDrained(t *testing.T) {
	rb := newRingBuffer(1024)
	copy(rb.buf, []byte("hello"))
	rb.tail = 5

	rb.Advance(5)
	assert.Equal(t, 0, rb.head)
	assert.Equal(t, 0, rb.tail)
	assert.Equal(t, 0, rb.Len())
}

func TestRingBufferAdvancePartial(t *testing.T) {
	rb := newRingBuffer(1024)
	copy(rb.buf, []byte("hello world"))
	rb.tail = 11

	rb.Advance(6)
	assert.Equal(t, "world", string(rb.Unread()))
}

func TestRingBufferCompactSlidesUnread(t *testing.T) {
	rb := newRingBuffer(1024)
	copy(rb.buf, []byte("xxxxxhello"))
	rb.head, rb.tail = 5, 10

	rb.Compact()
	assert.Equal(t, 0, rb.head)
	assert.Equal(t, 5, rb.tail)
	assert.Equal(t, "hello", string(rb.Unread()))
}

func TestRingBufferGrowToFitCompactsBeforeGrowing(t *testing.T) {
	rb := newRingBuffer(16)
	copy(rb.buf, []byte("0123456789abcdef"))
	rb.head, rb.tail = 10, 16 // 6 unread bytes, 0 headroom

	ok := rb.growToFit(4)
	require.True(t, ok)
	assert.Equal(t, 0, rb.head)
	assert.Equal(t, 6, rb.tail)
	assert.GreaterOrEqual(t, len(rb.buf)-rb.tail, 4)
}

func TestRingBufferGrowToFitRespectsMaxLen(t *testing.T) {
	rb := newRingBuffer(8)
	rb.tail = 8 // full

	ok := rb.growToFit(100)
	assert.False(t, ok)
}

func TestRingBufferFillReadsOnce(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go server.Write([]byte("payload"))

	rb := newRingBuffer(1024)
	n, err := rb.Fill(client)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", string(rb.Unread()))
}
