package mc

import (
	"github.com/valyala/bytebufferpool"
)

// Message is a packet id with its still encoded payload. The payload lives
// in a pooled buffer: whoever holds the message last has to call Release.
type Message struct {
	ID  int32
	buf *bytebufferpool.ByteBuffer
	off int
}

// NewMessage returns an empty message backed by a pooled buffer.
func NewMessage(id int32) *Message {
	return &Message{
		ID:  id,
		buf: bytebufferpool.Get(),
	}
}

// NewMessageFromBuffer takes ownership of buf. The payload starts at off.
func NewMessageFromBuffer(id int32, buf *bytebufferpool.ByteBuffer, off int) *Message {
	return &Message{
		ID:  id,
		buf: buf,
		off: off,
	}
}

// Payload returns the encoded packet body without the packet id. The slice
// is only valid until Release.
func (m *Message) Payload() []byte {
	if m.buf == nil {
		return nil
	}
	return m.buf.B[m.off:]
}

// Len is the payload length.
func (m *Message) Len() int {
	return len(m.Payload())
}

// Write appends to the payload.
func (m *Message) Write(p []byte) (int, error) {
	return m.buf.Write(p)
}

// SetPayload replaces the payload.
func (m *Message) SetPayload(p []byte) {
	m.buf.B = append(m.buf.B[:m.off], p...)
}

// Released reports whether the backing buffer was handed back to the pool.
func (m *Message) Released() bool {
	return m.buf == nil
}

// Release returns the backing buffer to the pool. Calling it more than once
// is a no-op.
func (m *Message) Release() {
	if m == nil || m.buf == nil {
		return
	}
	bytebufferpool.Put(m.buf)
	m.buf = nil
}
