package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/realDragonium/Umbra/mc"
	"github.com/valyala/bytebufferpool"
)

// DefaultMaxFrameLength is the largest frame a vanilla server accepts.
const DefaultMaxFrameLength = 2 << 20

// Stage is one layer of the pipeline.
type Stage string

const (
	StageNetwork     Stage = "network"
	StageEncryption  Stage = "encryption"
	StageCompression Stage = "compression"
	StageFraming     Stage = "framing"
)

var aLongTimeAgo = time.Unix(1, 0)

// Conn reads and writes whole messages on a net.Conn. One goroutine may
// read while another writes; enabling a layer waits for both to finish
// their current message.
type Conn struct {
	conn           net.Conn
	maxFrameLength int

	readMu       sync.Mutex
	pushback     *PushbackReader
	reader       *bufio.Reader
	decompressor *Decompressor

	writeMu    sync.Mutex
	writer     io.Writer
	compressor *Compressor

	encryption *Encryption
}

type Option func(*Conn)

// WithMaxFrameLength overrides DefaultMaxFrameLength.
func WithMaxFrameLength(n int) Option {
	return func(c *Conn) {
		c.maxFrameLength = n
	}
}

func NewConn(conn net.Conn, opts ...Option) *Conn {
	c := &Conn{
		conn:           conn,
		maxFrameLength: DefaultMaxFrameLength,
		pushback:       NewPushbackReader(conn),
		writer:         conn,
	}
	c.reader = bufio.NewReader(c.pushback)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) NetConn() net.Conn {
	return c.conn
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// Stages lists the active layers from the socket upwards.
func (c *Conn) Stages() []Stage {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	stages := []Stage{StageNetwork}
	if c.encryption != nil {
		stages = append(stages, StageEncryption)
	}
	if c.compressor != nil {
		stages = append(stages, StageCompression)
	}
	return append(stages, StageFraming)
}

// EnableEncryption puts the cipher beneath every later read and write.
// Bytes that were buffered but not consumed yet were read before the
// cipher existed, so they are pushed back and decrypted as well.
func (c *Conn) EnableEncryption(secret []byte) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.encryption != nil {
		return ErrEncryptionEnabled
	}
	enc, err := NewEncryption(secret)
	if err != nil {
		return err
	}

	buffered, _ := c.reader.Peek(c.reader.Buffered())
	if err := c.pushback.Prepend(buffered); err != nil {
		return err
	}
	c.reader.Reset(enc.Reader(c.pushback))
	c.writer = enc.Writer(c.conn)
	c.encryption = enc
	return nil
}

// EnableCompression switches both directions to the compressed frame
// format. A negative threshold removes the layer again.
func (c *Conn) EnableCompression(threshold int) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if threshold < 0 {
		c.compressor = nil
		c.decompressor = nil
		return
	}
	c.compressor = NewCompressor(threshold)
	c.decompressor = NewDecompressor()
}

// ReadMessage reads the next message. The caller owns the returned message.
func (c *Conn) ReadMessage(ctx context.Context) (*mc.Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	done := watchContext(ctx, c.conn.SetReadDeadline)
	msg, err := c.readMessage()
	if ctxErr := done(); ctxErr != nil {
		msg.Release()
		return nil, ctxErr
	}
	return msg, err
}

func (c *Conn) readMessage() (*mc.Message, error) {
	length, err := mc.ReadVarInt(c.reader)
	if err != nil {
		return nil, err
	}
	switch {
	case length == 0:
		return nil, ErrZeroLengthFrame
	case length < 0 || int(length) > c.maxFrameLength:
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	frame := bytebufferpool.Get()
	frame.B = grow(frame.B[:0], int(length))
	if _, err := io.ReadFull(c.reader, frame.B); err != nil {
		bytebufferpool.Put(frame)
		return nil, err
	}

	if c.decompressor != nil {
		data := bytebufferpool.Get()
		err := c.decompressor.Decompress(data, frame.B)
		bytebufferpool.Put(frame)
		if err != nil {
			bytebufferpool.Put(data)
			return nil, err
		}
		frame = data
	}

	buf := mc.NewBuffer(frame.B)
	id, err := buf.ReadVarInt()
	if err != nil {
		bytebufferpool.Put(frame)
		return nil, err
	}
	return mc.NewMessageFromBuffer(id, frame, buf.Position()), nil
}

// WriteMessage writes msg as one frame and releases it, also on error.
func (c *Conn) WriteMessage(ctx context.Context, msg *mc.Message) error {
	defer msg.Release()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	done := watchContext(ctx, c.conn.SetWriteDeadline)
	err := c.writeMessage(msg)
	if ctxErr := done(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Conn) writeMessage(msg *mc.Message) error {
	payload := msg.Payload()
	frame := bytebufferpool.Get()
	defer bytebufferpool.Put(frame)

	if c.compressor == nil {
		frame.B = mc.AppendVarInt(frame.B[:0], int32(mc.VarIntSize(msg.ID)+len(payload)))
		frame.B = mc.AppendVarInt(frame.B, msg.ID)
		frame.B = append(frame.B, payload...)
	} else {
		data := bytebufferpool.Get()
		defer bytebufferpool.Put(data)
		data.B = mc.AppendVarInt(data.B[:0], msg.ID)
		data.B = append(data.B, payload...)

		body := bytebufferpool.Get()
		defer bytebufferpool.Put(body)
		body.B = body.B[:0]
		if err := c.compressor.Compress(body, data.B); err != nil {
			return err
		}
		frame.B = mc.AppendVarInt(frame.B[:0], int32(len(body.B)))
		frame.B = append(frame.B, body.B...)
	}

	if n := len(frame.B); n > c.maxFrameLength+mc.MaxVarIntLen {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	_, err := c.writer.Write(frame.B)
	return err
}

// watchContext expires the deadline set by setDeadline once ctx is done, so
// a blocked read or write returns. The returned func stops watching and
// reports the context error if it fired.
func watchContext(ctx context.Context, setDeadline func(time.Time) error) func() error {
	if ctx.Done() == nil {
		return func() error { return nil }
	}
	stop := context.AfterFunc(ctx, func() {
		setDeadline(aLongTimeAgo)
	})
	return func() error {
		if stop() {
			return nil
		}
		setDeadline(time.Time{})
		return ctx.Err()
	}
}
