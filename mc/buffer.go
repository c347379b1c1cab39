package mc

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Buffer is a byte slice with a read cursor. Writes append to the slice,
// reads consume from the cursor. A failed read leaves the cursor untouched.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer returns a Buffer reading from data. Writes append after data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns everything written to the buffer, including consumed bytes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len is the total amount of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Remaining is the amount of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

// Position of the read cursor.
func (b *Buffer) Position() int {
	return b.pos
}

func (b *Buffer) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if b.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferUnderrun, n, b.Remaining())
	}
	bb := b.data[b.pos : b.pos+n]
	b.pos += n
	return bb, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	bb, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return bb[0], nil
}

func (b *Buffer) WriteByte(v byte) error {
	b.data = append(b.data, v)
	return nil
}

// ReadBytes reads exactly n bytes. The returned slice aliases the buffer.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	return b.take(n)
}

func (b *Buffer) WriteBytes(bb []byte) {
	b.data = append(b.data, bb...)
}

// ReadRest consumes every unread byte.
func (b *Buffer) ReadRest() []byte {
	bb, _ := b.take(b.Remaining())
	return bb
}

func (b *Buffer) ReadVarInt() (int32, error) {
	start := b.pos
	n, err := ReadVarInt(b)
	if err != nil {
		b.pos = start
		return 0, err
	}
	return n, nil
}

func (b *Buffer) WriteVarInt(n int32) {
	b.data = AppendVarInt(b.data, n)
}

func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadByte()
	if err != nil {
		return false, err
	}
	return v != 0x00, nil
}

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.data = append(b.data, 0x01)
		return
	}
	b.data = append(b.data, 0x00)
}

func (b *Buffer) ReadUnsignedShort() (uint16, error) {
	bb, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(bb), nil
}

func (b *Buffer) WriteUnsignedShort(v uint16) {
	b.data = binary.BigEndian.AppendUint16(b.data, v)
}

func (b *Buffer) ReadShort() (int16, error) {
	v, err := b.ReadUnsignedShort()
	return int16(v), err
}

func (b *Buffer) WriteShort(v int16) {
	b.WriteUnsignedShort(uint16(v))
}

func (b *Buffer) ReadInt() (int32, error) {
	bb, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(bb)), nil
}

func (b *Buffer) WriteInt(v int32) {
	b.data = binary.BigEndian.AppendUint32(b.data, uint32(v))
}

func (b *Buffer) ReadLong() (int64, error) {
	bb, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(bb)), nil
}

func (b *Buffer) WriteLong(v int64) {
	b.data = binary.BigEndian.AppendUint64(b.data, uint64(v))
}

// ReadString reads a VarInt length prefixed UTF-8 string of at most max
// characters. A max of 0 means DefaultMaxStringLength.
func (b *Buffer) ReadString(max int) (string, error) {
	if max <= 0 {
		max = DefaultMaxStringLength
	}
	start := b.pos
	l, err := b.ReadVarInt()
	if err != nil {
		return "", err
	}
	// a character takes at most 4 bytes in UTF-8
	if int(l) > max*utf8.UTFMax {
		b.pos = start
		return "", fmt.Errorf("%w: %d bytes, max %d characters", ErrStringTooLong, l, max)
	}
	bb, err := b.take(int(l))
	if err != nil {
		b.pos = start
		return "", err
	}
	if n := utf8.RuneCount(bb); n > max {
		b.pos = start
		return "", fmt.Errorf("%w: %d characters, max %d", ErrStringTooLong, n, max)
	}
	return string(bb), nil
}

func (b *Buffer) WriteString(s string) {
	b.WriteVarInt(int32(len(s)))
	b.data = append(b.data, s...)
}

// ReadByteArray reads a VarInt length prefixed byte array into a new slice.
func (b *Buffer) ReadByteArray() ([]byte, error) {
	start := b.pos
	l, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	bb, err := b.take(int(l))
	if err != nil {
		b.pos = start
		return nil, err
	}
	return copyBytes(bb), nil
}

func (b *Buffer) WriteByteArray(bb []byte) {
	b.WriteVarInt(int32(len(bb)))
	b.data = append(b.data, bb...)
}

// ReadShortByteArray reads a byte array with a short length prefix, as used
// by 1.7 encryption packets.
func (b *Buffer) ReadShortByteArray() ([]byte, error) {
	start := b.pos
	l, err := b.ReadShort()
	if err != nil {
		return nil, err
	}
	bb, err := b.take(int(l))
	if err != nil {
		b.pos = start
		return nil, err
	}
	return copyBytes(bb), nil
}

func (b *Buffer) WriteShortByteArray(bb []byte) {
	b.WriteShort(int16(len(bb)))
	b.data = append(b.data, bb...)
}

// copyBytes never returns nil, so an empty array survives a round trip.
func copyBytes(bb []byte) []byte {
	cp := make([]byte, len(bb))
	copy(cp, bb)
	return cp
}

// ReadUUID reads a UUID as two big-endian 64-bit halves.
func (b *Buffer) ReadUUID() (uuid.UUID, error) {
	var id uuid.UUID
	bb, err := b.take(16)
	if err != nil {
		return id, err
	}
	copy(id[:], bb)
	return id, nil
}

func (b *Buffer) WriteUUID(id uuid.UUID) {
	b.data = append(b.data, id[:]...)
}

// IdentifiedKey is the public key a 1.19 - 1.19.2 client signs chat with.
type IdentifiedKey struct {
	ExpiresAt int64
	PublicKey []byte
	Signature []byte
}

func (b *Buffer) ReadIdentifiedKey() (*IdentifiedKey, error) {
	start := b.pos
	var key IdentifiedKey
	var err error
	if key.ExpiresAt, err = b.ReadLong(); err != nil {
		return nil, err
	}
	if key.PublicKey, err = b.ReadByteArray(); err != nil {
		b.pos = start
		return nil, err
	}
	if key.Signature, err = b.ReadByteArray(); err != nil {
		b.pos = start
		return nil, err
	}
	return &key, nil
}

func (b *Buffer) WriteIdentifiedKey(key *IdentifiedKey) {
	b.WriteLong(key.ExpiresAt)
	b.WriteByteArray(key.PublicKey)
	b.WriteByteArray(key.Signature)
}

func (b *Buffer) ReadProperties() ([]Property, error) {
	start := b.pos
	n, err := b.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		b.pos = start
		return nil, ErrNegativeLength
	}
	var props []Property
	for i := int32(0); i < n; i++ {
		var p Property
		if p.Name, err = b.ReadString(0); err != nil {
			break
		}
		if p.Value, err = b.ReadString(0); err != nil {
			break
		}
		if p.Signed, err = b.ReadBool(); err != nil {
			break
		}
		if p.Signed {
			if p.Signature, err = b.ReadString(0); err != nil {
				break
			}
		}
		props = append(props, p)
	}
	if err != nil {
		b.pos = start
		return nil, err
	}
	return props, nil
}

func (b *Buffer) WriteProperties(props []Property) {
	b.WriteVarInt(int32(len(props)))
	for _, p := range props {
		b.WriteString(p.Name)
		b.WriteString(p.Value)
		b.WriteBool(p.Signed)
		if p.Signed {
			b.WriteString(p.Signature)
		}
	}
}
