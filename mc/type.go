package mc

import (
	"io"
)

const (
	// MaxVarIntLen is the maximum number of bytes a VarInt can take on the wire.
	MaxVarIntLen = 5
	// DefaultMaxStringLength is the largest string (in characters) the protocol allows.
	DefaultMaxStringLength = 32767
)

// VarInt is variable-length data encoding a two's complement signed 32-bit integer
type VarInt int32

// Encode a VarInt
func (v VarInt) Encode() []byte {
	return AppendVarInt(make([]byte, 0, VarIntSize(int32(v))), int32(v))
}

// Decode a VarInt
func (v *VarInt) Decode(r io.ByteReader) error {
	n, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	*v = VarInt(n)
	return nil
}

// AppendVarInt appends the encoding of n to bb.
func AppendVarInt(bb []byte, n int32) []byte {
	num := uint32(n)
	for {
		b := num & 0x7F
		num >>= 7
		if num != 0 {
			b |= 0x80
		}
		bb = append(bb, byte(b))
		if num == 0 {
			return bb
		}
	}
}

// VarIntSize returns how many bytes the encoding of n takes.
func VarIntSize(n int32) int {
	num := uint32(n)
	size := 1
	for num >= 0x80 {
		num >>= 7
		size++
	}
	return size
}

// ReadVarInt reads a VarInt one byte at a time. It never reads past the
// last byte of the VarInt, so it is safe to use directly on a stream.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var n uint32
	for i := 0; ; i++ {
		if i >= MaxVarIntLen {
			return 0, ErrMalformedVarInt
		}
		sec, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		n |= uint32(sec&0x7F) << uint32(7*i)
		if sec&0x80 == 0 {
			break
		}
	}
	return int32(n), nil
}
