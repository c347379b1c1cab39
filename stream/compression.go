package stream

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/realDragonium/Umbra/mc"
	"github.com/valyala/bytebufferpool"
)

// MaxUncompressedLength caps the announced size of a compressed frame.
const MaxUncompressedLength = 8 << 20

// Compressor writes the body of compressed frames. It keeps one deflater
// that is reset for every message and must not be shared between
// connections.
type Compressor struct {
	threshold int
	zw        *zlib.Writer
}

func NewCompressor(threshold int) *Compressor {
	return &Compressor{threshold: threshold}
}

func (c *Compressor) Threshold() int {
	return c.threshold
}

// Compress appends `VarInt dataLength | data` to dst, deflating data when it
// reaches the threshold. A data length of zero marks a raw body.
func (c *Compressor) Compress(dst *bytebufferpool.ByteBuffer, data []byte) error {
	if len(data) < c.threshold {
		dst.B = mc.AppendVarInt(dst.B, 0)
		dst.B = append(dst.B, data...)
		return nil
	}
	dst.B = mc.AppendVarInt(dst.B, int32(len(data)))
	if c.zw == nil {
		c.zw = zlib.NewWriter(dst)
	} else {
		c.zw.Reset(dst)
	}
	if _, err := c.zw.Write(data); err != nil {
		return err
	}
	return c.zw.Close()
}

// Decompressor reads the body of compressed frames, with the same
// ownership rules as Compressor.
type Decompressor struct {
	src bytes.Reader
	zr  io.ReadCloser
}

func NewDecompressor() *Decompressor {
	return &Decompressor{}
}

// Decompress appends the uncompressed data of a frame body to dst. The
// inflated size has to match the announced size exactly.
func (d *Decompressor) Decompress(dst *bytebufferpool.ByteBuffer, body []byte) error {
	buf := mc.NewBuffer(body)
	dataLen, err := buf.ReadVarInt()
	if err != nil {
		return err
	}
	rest := buf.ReadRest()
	if dataLen == 0 {
		dst.B = append(dst.B, rest...)
		return nil
	}
	if dataLen < 0 || dataLen > MaxUncompressedLength {
		return fmt.Errorf("%w: %d bytes", ErrUncompressedTooLarge, dataLen)
	}

	d.src.Reset(rest)
	if d.zr == nil {
		if d.zr, err = zlib.NewReader(&d.src); err != nil {
			return err
		}
	} else if err := d.zr.(zlib.Resetter).Reset(&d.src, nil); err != nil {
		return err
	}

	start := len(dst.B)
	dst.B = grow(dst.B, int(dataLen))
	if _, err := io.ReadFull(d.zr, dst.B[start:]); err != nil {
		dst.B = dst.B[:start]
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return fmt.Errorf("%w: announced %d bytes", ErrDecompressionLengthMismatch, dataLen)
		}
		return err
	}
	// The stream has to end here, reading on also checks the zlib trailer.
	var extra [1]byte
	n, err := d.zr.Read(extra[:])
	switch {
	case n > 0:
		dst.B = dst.B[:start]
		return fmt.Errorf("%w: more than %d bytes", ErrDecompressionLengthMismatch, dataLen)
	case err != io.EOF:
		dst.B = dst.B[:start]
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("%w: %w", ErrCorruptCompressedData, err)
	}
	return nil
}

// grow extends b by n bytes.
func grow(b []byte, n int) []byte {
	if cap(b)-len(b) < n {
		nb := make([]byte, len(b), len(b)+n)
		copy(nb, b)
		b = nb
	}
	return b[:len(b)+n]
}
