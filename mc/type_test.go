package mc_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/realDragonium/Umbra/mc"
)

var varIntCases = []struct {
	decoded mc.VarInt
	encoded []byte
}{
	{
		decoded: mc.VarInt(0),
		encoded: []byte{0x00},
	},
	{
		decoded: mc.VarInt(1),
		encoded: []byte{0x01},
	},
	{
		decoded: mc.VarInt(127),
		encoded: []byte{0x7f},
	},
	{
		decoded: mc.VarInt(128),
		encoded: []byte{0x80, 0x01},
	},
	{
		decoded: mc.VarInt(255),
		encoded: []byte{0xff, 0x01},
	},
	{
		decoded: mc.VarInt(300),
		encoded: []byte{0xac, 0x02},
	},
	{
		decoded: mc.VarInt(2097151),
		encoded: []byte{0xff, 0xff, 0x7f},
	},
	{
		decoded: mc.VarInt(2147483647),
		encoded: []byte{0xff, 0xff, 0xff, 0xff, 0x07},
	},
	{
		decoded: mc.VarInt(-1),
		encoded: []byte{0xff, 0xff, 0xff, 0xff, 0x0f},
	},
	{
		decoded: mc.VarInt(-2147483648),
		encoded: []byte{0x80, 0x80, 0x80, 0x80, 0x08},
	},
}

func TestVarInt(t *testing.T) {
	t.Run("encode", func(t *testing.T) {
		for _, tc := range varIntCases {
			if !bytes.Equal(tc.decoded.Encode(), tc.encoded) {
				t.Errorf("encoding: got: %v; want: %v", tc.decoded.Encode(), tc.encoded)
			}
		}
	})

	t.Run("decode", func(t *testing.T) {
		for _, tc := range varIntCases {
			var actualDecoded mc.VarInt
			if err := actualDecoded.Decode(bytes.NewReader(tc.encoded)); err != nil {
				t.Errorf("decoding: %s", err)
			}

			if actualDecoded != tc.decoded {
				t.Errorf("decoding: got %v; want: %v", actualDecoded, tc.decoded)
			}
		}
	})

	t.Run("size", func(t *testing.T) {
		for _, tc := range varIntCases {
			if size := mc.VarIntSize(int32(tc.decoded)); size != len(tc.encoded) {
				t.Errorf("size of %d: got %d; want: %d", tc.decoded, size, len(tc.encoded))
			}
		}
	})
}

func TestReadVarInt(t *testing.T) {
	for _, tc := range varIntCases {
		t.Run(fmt.Sprint(tc.decoded), func(t *testing.T) {
			reader := bytes.NewReader(append(tc.encoded, 0xAA))
			decodedValue, err := mc.ReadVarInt(reader)
			if err != nil {
				t.Fatal(err)
			}
			if decodedValue != int32(tc.decoded) {
				t.Errorf("decoding: got %v; want: %v", decodedValue, tc.decoded)
			}
			if reader.Len() != 1 {
				t.Errorf("read past the VarInt, %d bytes left", reader.Len())
			}
		})
	}
}

func TestReadVarInt_ReturnError_WhenLargerThan5(t *testing.T) {
	data := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	_, err := mc.ReadVarInt(bytes.NewReader(data))
	if !errors.Is(err, mc.ErrMalformedVarInt) {
		t.Fatalf("expected ErrMalformedVarInt but got: %v", err)
	}
}
