package packet

import (
	"fmt"

	"github.com/realDragonium/Umbra/mc"
)

const (
	MaxChatLength       = 256
	MessageSignatureLen = 256
	// LastSeenBitSetLen holds the 20 acknowledgement bits of the last seen messages.
	LastSeenBitSetLen = 3
)

type LastSeenMessages struct {
	Offset       int32
	Acknowledged [LastSeenBitSetLen]byte
}

// SessionChatMessage is the signed chat packet of 1.19.3 and newer clients.
type SessionChatMessage struct {
	Message   string
	Timestamp int64
	Salt      int64
	Signature []byte
	LastSeen  LastSeenMessages
}

func (*SessionChatMessage) Kind() Kind { return SessionChatMessageKind }

func (pk *SessionChatMessage) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteString(pk.Message)
	buf.WriteLong(pk.Timestamp)
	buf.WriteLong(pk.Salt)
	buf.WriteBool(pk.Signature != nil)
	if pk.Signature != nil {
		if len(pk.Signature) != MessageSignatureLen {
			return fmt.Errorf("%w: got %d bytes", ErrInvalidSignatureLength, len(pk.Signature))
		}
		buf.WriteBytes(pk.Signature)
	}
	buf.WriteVarInt(pk.LastSeen.Offset)
	buf.WriteBytes(pk.LastSeen.Acknowledged[:])
	return nil
}

func (pk *SessionChatMessage) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	pk.Signature = nil
	if pk.Message, err = buf.ReadString(MaxChatLength); err != nil {
		return err
	}
	if pk.Timestamp, err = buf.ReadLong(); err != nil {
		return err
	}
	if pk.Salt, err = buf.ReadLong(); err != nil {
		return err
	}
	signed, err := buf.ReadBool()
	if err != nil {
		return err
	}
	if signed {
		sig, err := buf.ReadBytes(MessageSignatureLen)
		if err != nil {
			return err
		}
		pk.Signature = append([]byte{}, sig...)
	}
	if pk.LastSeen.Offset, err = buf.ReadVarInt(); err != nil {
		return err
	}
	acked, err := buf.ReadBytes(LastSeenBitSetLen)
	if err != nil {
		return err
	}
	copy(pk.LastSeen.Acknowledged[:], acked)
	return nil
}
