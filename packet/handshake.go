package packet

import (
	"strings"

	"github.com/realDragonium/Umbra/mc"
)

const (
	ForgeSeparator  = "\x00"
	RealIPSeparator = "///"

	// MaxHostnameLength leaves room for forge markers and forwarding data.
	MaxHostnameLength = 1024
)

type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (*Handshake) Kind() Kind { return HandshakeKind }

func (pk *Handshake) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteVarInt(pk.ProtocolVersion)
	buf.WriteString(pk.ServerAddress)
	buf.WriteUnsignedShort(pk.ServerPort)
	buf.WriteVarInt(pk.NextState)
	return nil
}

func (pk *Handshake) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	if pk.ProtocolVersion, err = buf.ReadVarInt(); err != nil {
		return err
	}
	if pk.ServerAddress, err = buf.ReadString(MaxHostnameLength); err != nil {
		return err
	}
	if pk.ServerPort, err = buf.ReadUnsignedShort(); err != nil {
		return err
	}
	pk.NextState, err = buf.ReadVarInt()
	return err
}

func (pk *Handshake) IsStatusRequest() bool {
	return pk.NextState == int32(StatusState)
}

func (pk *Handshake) IsLoginRequest() bool {
	return pk.NextState == int32(LoginState)
}

func (pk *Handshake) IsForgeAddress() bool {
	return len(strings.Split(pk.ServerAddress, ForgeSeparator)) > 1
}

// ForgeMarker returns the forge token (e.g. "FML2") sent after the host, if any.
func (pk *Handshake) ForgeMarker() string {
	parts := strings.SplitN(pk.ServerAddress, ForgeSeparator, 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ParseServerAddress strips forge and real-ip suffixes and the trailing dot
// some clients send for SRV lookups.
func (pk *Handshake) ParseServerAddress() string {
	addr := pk.ServerAddress
	addr = strings.Split(addr, ForgeSeparator)[0]
	addr = strings.Split(addr, RealIPSeparator)[0]
	addr = strings.TrimSuffix(addr, ".")
	return strings.ToLower(addr)
}
