// Package packet holds the typed packets the proxy understands and the
// per-state registries that map wire ids to them.
package packet

import (
	"errors"
	"fmt"

	"github.com/realDragonium/Umbra/mc"
)

var (
	ErrUnknownPacket              = errors.New("unknown packet")
	ErrProtocolDesync             = errors.New("protocol desync")
	ErrDuplicatePacketID          = errors.New("packet id already registered")
	ErrDuplicatePacketKind        = errors.New("packet already registered")
	ErrSignatureHolderUnsupported = errors.New("login start with a signature holder is not supported")
	ErrInvalidSignatureLength     = errors.New("invalid message signature length")
)

// Packet is one of the packets listed in Kind. Decode and Encode have to
// branch on exactly the same version checks.
type Packet interface {
	Kind() Kind
	Encode(buf *mc.Buffer, v mc.ProtocolVersion) error
	Decode(buf *mc.Buffer, v mc.ProtocolVersion) error
}

// Kind tags the concrete packet type. The set is closed: every Kind has
// exactly one Packet implementation in this package.
type Kind byte

const (
	UnknownKind Kind = iota
	HandshakeKind
	StatusRequestKind
	StatusResponseKind
	StatusPingKind
	LoginStartKind
	EncryptionRequestKind
	EncryptionResponseKind
	SetCompressionKind
	LoginSuccessKind
	LoginAcknowledgedKind
	LoginPluginRequestKind
	LoginPluginResponseKind
	DisconnectKind
	FinishConfigurationKind
	AcknowledgeFinishConfigurationKind
	SessionChatMessageKind
)

var kindNames = [...]string{
	UnknownKind:                        "Unknown",
	HandshakeKind:                      "Handshake",
	StatusRequestKind:                  "StatusRequest",
	StatusResponseKind:                 "StatusResponse",
	StatusPingKind:                     "StatusPing",
	LoginStartKind:                     "LoginStart",
	EncryptionRequestKind:              "EncryptionRequest",
	EncryptionResponseKind:             "EncryptionResponse",
	SetCompressionKind:                 "SetCompression",
	LoginSuccessKind:                   "LoginSuccess",
	LoginAcknowledgedKind:              "LoginAcknowledged",
	LoginPluginRequestKind:             "LoginPluginRequest",
	LoginPluginResponseKind:            "LoginPluginResponse",
	DisconnectKind:                     "Disconnect",
	FinishConfigurationKind:            "FinishConfiguration",
	AcknowledgeFinishConfigurationKind: "AcknowledgeFinishConfiguration",
	SessionChatMessageKind:             "SessionChatMessage",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Direction is the way a packet travels, seen from the game server.
type Direction byte

const (
	Serverbound Direction = iota
	Clientbound
)

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}
