package packet

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/realDragonium/Umbra/mc"
)

const (
	MaxUsernameLength = 16
	MaxServerIDLength = 20
	MaxChannelLength  = 32767
)

type LoginStart struct {
	Username string
	// ID is only sent by 1.19.1 and newer clients.
	ID uuid.UUID
	// IdentifiedKey is only sent by 1.19 - 1.19.2 clients.
	IdentifiedKey *mc.IdentifiedKey
}

func (*LoginStart) Kind() Kind { return LoginStartKind }

func (pk *LoginStart) Encode(buf *mc.Buffer, v mc.ProtocolVersion) error {
	buf.WriteString(pk.Username)
	if v.Below(mc.Minecraft_1_19) {
		return nil
	}

	if v.Below(mc.Minecraft_1_19_3) {
		buf.WriteBool(pk.IdentifiedKey != nil)
		if pk.IdentifiedKey != nil {
			buf.WriteIdentifiedKey(pk.IdentifiedKey)
		}
	}

	if v.AtLeast(mc.Minecraft_1_20_2) {
		buf.WriteUUID(pk.ID)
		return nil
	}

	if v.AtLeast(mc.Minecraft_1_19_1) {
		switch {
		case pk.IdentifiedKey != nil && v.Below(mc.Minecraft_1_19_3):
			return ErrSignatureHolderUnsupported
		case pk.ID != uuid.Nil:
			buf.WriteBool(true)
			buf.WriteUUID(pk.ID)
		default:
			buf.WriteBool(false)
		}
	}
	return nil
}

func (pk *LoginStart) Decode(buf *mc.Buffer, v mc.ProtocolVersion) (err error) {
	pk.IdentifiedKey = nil
	pk.ID = uuid.Nil
	if pk.Username, err = buf.ReadString(MaxUsernameLength); err != nil {
		return err
	}
	if v.Below(mc.Minecraft_1_19) {
		return nil
	}

	if v.Below(mc.Minecraft_1_19_3) {
		hasKey, err := buf.ReadBool()
		if err != nil {
			return err
		}
		if hasKey {
			if pk.IdentifiedKey, err = buf.ReadIdentifiedKey(); err != nil {
				return err
			}
		}
	}

	if v.AtLeast(mc.Minecraft_1_20_2) {
		pk.ID, err = buf.ReadUUID()
		return err
	}

	if v.AtLeast(mc.Minecraft_1_19_1) {
		hasID, err := buf.ReadBool()
		if err != nil {
			return err
		}
		if hasID {
			if pk.ID, err = buf.ReadUUID(); err != nil {
				return err
			}
		}
	}
	return nil
}

type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (*EncryptionRequest) Kind() Kind { return EncryptionRequestKind }

func (pk *EncryptionRequest) Encode(buf *mc.Buffer, v mc.ProtocolVersion) error {
	buf.WriteString(pk.ServerID)
	if v.Below(mc.Minecraft_1_8) {
		buf.WriteShortByteArray(pk.PublicKey)
		buf.WriteShortByteArray(pk.VerifyToken)
		return nil
	}
	buf.WriteByteArray(pk.PublicKey)
	buf.WriteByteArray(pk.VerifyToken)
	return nil
}

func (pk *EncryptionRequest) Decode(buf *mc.Buffer, v mc.ProtocolVersion) (err error) {
	if pk.ServerID, err = buf.ReadString(MaxServerIDLength); err != nil {
		return err
	}
	if v.Below(mc.Minecraft_1_8) {
		if pk.PublicKey, err = buf.ReadShortByteArray(); err != nil {
			return err
		}
		pk.VerifyToken, err = buf.ReadShortByteArray()
		return err
	}
	if pk.PublicKey, err = buf.ReadByteArray(); err != nil {
		return err
	}
	pk.VerifyToken, err = buf.ReadByteArray()
	return err
}

type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
	// Salt and Signature replace the verify token when a 1.19 - 1.19.2
	// client signs the nonce with its chat key. Signature is nil otherwise.
	Salt      int64
	Signature []byte
}

func (*EncryptionResponse) Kind() Kind { return EncryptionResponseKind }

func (pk *EncryptionResponse) Encode(buf *mc.Buffer, v mc.ProtocolVersion) error {
	if v.Below(mc.Minecraft_1_8) {
		buf.WriteShortByteArray(pk.SharedSecret)
		buf.WriteShortByteArray(pk.VerifyToken)
		return nil
	}
	buf.WriteByteArray(pk.SharedSecret)
	if v.InRange(mc.Minecraft_1_19, mc.Minecraft_1_19_3) {
		hasToken := pk.Signature == nil
		buf.WriteBool(hasToken)
		if !hasToken {
			buf.WriteLong(pk.Salt)
			buf.WriteByteArray(pk.Signature)
			return nil
		}
	}
	buf.WriteByteArray(pk.VerifyToken)
	return nil
}

func (pk *EncryptionResponse) Decode(buf *mc.Buffer, v mc.ProtocolVersion) (err error) {
	pk.Signature = nil
	pk.Salt = 0
	if v.Below(mc.Minecraft_1_8) {
		if pk.SharedSecret, err = buf.ReadShortByteArray(); err != nil {
			return err
		}
		pk.VerifyToken, err = buf.ReadShortByteArray()
		return err
	}
	if pk.SharedSecret, err = buf.ReadByteArray(); err != nil {
		return err
	}
	if v.InRange(mc.Minecraft_1_19, mc.Minecraft_1_19_3) {
		hasToken, err := buf.ReadBool()
		if err != nil {
			return err
		}
		if !hasToken {
			pk.VerifyToken = nil
			if pk.Salt, err = buf.ReadLong(); err != nil {
				return err
			}
			pk.Signature, err = buf.ReadByteArray()
			return err
		}
	}
	pk.VerifyToken, err = buf.ReadByteArray()
	return err
}

type SetCompression struct {
	Threshold int32
}

func (*SetCompression) Kind() Kind { return SetCompressionKind }

func (pk *SetCompression) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteVarInt(pk.Threshold)
	return nil
}

func (pk *SetCompression) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	pk.Threshold, err = buf.ReadVarInt()
	return err
}

type LoginSuccess struct {
	ID         uuid.UUID
	Username   string
	Properties []mc.Property
}

func (*LoginSuccess) Kind() Kind { return LoginSuccessKind }

func (pk *LoginSuccess) Encode(buf *mc.Buffer, v mc.ProtocolVersion) error {
	switch {
	case v.AtLeast(mc.Minecraft_1_16):
		buf.WriteUUID(pk.ID)
	case v.AtLeast(mc.Minecraft_1_7_6):
		buf.WriteString(pk.ID.String())
	default:
		buf.WriteString(strings.ReplaceAll(pk.ID.String(), "-", ""))
	}
	buf.WriteString(pk.Username)
	if v.AtLeast(mc.Minecraft_1_19) {
		buf.WriteProperties(pk.Properties)
	}
	return nil
}

func (pk *LoginSuccess) Decode(buf *mc.Buffer, v mc.ProtocolVersion) (err error) {
	pk.Properties = nil
	if v.AtLeast(mc.Minecraft_1_16) {
		if pk.ID, err = buf.ReadUUID(); err != nil {
			return err
		}
	} else {
		s, err := buf.ReadString(36)
		if err != nil {
			return err
		}
		if pk.ID, err = uuid.Parse(s); err != nil {
			return fmt.Errorf("login success uuid %q: %w", s, err)
		}
	}
	if pk.Username, err = buf.ReadString(MaxUsernameLength); err != nil {
		return err
	}
	if v.AtLeast(mc.Minecraft_1_19) {
		pk.Properties, err = buf.ReadProperties()
	}
	return err
}

// Profile returns the identity the server confirmed.
func (pk *LoginSuccess) Profile() mc.GameProfile {
	return mc.GameProfile{
		ID:         pk.ID,
		Name:       pk.Username,
		Properties: pk.Properties,
	}
}

type LoginAcknowledged struct{}

func (*LoginAcknowledged) Kind() Kind                                  { return LoginAcknowledgedKind }
func (*LoginAcknowledged) Encode(*mc.Buffer, mc.ProtocolVersion) error { return nil }
func (*LoginAcknowledged) Decode(*mc.Buffer, mc.ProtocolVersion) error { return nil }

type LoginPluginRequest struct {
	MessageID  int32
	Identifier string
	Data       []byte
}

func (*LoginPluginRequest) Kind() Kind { return LoginPluginRequestKind }

func (pk *LoginPluginRequest) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteVarInt(pk.MessageID)
	buf.WriteString(pk.Identifier)
	buf.WriteBytes(pk.Data)
	return nil
}

func (pk *LoginPluginRequest) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	if pk.MessageID, err = buf.ReadVarInt(); err != nil {
		return err
	}
	if pk.Identifier, err = buf.ReadString(MaxChannelLength); err != nil {
		return err
	}
	pk.Data = append([]byte{}, buf.ReadRest()...)
	return nil
}

type LoginPluginResponse struct {
	MessageID  int32
	Successful bool
	Data       []byte
}

func (*LoginPluginResponse) Kind() Kind { return LoginPluginResponseKind }

func (pk *LoginPluginResponse) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteVarInt(pk.MessageID)
	buf.WriteBool(pk.Successful)
	buf.WriteBytes(pk.Data)
	return nil
}

func (pk *LoginPluginResponse) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	if pk.MessageID, err = buf.ReadVarInt(); err != nil {
		return err
	}
	if pk.Successful, err = buf.ReadBool(); err != nil {
		return err
	}
	pk.Data = append([]byte{}, buf.ReadRest()...)
	return nil
}

// Disconnect is the login phase disconnect, its reason is a JSON chat component.
type Disconnect struct {
	Reason string
}

func (*Disconnect) Kind() Kind { return DisconnectKind }

func (pk *Disconnect) Encode(buf *mc.Buffer, _ mc.ProtocolVersion) error {
	buf.WriteString(pk.Reason)
	return nil
}

func (pk *Disconnect) Decode(buf *mc.Buffer, _ mc.ProtocolVersion) (err error) {
	pk.Reason, err = buf.ReadString(0)
	return err
}

// NewDisconnect wraps a plain text reason into a chat component.
func NewDisconnect(reason string) *Disconnect {
	text, _ := json.Marshal(DescriptionJSON{Text: reason})
	return &Disconnect{Reason: string(text)}
}
