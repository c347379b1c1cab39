package forwarding

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/realDragonium/Umbra/mc"
)

const (
	// Channel is the login plugin channel backends query for forwarding data.
	Channel = "velocity:player_info"
	// ModernVersion is the forwarding format this proxy writes.
	ModernVersion = 1
)

// Modern is Velocity style forwarding: the backend asks for the identity
// over a login plugin request and receives it signed with a shared secret.
type Modern struct {
	Secret []byte
}

func (*Modern) Mode() Mode             { return ModeModern }
func (*Modern) ForwardsIdentity() bool { return true }

// Data answers a forwarding request. The request payload optionally holds
// the highest version the backend understands.
func (m *Modern) Data(request []byte, p Player) ([]byte, error) {
	requested := int32(ModernVersion)
	if len(request) > 0 {
		requested = int32(request[0])
	}
	if requested < ModernVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedForwardingVersion, requested)
	}

	body := mc.NewBuffer(nil)
	body.WriteVarInt(ModernVersion)
	body.WriteString(p.Address)
	body.WriteUUID(p.Profile.ID)
	body.WriteString(p.Profile.Name)
	body.WriteProperties(p.Profile.Properties)

	mac := hmac.New(sha256.New, m.Secret)
	mac.Write(body.Bytes())
	return append(mac.Sum(nil), body.Bytes()...), nil
}

// Verify checks the signature of forwarding data and decodes it.
func Verify(secret, data []byte) (Player, error) {
	if len(data) < sha256.Size {
		return Player{}, ErrInvalidSignature
	}
	sig, body := data[:sha256.Size], data[sha256.Size:]
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return Player{}, ErrInvalidSignature
	}

	buf := mc.NewBuffer(body)
	version, err := buf.ReadVarInt()
	if err != nil {
		return Player{}, err
	}
	if version != ModernVersion {
		return Player{}, fmt.Errorf("%w: %d", ErrUnsupportedForwardingVersion, version)
	}
	var p Player
	if p.Address, err = buf.ReadString(0); err != nil {
		return Player{}, err
	}
	if p.Profile.ID, err = buf.ReadUUID(); err != nil {
		return Player{}, err
	}
	if p.Profile.Name, err = buf.ReadString(16); err != nil {
		return Player{}, err
	}
	if p.Profile.Properties, err = buf.ReadProperties(); err != nil {
		return Player{}, err
	}
	return p, nil
}
