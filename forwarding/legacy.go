package forwarding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/realDragonium/Umbra/mc"
	"github.com/realDragonium/Umbra/packet"
)

// Legacy is BungeeCord style forwarding: the client address, the undashed
// uuid and the profile properties are appended to the handshake host,
// separated by null bytes.
type Legacy struct{}

func (*Legacy) Mode() Mode             { return ModeLegacy }
func (*Legacy) ForwardsIdentity() bool { return true }

type legacyProperty struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

func (*Legacy) RewriteHost(host string, p Player) (string, error) {
	parts := strings.SplitN(host, packet.ForgeSeparator, 3)

	var b strings.Builder
	b.WriteString(parts[0])
	b.WriteString(packet.ForgeSeparator)
	b.WriteString(p.Address)
	b.WriteString(packet.ForgeSeparator)
	b.WriteString(p.Profile.UndashedID())

	props := make([]legacyProperty, 0, len(p.Profile.Properties))
	for _, prop := range p.Profile.Properties {
		props = append(props, legacyProperty{Name: prop.Name, Value: prop.Value, Signature: prop.Signature})
	}
	text, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	b.WriteString(packet.ForgeSeparator)
	b.Write(text)

	if len(parts) > 1 && parts[1] != "" {
		b.WriteString(packet.ForgeSeparator)
		b.WriteString(parts[1])
		b.WriteString(packet.ForgeSeparator)
	}
	return b.String(), nil
}

// ParseLegacyHost reads the identity back out of a rewritten host, the way
// a backend does.
func ParseLegacyHost(host string) (string, Player, error) {
	parts := strings.Split(host, packet.ForgeSeparator)
	if len(parts) < 4 {
		return "", Player{}, fmt.Errorf("legacy host has %d parts, want at least 4", len(parts))
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return "", Player{}, fmt.Errorf("legacy uuid %q: %w", parts[2], err)
	}
	var props []legacyProperty
	if err := json.Unmarshal([]byte(parts[3]), &props); err != nil {
		return "", Player{}, fmt.Errorf("legacy properties: %w", err)
	}

	p := Player{
		Address: parts[1],
		Profile: mc.GameProfile{ID: id},
	}
	for _, prop := range props {
		p.Profile.Properties = append(p.Profile.Properties, mc.Property{
			Name:      prop.Name,
			Value:     prop.Value,
			Signature: prop.Signature,
			Signed:    prop.Signature != "",
		})
	}
	return parts[0], p, nil
}
