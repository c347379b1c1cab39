package mc

import (
	"strings"

	"github.com/google/uuid"
)

// GameProfile is the verified identity of a player.
type GameProfile struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties,omitempty"`
}

// Property is a (possibly signed) profile property such as skin textures.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
	Signed    bool   `json:"-"`
}

// UndashedID is the profile id as 32 hex characters, the format the
// session server and legacy forwarding use.
func (p GameProfile) UndashedID() string {
	return strings.ReplaceAll(p.ID.String(), "-", "")
}
