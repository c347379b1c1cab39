// Package forwarding passes the verified player identity on to backend
// servers that run in offline mode.
package forwarding

import (
	"errors"
	"fmt"
	"net"

	"github.com/realDragonium/Umbra/mc"
)

var (
	ErrUnknownMode                  = errors.New("unknown forwarding mode")
	ErrMissingSecret                = errors.New("modern forwarding needs a secret")
	ErrInvalidSignature             = errors.New("invalid forwarding signature")
	ErrUnsupportedForwardingVersion = errors.New("unsupported forwarding version")
)

type Mode string

const (
	ModeNone   Mode = "none"
	ModeLegacy Mode = "legacy"
	ModeModern Mode = "modern"
	ModeRealIP Mode = "realip"
)

// Player is the identity that gets forwarded.
type Player struct {
	Profile mc.GameProfile
	// Address is the client IP without port.
	Address string
}

// AddressOf strips the port from a remote address.
func AddressOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Strategy is one of None, *Legacy, *Modern or *RealIP.
type Strategy interface {
	Mode() Mode
	// ForwardsIdentity reports whether the backend learns the verified
	// profile. Only those backends have to confirm it on login success.
	ForwardsIdentity() bool
}

// HostRewriter is implemented by strategies that put the identity into the
// handshake sent to the backend.
type HostRewriter interface {
	Strategy
	RewriteHost(host string, p Player) (string, error)
}

type None struct{}

func (None) Mode() Mode             { return ModeNone }
func (None) ForwardsIdentity() bool { return false }

// Parse builds the strategy for a configured mode. An empty mode means none.
func Parse(mode string, secret []byte) (Strategy, error) {
	switch Mode(mode) {
	case "", ModeNone:
		return None{}, nil
	case ModeLegacy:
		return &Legacy{}, nil
	case ModeRealIP:
		return &RealIP{}, nil
	case ModeModern:
		if len(secret) == 0 {
			return nil, ErrMissingSecret
		}
		return &Modern{Secret: secret}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}
