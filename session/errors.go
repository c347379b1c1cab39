package session

import "errors"

var (
	ErrInvalidNextState    = errors.New("handshake asked for an unknown next state")
	ErrUnknownServer       = errors.New("no backend for the requested address")
	ErrUnsupportedVersion  = errors.New("unsupported protocol version")
	ErrUnexpectedPacket    = errors.New("unexpected packet")
	ErrVerifyTokenMismatch = errors.New("verify token mismatch")
	ErrIdentityMismatch    = errors.New("backend confirmed a different player id")
	ErrBackendOnlineMode   = errors.New("backend server is in online mode")
	ErrPlayerRejected      = errors.New("backend turned the player away")
)
