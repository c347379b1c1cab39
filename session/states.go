package session

import (
	"context"
	"fmt"

	"github.com/realDragonium/Umbra/packet"
)

// Action tells the pump what to do with the message a packet came from.
type Action byte

const (
	// Forward relays the original message to the other side.
	Forward Action = iota
	// Intercept drops the message, the state already acted on it.
	Intercept
)

// stateHandler handles the packets of one protocol state. Every
// implementation switches over the packet types its registry can decode.
type stateHandler interface {
	State() packet.State
	Handle(ctx context.Context, s *Session, dir packet.Direction, pk packet.Packet) (Action, error)
}

func unexpected(dir packet.Direction, pk packet.Packet) error {
	return fmt.Errorf("%w: %v %v", ErrUnexpectedPacket, dir, pk.Kind())
}

type handshakeState struct{}

func (*handshakeState) State() packet.State { return packet.HandshakeState }

func (*handshakeState) Handle(ctx context.Context, s *Session, dir packet.Direction, pk packet.Packet) (Action, error) {
	if hs, ok := pk.(*packet.Handshake); ok && dir == packet.Serverbound {
		return Intercept, s.handleHandshake(ctx, hs)
	}
	return Intercept, unexpected(dir, pk)
}

type statusState struct {
	pinged bool
}

func (*statusState) State() packet.State { return packet.StatusState }

func (st *statusState) Handle(ctx context.Context, s *Session, dir packet.Direction, pk packet.Packet) (Action, error) {
	if dir != packet.Serverbound {
		return Intercept, unexpected(dir, pk)
	}
	switch pk := pk.(type) {
	case *packet.StatusRequest:
		status, online := s.cfg.DefaultStatus, 0
		if s.backend != nil {
			status, online = s.backend.Status(), s.backend.Online()
		}
		return Intercept, s.send(ctx, packet.Clientbound, status.Response(online, s.registryVersion()))
	case *packet.StatusPing:
		st.pinged = true
		return Intercept, s.send(ctx, packet.Clientbound, pk)
	}
	return Intercept, unexpected(dir, pk)
}

type loginState struct{}

func (*loginState) State() packet.State { return packet.LoginState }

func (*loginState) Handle(ctx context.Context, s *Session, dir packet.Direction, pk packet.Packet) (Action, error) {
	if dir == packet.Serverbound {
		switch pk := pk.(type) {
		case *packet.LoginStart:
			if s.server == nil && s.verifyToken == nil {
				return Intercept, s.handleLoginStart(ctx, pk)
			}
		case *packet.EncryptionResponse:
			if s.server == nil {
				return Intercept, s.handleEncryptionResponse(ctx, pk)
			}
		case *packet.LoginAcknowledged:
			s.SwitchState(packet.ConfigurationState)
			return Forward, nil
		case *packet.LoginPluginResponse:
			return Forward, nil
		}
		return Intercept, unexpected(dir, pk)
	}

	switch pk := pk.(type) {
	case *packet.EncryptionRequest:
		return Intercept, ErrBackendOnlineMode
	case *packet.SetCompression:
		if pk.Threshold > 0 {
			s.server.EnableCompression(int(pk.Threshold))
		}
		return Intercept, nil
	case *packet.LoginSuccess:
		return Forward, s.handleLoginSuccess(pk)
	case *packet.LoginPluginRequest:
		return s.handleLoginPluginRequest(ctx, pk)
	case *packet.Disconnect:
		s.log.Info().Str("reason", pk.Reason).Msg("backend refused login")
		return Forward, nil
	}
	return Intercept, unexpected(dir, pk)
}

type configurationState struct{}

func (*configurationState) State() packet.State { return packet.ConfigurationState }

func (*configurationState) Handle(_ context.Context, s *Session, dir packet.Direction, pk packet.Packet) (Action, error) {
	switch pk.(type) {
	case *packet.AcknowledgeFinishConfiguration:
		s.SwitchState(packet.PlayState)
	case *packet.FinishConfiguration:
		s.log.Debug().Msg("backend finished configuration")
	}
	return Forward, nil
}

type playState struct{}

func (*playState) State() packet.State { return packet.PlayState }

func (*playState) Handle(_ context.Context, s *Session, _ packet.Direction, pk packet.Packet) (Action, error) {
	switch pk := pk.(type) {
	case *packet.SessionChatMessage:
		s.log.Debug().Str("message", pk.Message).Bool("signed", pk.Signature != nil).Msg("chat")
	}
	return Forward, nil
}
