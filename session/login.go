package session

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/binary"
	"fmt"

	"github.com/realDragonium/Umbra/auth"
	"github.com/realDragonium/Umbra/forwarding"
	"github.com/realDragonium/Umbra/mc"
	"github.com/realDragonium/Umbra/packet"
	"github.com/realDragonium/Umbra/stream"
)

const verifyTokenLength = 4

func (s *Session) handleHandshake(ctx context.Context, hs *packet.Handshake) error {
	s.handshake = hs
	v, supported := s.cfg.Registries.Versions.Get(int(hs.ProtocolVersion))
	if !supported {
		v = mc.ProtocolVersion{ID: int(hs.ProtocolVersion)}
	}
	s.version = v

	host := hs.ParseServerAddress()
	s.log = s.log.With().Str("host", host).Int("protocol", v.ID).Logger()
	backend, found := s.cfg.Resolver.Resolve(host)

	switch {
	case hs.IsStatusRequest():
		if found {
			s.backend = backend
		}
		s.SwitchState(packet.StatusState)
		return nil
	case hs.IsLoginRequest():
		s.SwitchState(packet.LoginState)
		if !supported {
			s.disconnect(ctx, fmt.Sprintf("Unsupported client version, please use %s", s.cfg.Registries.Versions.Latest().LastName()))
			return fmt.Errorf("%w: %d", ErrUnsupportedVersion, hs.ProtocolVersion)
		}
		if !found {
			s.disconnect(ctx, "Unknown server")
			return fmt.Errorf("%w: %q", ErrUnknownServer, host)
		}
		s.backend = backend
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidNextState, hs.NextState)
}

// disconnect tells the client why it gets dropped. It is best effort, the
// session ends either way.
func (s *Session) disconnect(ctx context.Context, reason string) {
	if err := s.send(ctx, packet.Clientbound, packet.NewDisconnect(reason)); err != nil {
		s.log.Debug().Err(err).Msg("could not send disconnect")
	}
}

func (s *Session) handleLoginStart(ctx context.Context, pk *packet.LoginStart) error {
	s.profile = mc.GameProfile{ID: pk.ID, Name: pk.Username}
	s.identityKey = pk.IdentifiedKey
	s.log = s.log.With().Str("player", pk.Username).Logger()
	if gate, ok := s.backend.(Gatekeeper); ok {
		if reason, allowed := gate.Allow(s.client.RemoteAddr(), pk.Username); !allowed {
			s.disconnect(ctx, reason)
			return fmt.Errorf("%w: %s", ErrPlayerRejected, s.backend.Name())
		}
	}

	if !s.cfg.OnlineMode {
		s.profile = auth.OfflineProfile(pk.Username)
		if err := s.enableClientCompression(ctx); err != nil {
			return err
		}
		return s.connectBackend(ctx)
	}

	token := make([]byte, verifyTokenLength)
	if _, err := rand.Read(token); err != nil {
		return err
	}
	s.verifyToken = token
	return s.send(ctx, packet.Clientbound, &packet.EncryptionRequest{
		ServerID:    "",
		PublicKey:   s.cfg.Keys.PublicKeyDER(),
		VerifyToken: token,
	})
}

func (s *Session) handleEncryptionResponse(ctx context.Context, pk *packet.EncryptionResponse) error {
	if s.verifyToken == nil {
		return unexpected(packet.Serverbound, pk)
	}
	if err := s.checkVerifyToken(pk); err != nil {
		return err
	}
	secret, err := s.cfg.Keys.Decrypt(pk.SharedSecret)
	if err != nil {
		return fmt.Errorf("decrypting shared secret: %w", err)
	}
	if err := s.client.EnableEncryption(secret); err != nil {
		return err
	}
	// SetCompression has to travel encrypted already.
	if err := s.enableClientCompression(ctx); err != nil {
		return err
	}

	hash := auth.ServerHash("", secret, s.cfg.Keys.PublicKeyDER())
	profile, err := s.cfg.Authenticator.HasJoined(ctx, s.profile.Name, hash, forwarding.AddressOf(s.client.RemoteAddr()))
	if err != nil {
		s.disconnect(ctx, "Failed to verify username")
		return fmt.Errorf("authenticating %s: %w", s.profile.Name, err)
	}
	s.profile = profile
	return s.connectBackend(ctx)
}

func (s *Session) checkVerifyToken(pk *packet.EncryptionResponse) error {
	if pk.Signature != nil {
		return s.checkSignedNonce(pk.Salt, pk.Signature)
	}
	token, err := s.cfg.Keys.Decrypt(pk.VerifyToken)
	if err != nil || subtle.ConstantTimeCompare(token, s.verifyToken) != 1 {
		return ErrVerifyTokenMismatch
	}
	return nil
}

// checkSignedNonce verifies the signature 1.19 clients send instead of the
// encrypted verify token. It is made with the chat key from LoginStart
// over the token followed by the salt.
func (s *Session) checkSignedNonce(salt int64, signature []byte) error {
	if s.identityKey == nil {
		return fmt.Errorf("%w: signed nonce without a key", ErrVerifyTokenMismatch)
	}
	key, err := x509.ParsePKIXPublicKey(s.identityKey.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerifyTokenMismatch, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: chat key is %T", ErrVerifyTokenMismatch, key)
	}
	digest := sha256.Sum256(binary.BigEndian.AppendUint64(append([]byte(nil), s.verifyToken...), uint64(salt)))
	if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, digest[:], signature); err != nil {
		return fmt.Errorf("%w: %w", ErrVerifyTokenMismatch, err)
	}
	return nil
}

func (s *Session) enableClientCompression(ctx context.Context) error {
	threshold := s.cfg.CompressionThreshold
	if threshold < 0 || s.version.Below(mc.Minecraft_1_8) {
		return nil
	}
	if err := s.send(ctx, packet.Clientbound, &packet.SetCompression{Threshold: int32(threshold)}); err != nil {
		return err
	}
	s.client.EnableCompression(threshold)
	return nil
}

func (s *Session) player() forwarding.Player {
	return forwarding.Player{
		Profile: s.profile,
		Address: forwarding.AddressOf(s.client.RemoteAddr()),
	}
}

// connectBackend dials the backend once the profile is authoritative and
// replays the handshake and login start on its behalf.
func (s *Session) connectBackend(ctx context.Context) error {
	conn, err := s.backend.Dial(ctx, s.client.RemoteAddr())
	if err != nil {
		s.disconnect(ctx, s.backend.DisconnectMessage())
		return fmt.Errorf("connecting to %s: %w", s.backend.Name(), err)
	}
	var opts []stream.Option
	if s.cfg.MaxFrameLength > 0 {
		opts = append(opts, stream.WithMaxFrameLength(s.cfg.MaxFrameLength))
	}
	s.server = stream.NewConn(conn, opts...)
	s.backend.PlayerJoined()

	hs := *s.handshake
	hs.NextState = int32(packet.LoginState)
	if rw, ok := s.backend.Forwarding().(forwarding.HostRewriter); ok {
		if hs.ServerAddress, err = rw.RewriteHost(hs.ServerAddress, s.player()); err != nil {
			return err
		}
	}

	msg, err := s.cfg.Registries.Handshake.Serverbound.Encode(s.version, &hs)
	if err != nil {
		return err
	}
	if err := s.server.WriteMessage(ctx, msg); err != nil {
		return err
	}
	return s.send(ctx, packet.Serverbound, &packet.LoginStart{
		Username: s.profile.Name,
		ID:       s.profile.ID,
	})
}

func (s *Session) handleLoginSuccess(pk *packet.LoginSuccess) error {
	if !s.backend.Forwarding().ForwardsIdentity() {
		s.profile = pk.Profile()
	} else if pk.ID != s.profile.ID {
		return fmt.Errorf("%w: got %s, want %s", ErrIdentityMismatch, pk.ID, s.profile.ID)
	}
	if s.version.Below(mc.Minecraft_1_20_2) {
		s.SwitchState(packet.PlayState)
	}
	return nil
}

func (s *Session) handleLoginPluginRequest(ctx context.Context, pk *packet.LoginPluginRequest) (Action, error) {
	modern, ok := s.backend.Forwarding().(*forwarding.Modern)
	if !ok || pk.Identifier != forwarding.Channel {
		return Forward, nil
	}
	data, err := modern.Data(pk.Data, s.player())
	if err != nil {
		return Intercept, err
	}
	return Intercept, s.send(ctx, packet.Serverbound, &packet.LoginPluginResponse{
		MessageID:  pk.MessageID,
		Successful: true,
		Data:       data,
	})
}
