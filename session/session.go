// Package session runs one player connection: the handshake, the login
// with encryption and compression, and the relay to the backend server.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/realDragonium/Umbra/auth"
	"github.com/realDragonium/Umbra/forwarding"
	"github.com/realDragonium/Umbra/mc"
	"github.com/realDragonium/Umbra/packet"
	"github.com/realDragonium/Umbra/stream"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Backend is a server players can be sent to.
type Backend interface {
	Name() string
	Forwarding() forwarding.Strategy
	Status() packet.SimpleStatus
	// DisconnectMessage is shown to players when the server can't be reached.
	DisconnectMessage() string
	Online() int
	// Dial connects to the server on behalf of the client.
	Dial(ctx context.Context, client net.Addr) (net.Conn, error)
	PlayerJoined()
	PlayerLeft()
}

// Gatekeeper is implemented by backends that can turn a player away before
// the login continues. The reason is shown to the player.
type Gatekeeper interface {
	Allow(client net.Addr, username string) (reason string, ok bool)
}

// Resolver finds the backend for the address a client connected with.
type Resolver interface {
	Resolve(host string) (Backend, bool)
}

type Config struct {
	Registries    *packet.Registries
	Resolver      Resolver
	Keys          *auth.KeyPair
	Authenticator auth.Authenticator
	OnlineMode    bool
	// CompressionThreshold is announced to clients, a negative value
	// disables compression.
	CompressionThreshold int
	// DefaultStatus answers status requests for unknown addresses.
	DefaultStatus packet.SimpleStatus
	// LoginTimeout bounds everything from the handshake until the backend
	// is connected.
	LoginTimeout   time.Duration
	MaxFrameLength int
	Logger         zerolog.Logger
}

type Session struct {
	cfg    Config
	log    zerolog.Logger
	client *stream.Conn
	server *stream.Conn

	state   *atomic.Pointer[activeState]
	closed  atomic.Bool
	version mc.ProtocolVersion
	started time.Time

	handshake   *packet.Handshake
	backend     Backend
	profile     mc.GameProfile
	identityKey *mc.IdentifiedKey
	verifyToken []byte
}

func New(cfg Config, conn net.Conn) *Session {
	var opts []stream.Option
	if cfg.MaxFrameLength > 0 {
		opts = append(opts, stream.WithMaxFrameLength(cfg.MaxFrameLength))
	}
	s := &Session{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		client:  stream.NewConn(conn, opts...),
		state:   atomic.NewPointer[activeState](nil),
		version: mc.Unknown,
		started: time.Now(),
	}
	s.SwitchState(packet.HandshakeState)
	return s
}

type activeState struct {
	handler stateHandler
}

// State is the protocol state both directions are in.
func (s *Session) State() packet.State {
	return s.state.Load().handler.State()
}

// SwitchState replaces the active state for both directions.
func (s *Session) SwitchState(state packet.State) {
	var h stateHandler
	switch state {
	case packet.StatusState:
		h = &statusState{}
	case packet.LoginState:
		h = &loginState{}
	case packet.ConfigurationState:
		h = &configurationState{}
	case packet.PlayState:
		h = &playState{}
	default:
		h = &handshakeState{}
	}
	old := s.state.Swap(&activeState{handler: h})
	if old != nil {
		activeSessions.WithLabelValues(old.handler.State().String()).Dec()
		s.log.Debug().Stringer("from", old.handler.State()).Stringer("to", state).Msg("switching state")
	}
	activeSessions.WithLabelValues(state.String()).Inc()
}

// Version is the protocol version the client announced.
func (s *Session) Version() mc.ProtocolVersion {
	return s.version
}

// BackendName is the name of the chosen backend, empty before the
// handshake picked one.
func (s *Session) BackendName() string {
	if s.backend == nil {
		return ""
	}
	return s.backend.Name()
}

// Profile is the player identity, authoritative once the backend is
// connected.
func (s *Session) Profile() mc.GameProfile {
	return s.profile
}

// ClientStages lists the pipeline layers active on the client connection.
func (s *Session) ClientStages() []stream.Stage {
	return s.client.Stages()
}

// Serve runs the session until either side disconnects. Both connections
// are closed when it returns.
func (s *Session) Serve(ctx context.Context) (err error) {
	defer func() { s.Close(err) }()
	connected, err := s.Login(ctx)
	if err != nil || !connected {
		return err
	}
	return s.Relay(ctx)
}

// Login handles the client until the backend is connected. It reports
// false without an error when the client only asked for the status.
func (s *Session) Login(ctx context.Context) (bool, error) {
	loginCtx := ctx
	if s.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		loginCtx, cancel = context.WithTimeout(ctx, s.cfg.LoginTimeout)
		defer cancel()
	}
	for s.server == nil {
		msg, err := s.client.ReadMessage(loginCtx)
		if err != nil {
			return false, err
		}
		_, err = s.dispatch(loginCtx, packet.Serverbound, msg)
		msg.Release()
		if err != nil {
			return false, err
		}
		if s.done() {
			return false, nil
		}
	}

	loginDuration.WithLabelValues(s.backend.Name(), fmt.Sprint(s.cfg.OnlineMode)).Observe(time.Since(s.started).Seconds())
	s.log.Info().Str("server", s.backend.Name()).Msg("player connected")
	return true, nil
}

// Close closes both connections and records how the session ended. Only
// the first call has an effect.
func (s *Session) Close(err error) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.client.Close()
	if s.server != nil {
		s.server.Close()
		s.backend.PlayerLeft()
	}
	activeSessions.WithLabelValues(s.State().String()).Dec()
	s.logEnd(err)
}

// done reports whether a status exchange finished.
func (s *Session) done() bool {
	st, ok := s.state.Load().handler.(*statusState)
	return ok && st.pinged
}

// Relay pumps packets both ways until either side disconnects.
func (s *Session) Relay(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pump(gctx, packet.Serverbound, s.client, s.server)
	})
	g.Go(func() error {
		return s.pump(gctx, packet.Clientbound, s.server, s.client)
	})
	err := g.Wait()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Session) pump(ctx context.Context, dir packet.Direction, from, to *stream.Conn) error {
	for {
		msg, err := from.ReadMessage(ctx)
		if err != nil {
			return err
		}
		action, err := s.dispatch(ctx, dir, msg)
		if err != nil || action == Intercept {
			msg.Release()
			if err != nil {
				return err
			}
			continue
		}
		if err := to.WriteMessage(ctx, msg); err != nil {
			return err
		}
	}
}

// dispatch decodes msg with the active state and hands it to that state.
// Packets the state has no type for are forwarded when its registry allows
// it. The caller keeps ownership of msg.
func (s *Session) dispatch(ctx context.Context, dir packet.Direction, msg *mc.Message) (Action, error) {
	h := s.state.Load().handler
	reg := s.cfg.Registries.State(h.State()).Direction(dir)
	pk, err := reg.Decode(s.registryVersion(), msg)
	if err != nil {
		if reg.Fallback && errors.Is(err, packet.ErrUnknownPacket) {
			return Forward, nil
		}
		return Intercept, err
	}
	return h.Handle(ctx, s, dir, pk)
}

// registryVersion is the version packets are looked up with. Clients that
// only ask for the status may use versions the table does not know.
func (s *Session) registryVersion() mc.ProtocolVersion {
	if _, ok := s.cfg.Registries.Versions.Get(s.version.ID); ok {
		return s.version
	}
	return s.cfg.Registries.Versions.Latest()
}

// send encodes pk for the given direction and writes it to that side.
func (s *Session) send(ctx context.Context, dir packet.Direction, pk packet.Packet) error {
	h := s.state.Load().handler
	msg, err := s.cfg.Registries.State(h.State()).Direction(dir).Encode(s.registryVersion(), pk)
	if err != nil {
		return err
	}
	if dir == packet.Clientbound {
		return s.client.WriteMessage(ctx, msg)
	}
	return s.server.WriteMessage(ctx, msg)
}

func (s *Session) logEnd(err error) {
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed):
		s.log.Debug().Msg("session closed")
	default:
		sessionErrors.WithLabelValues(errorLabel(err)).Inc()
		s.log.Warn().Err(err).Stringer("state", s.State()).Msg("session ended")
	}
}

func errorLabel(err error) string {
	for _, known := range []error{
		packet.ErrUnknownPacket, packet.ErrProtocolDesync,
		stream.ErrDecompressionLengthMismatch, stream.ErrFrameTooLarge,
		ErrVerifyTokenMismatch, ErrIdentityMismatch, ErrBackendOnlineMode,
		ErrPlayerRejected, auth.ErrNotAuthenticated, context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "other"
}
