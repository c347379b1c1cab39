package session_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/realDragonium/Umbra/auth"
	"github.com/realDragonium/Umbra/forwarding"
	"github.com/realDragonium/Umbra/mc"
	"github.com/realDragonium/Umbra/packet"
	"github.com/realDragonium/Umbra/session"
	"github.com/realDragonium/Umbra/stream"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	testRegistries = mustRegistries()
	testKeys       = mustKeys()
	notchID        = uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
)

func mustRegistries() *packet.Registries {
	r, err := packet.NewRegistries(mc.DefaultVersionTable())
	if err != nil {
		panic(err)
	}
	return r
}

func mustKeys() *auth.KeyPair {
	k, err := auth.GenerateKeyPair()
	if err != nil {
		panic(err)
	}
	return k
}

type fakeBackend struct {
	strategy forwarding.Strategy
	conns    chan net.Conn
	dialErr  error
	joined   atomic.Int32
	left     atomic.Int32
}

func newFakeBackend(strategy forwarding.Strategy) *fakeBackend {
	return &fakeBackend{strategy: strategy, conns: make(chan net.Conn, 1)}
}

func (b *fakeBackend) Name() string                    { return "lobby" }
func (b *fakeBackend) Forwarding() forwarding.Strategy { return b.strategy }
func (b *fakeBackend) DisconnectMessage() string       { return "lobby is offline" }
func (b *fakeBackend) Online() int                     { return int(b.joined.Load() - b.left.Load()) }
func (b *fakeBackend) PlayerJoined()                   { b.joined.Inc() }
func (b *fakeBackend) PlayerLeft()                     { b.left.Inc() }

func (b *fakeBackend) Status() packet.SimpleStatus {
	return packet.SimpleStatus{Name: "Lobby", Description: "welcome", MaxPlayers: 100}
}

func (b *fakeBackend) Dial(_ context.Context, _ net.Addr) (net.Conn, error) {
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	c1, c2 := net.Pipe()
	b.conns <- c2
	return c1, nil
}

type resolver map[string]session.Backend

func (r resolver) Resolve(host string) (session.Backend, bool) {
	b, ok := r[host]
	return b, ok
}

type fakeAuth struct {
	hash string
}

func (a *fakeAuth) HasJoined(_ context.Context, username, serverHash, _ string) (mc.GameProfile, error) {
	a.hash = serverHash
	return mc.GameProfile{
		ID:         notchID,
		Name:       username,
		Properties: []mc.Property{{Name: "textures", Value: "e30=", Signature: "c2ln", Signed: true}},
	}, nil
}

// peer speaks the protocol on the other end of a pipe. It writes in the
// out direction and reads in the opposite one.
type peer struct {
	t    *testing.T
	conn *stream.Conn
	out  packet.Direction
	v    mc.ProtocolVersion
}

func newPeer(t *testing.T, conn net.Conn, out packet.Direction, v mc.ProtocolVersion) *peer {
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: stream.NewConn(conn), out: out, v: v}
}

func (p *peer) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	p.t.Cleanup(cancel)
	return ctx
}

func (p *peer) send(state packet.State, pk packet.Packet) {
	p.t.Helper()
	msg, err := testRegistries.State(state).Direction(p.out).Encode(p.v, pk)
	if err != nil {
		p.t.Fatal(err)
	}
	if err := p.conn.WriteMessage(p.ctx(), msg); err != nil {
		p.t.Fatal(err)
	}
}

func (p *peer) expect(state packet.State, kind packet.Kind) packet.Packet {
	p.t.Helper()
	in := packet.Clientbound
	if p.out == packet.Clientbound {
		in = packet.Serverbound
	}
	msg, err := p.conn.ReadMessage(p.ctx())
	if err != nil {
		p.t.Fatalf("waiting for %v: %v", kind, err)
	}
	defer msg.Release()
	pk, err := testRegistries.State(state).Direction(in).Decode(p.v, msg)
	if err != nil {
		p.t.Fatal(err)
	}
	if pk.Kind() != kind {
		p.t.Fatalf("got %v; want %v", pk.Kind(), kind)
	}
	return pk
}

func (b *fakeBackend) accept(t *testing.T, v mc.ProtocolVersion) *peer {
	t.Helper()
	select {
	case conn := <-b.conns:
		return newPeer(t, conn, packet.Clientbound, v)
	case <-time.After(5 * time.Second):
		t.Fatal("backend was never dialed")
	}
	return nil
}

type harness struct {
	client  *peer
	session *session.Session
	errCh   chan error
}

func start(t *testing.T, cfg session.Config, v mc.ProtocolVersion) *harness {
	t.Helper()
	if cfg.Registries == nil {
		cfg.Registries = testRegistries
	}
	if cfg.Keys == nil {
		cfg.Keys = testKeys
	}
	cfg.Logger = zerolog.Nop()

	c1, c2 := net.Pipe()
	s := session.New(cfg, c1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(context.Background())
	}()
	return &harness{
		client:  newPeer(t, c2, packet.Serverbound, v),
		session: s,
		errCh:   errCh,
	}
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	return nil
}

func (h *harness) handshake(nextState packet.State) {
	h.client.send(packet.HandshakeState, &packet.Handshake{
		ProtocolVersion: int32(h.client.v.ID),
		ServerAddress:   "play.example.com",
		ServerPort:      25565,
		NextState:       int32(nextState),
	})
}

// encrypt answers an encryption request the way a client does.
func encrypt(t *testing.T, req *packet.EncryptionRequest, secret, token []byte) *packet.EncryptionResponse {
	t.Helper()
	key, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pub := key.(*rsa.PublicKey)
	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	if err != nil {
		t.Fatal(err)
	}
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, pub, token)
	if err != nil {
		t.Fatal(err)
	}
	return &packet.EncryptionResponse{SharedSecret: encSecret, VerifyToken: encToken}
}

func TestSession_Status(t *testing.T) {
	backend := newFakeBackend(forwarding.None{})
	h := start(t, session.Config{Resolver: resolver{"play.example.com": backend}}, mc.Minecraft_1_20_3)

	h.handshake(packet.StatusState)
	h.client.send(packet.StatusState, &packet.StatusRequest{})
	resp := h.client.expect(packet.StatusState, packet.StatusResponseKind).(*packet.StatusResponse)

	var status packet.ResponseJSON
	if err := json.Unmarshal([]byte(resp.JSONResponse), &status); err != nil {
		t.Fatal(err)
	}
	if status.Version.Name != "Lobby" || status.Version.Protocol != mc.Minecraft_1_20_3.ID {
		t.Errorf("unexpected version: %+v", status.Version)
	}
	if status.Description.Text != "welcome" {
		t.Errorf("unexpected description: %q", status.Description.Text)
	}

	h.client.send(packet.StatusState, &packet.StatusPing{Time: 42})
	pong := h.client.expect(packet.StatusState, packet.StatusPingKind).(*packet.StatusPing)
	if pong.Time != 42 {
		t.Errorf("got pong %d; want 42", pong.Time)
	}
	if err := h.wait(t); err != nil {
		t.Errorf("expected a clean end, got: %v", err)
	}
}

func TestSession_OnlineLogin(t *testing.T) {
	v := mc.Minecraft_1_20_3
	backend := newFakeBackend(forwarding.None{})
	authenticator := &fakeAuth{}
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		Authenticator:        authenticator,
		OnlineMode:           true,
		CompressionThreshold: 256,
	}, v)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})
	req := h.client.expect(packet.LoginState, packet.EncryptionRequestKind).(*packet.EncryptionRequest)
	if len(req.VerifyToken) != 4 {
		t.Errorf("got %d byte verify token; want 4", len(req.VerifyToken))
	}

	secret := []byte("0123456789abcdef")
	h.client.send(packet.LoginState, encrypt(t, req, secret, req.VerifyToken))
	if err := h.client.conn.EnableEncryption(secret); err != nil {
		t.Fatal(err)
	}
	// Only readable when it was encrypted before it was sent.
	comp := h.client.expect(packet.LoginState, packet.SetCompressionKind).(*packet.SetCompression)
	if comp.Threshold != 256 {
		t.Errorf("got threshold %d; want 256", comp.Threshold)
	}
	h.client.conn.EnableCompression(int(comp.Threshold))

	server := backend.accept(t, v)
	hs := server.expect(packet.HandshakeState, packet.HandshakeKind).(*packet.Handshake)
	if hs.ServerAddress != "play.example.com" || hs.NextState != int32(packet.LoginState) {
		t.Errorf("unexpected handshake: %+v", hs)
	}
	loginStart := server.expect(packet.LoginState, packet.LoginStartKind).(*packet.LoginStart)
	if diff := cmp.Diff(&packet.LoginStart{Username: "Notch", ID: notchID}, loginStart); diff != "" {
		t.Errorf("login start mismatch (-want +got):\n%s", diff)
	}
	if want := auth.ServerHash("", secret, testKeys.PublicKeyDER()); authenticator.hash != want {
		t.Errorf("got server hash %q; want %q", authenticator.hash, want)
	}

	server.send(packet.LoginState, &packet.LoginSuccess{ID: notchID, Username: "Notch"})
	h.client.expect(packet.LoginState, packet.LoginSuccessKind)
	h.client.send(packet.LoginState, &packet.LoginAcknowledged{})
	server.expect(packet.LoginState, packet.LoginAcknowledgedKind)

	server.send(packet.ConfigurationState, &packet.FinishConfiguration{})
	h.client.expect(packet.ConfigurationState, packet.FinishConfigurationKind)
	h.client.send(packet.ConfigurationState, &packet.AcknowledgeFinishConfiguration{})
	server.expect(packet.ConfigurationState, packet.AcknowledgeFinishConfigurationKind)

	h.client.send(packet.PlayState, &packet.SessionChatMessage{Message: "hi", Timestamp: 1, LastSeen: packet.LastSeenMessages{Offset: 0}})
	chat := server.expect(packet.PlayState, packet.SessionChatMessageKind).(*packet.SessionChatMessage)
	if chat.Message != "hi" {
		t.Errorf("got chat %q; want %q", chat.Message, "hi")
	}
	if h.session.State() != packet.PlayState {
		t.Errorf("got state %v; want play", h.session.State())
	}

	h.client.conn.Close()
	if err := h.wait(t); err != nil {
		t.Errorf("expected a clean end, got: %v", err)
	}
	wantStages := []stream.Stage{stream.StageNetwork, stream.StageEncryption, stream.StageCompression, stream.StageFraming}
	if diff := cmp.Diff(wantStages, h.session.ClientStages()); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	if h.session.Profile().ID != notchID {
		t.Errorf("got profile id %v; want %v", h.session.Profile().ID, notchID)
	}
	if backend.joined.Load() != 1 || backend.left.Load() != 1 {
		t.Errorf("got joined %d left %d; want 1 and 1", backend.joined.Load(), backend.left.Load())
	}
}

func TestSession_VerifyTokenMismatch(t *testing.T) {
	backend := newFakeBackend(forwarding.None{})
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		Authenticator:        &fakeAuth{},
		OnlineMode:           true,
		CompressionThreshold: 256,
	}, mc.Minecraft_1_20_3)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})
	req := h.client.expect(packet.LoginState, packet.EncryptionRequestKind).(*packet.EncryptionRequest)
	h.client.send(packet.LoginState, encrypt(t, req, []byte("0123456789abcdef"), []byte{9, 9, 9, 9}))

	err := h.wait(t)
	if !errors.Is(err, session.ErrVerifyTokenMismatch) {
		t.Fatalf("expected ErrVerifyTokenMismatch, got: %v", err)
	}
	if diff := cmp.Diff([]stream.Stage{stream.StageNetwork, stream.StageFraming}, h.session.ClientStages()); diff != "" {
		t.Errorf("no layer should be enabled (-want +got):\n%s", diff)
	}
	if len(backend.conns) != 0 || backend.joined.Load() != 0 {
		t.Error("backend should not be dialed")
	}
}

func TestSession_LegacyForwarding(t *testing.T) {
	v := mc.Minecraft_1_16_4
	backend := newFakeBackend(&forwarding.Legacy{})
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		CompressionThreshold: -1,
	}, v)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch"})

	server := backend.accept(t, v)
	hs := server.expect(packet.HandshakeState, packet.HandshakeKind).(*packet.Handshake)
	host, player, err := forwarding.ParseLegacyHost(hs.ServerAddress)
	if err != nil {
		t.Fatal(err)
	}
	offline := auth.OfflineProfile("Notch")
	if host != "play.example.com" || player.Profile.ID != offline.ID {
		t.Errorf("unexpected forwarded identity: %q %v", host, player.Profile.ID)
	}
	server.expect(packet.LoginState, packet.LoginStartKind)

	server.send(packet.LoginState, &packet.LoginSuccess{ID: offline.ID, Username: "Notch"})
	h.client.expect(packet.LoginState, packet.LoginSuccessKind)
	if h.session.State() != packet.PlayState {
		t.Errorf("versions before 1.20.2 go straight to play, got %v", h.session.State())
	}
	h.client.conn.Close()
	h.wait(t)
}

func TestSession_IdentityMismatch(t *testing.T) {
	v := mc.Minecraft_1_20_3
	backend := newFakeBackend(&forwarding.Legacy{})
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		CompressionThreshold: -1,
	}, v)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})

	server := backend.accept(t, v)
	server.expect(packet.HandshakeState, packet.HandshakeKind)
	server.expect(packet.LoginState, packet.LoginStartKind)
	server.send(packet.LoginState, &packet.LoginSuccess{ID: uuid.New(), Username: "Notch"})

	if err := h.wait(t); !errors.Is(err, session.ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got: %v", err)
	}
}

func TestSession_RealIPForwarding(t *testing.T) {
	v := mc.Minecraft_1_20_3
	now := time.Unix(1700000000, 0)
	backend := newFakeBackend(&forwarding.RealIP{Now: func() time.Time { return now }})
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		Authenticator:        &fakeAuth{},
		OnlineMode:           true,
		CompressionThreshold: -1,
	}, v)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})
	req := h.client.expect(packet.LoginState, packet.EncryptionRequestKind).(*packet.EncryptionRequest)
	secret := []byte("0123456789abcdef")
	h.client.send(packet.LoginState, encrypt(t, req, secret, req.VerifyToken))
	if err := h.client.conn.EnableEncryption(secret); err != nil {
		t.Fatal(err)
	}

	server := backend.accept(t, v)
	hs := server.expect(packet.HandshakeState, packet.HandshakeKind).(*packet.Handshake)
	if want := "play.example.com///pipe///1700000000"; hs.ServerAddress != want {
		t.Errorf("got host %q; want %q", hs.ServerAddress, want)
	}
	server.expect(packet.LoginState, packet.LoginStartKind)

	// The backend runs in offline mode and only knows the offline id.
	offline := auth.OfflineProfile("Notch")
	server.send(packet.LoginState, &packet.LoginSuccess{ID: offline.ID, Username: "Notch"})
	success := h.client.expect(packet.LoginState, packet.LoginSuccessKind).(*packet.LoginSuccess)
	if success.ID != offline.ID {
		t.Errorf("got id %v; want %v", success.ID, offline.ID)
	}

	h.client.conn.Close()
	if err := h.wait(t); err != nil {
		t.Errorf("expected a clean end, got: %v", err)
	}
	if h.session.Profile().ID != offline.ID {
		t.Errorf("got profile id %v; want %v", h.session.Profile().ID, offline.ID)
	}
}

func TestSession_ModernForwarding(t *testing.T) {
	v := mc.Minecraft_1_20_3
	secret := []byte("s3cret")
	backend := newFakeBackend(&forwarding.Modern{Secret: secret})
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		CompressionThreshold: -1,
	}, v)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})

	server := backend.accept(t, v)
	server.expect(packet.HandshakeState, packet.HandshakeKind)
	server.expect(packet.LoginState, packet.LoginStartKind)

	server.send(packet.LoginState, &packet.SetCompression{Threshold: 64})
	server.conn.EnableCompression(64)

	server.send(packet.LoginState, &packet.LoginPluginRequest{MessageID: 3, Identifier: forwarding.Channel, Data: []byte{forwarding.ModernVersion}})
	resp := server.expect(packet.LoginState, packet.LoginPluginResponseKind).(*packet.LoginPluginResponse)
	if resp.MessageID != 3 || !resp.Successful {
		t.Errorf("unexpected response: %+v", resp)
	}
	player, err := forwarding.Verify(secret, resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	offline := auth.OfflineProfile("Notch")
	if player.Profile.ID != offline.ID || player.Profile.Name != "Notch" {
		t.Errorf("unexpected forwarded profile: %+v", player.Profile)
	}

	server.send(packet.LoginState, &packet.LoginPluginRequest{MessageID: 4, Identifier: "other:channel"})
	forwarded := h.client.expect(packet.LoginState, packet.LoginPluginRequestKind).(*packet.LoginPluginRequest)
	if forwarded.Identifier != "other:channel" {
		t.Errorf("other channels should reach the client, got %q", forwarded.Identifier)
	}

	server.send(packet.LoginState, &packet.LoginSuccess{ID: offline.ID, Username: "Notch"})
	h.client.expect(packet.LoginState, packet.LoginSuccessKind)
	h.client.conn.Close()
	h.wait(t)
}

func TestSession_BackendOnlineMode(t *testing.T) {
	v := mc.Minecraft_1_20_3
	backend := newFakeBackend(forwarding.None{})
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		CompressionThreshold: -1,
	}, v)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})

	server := backend.accept(t, v)
	server.expect(packet.HandshakeState, packet.HandshakeKind)
	server.expect(packet.LoginState, packet.LoginStartKind)
	server.send(packet.LoginState, &packet.EncryptionRequest{PublicKey: []byte{1}, VerifyToken: []byte{2}})

	if err := h.wait(t); !errors.Is(err, session.ErrBackendOnlineMode) {
		t.Fatalf("expected ErrBackendOnlineMode, got: %v", err)
	}
}

func TestSession_RejectsLogins(t *testing.T) {
	tt := []struct {
		name    string
		version mc.ProtocolVersion
		host    string
		err     error
	}{
		{name: "unsupported version", version: mc.ProtocolVersion{ID: 3}, host: "play.example.com", err: session.ErrUnsupportedVersion},
		{name: "unknown server", version: mc.Minecraft_1_20_3, host: "nope.example.com", err: session.ErrUnknownServer},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend(forwarding.None{})
			// The handshake layout is the same for every version, the
			// client only encodes with one the registries know.
			h := start(t, session.Config{Resolver: resolver{"play.example.com": backend}}, testRegistries.Versions.Latest())
			h.client.send(packet.HandshakeState, &packet.Handshake{
				ProtocolVersion: int32(tc.version.ID),
				ServerAddress:   tc.host,
				ServerPort:      25565,
				NextState:       int32(packet.LoginState),
			})
			h.client.expect(packet.LoginState, packet.DisconnectKind)

			if err := h.wait(t); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got: %v", tc.err, err)
			}
		})
	}
}

func TestSession_InvalidNextState(t *testing.T) {
	h := start(t, session.Config{Resolver: resolver{}}, mc.Minecraft_1_20_3)
	h.handshake(packet.State(7))
	if err := h.wait(t); !errors.Is(err, session.ErrInvalidNextState) {
		t.Fatalf("expected ErrInvalidNextState, got: %v", err)
	}
}

func TestSession_BackendUnreachable(t *testing.T) {
	dialErr := errors.New("connection refused")
	backend := newFakeBackend(forwarding.None{})
	backend.dialErr = dialErr
	h := start(t, session.Config{
		Resolver:             resolver{"play.example.com": backend},
		CompressionThreshold: -1,
	}, mc.Minecraft_1_20_3)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})
	disconnect := h.client.expect(packet.LoginState, packet.DisconnectKind).(*packet.Disconnect)
	if want := packet.NewDisconnect("lobby is offline"); disconnect.Reason != want.Reason {
		t.Errorf("got reason %s; want %s", disconnect.Reason, want.Reason)
	}
	if err := h.wait(t); !errors.Is(err, dialErr) {
		t.Fatalf("expected the dial error, got: %v", err)
	}
	if backend.joined.Load() != 0 || backend.left.Load() != 0 {
		t.Error("an unreachable backend should not count players")
	}
}

type gatedBackend struct {
	*fakeBackend
	seen string
}

func (b *gatedBackend) Allow(_ net.Addr, username string) (string, bool) {
	b.seen = username
	return "Please reconnect to verify yourself", false
}

func TestSession_Gatekeeper(t *testing.T) {
	backend := &gatedBackend{fakeBackend: newFakeBackend(forwarding.None{})}
	authenticator := &fakeAuth{}
	h := start(t, session.Config{
		Resolver:      resolver{"play.example.com": backend},
		Authenticator: authenticator,
		OnlineMode:    true,
	}, mc.Minecraft_1_20_3)

	h.handshake(packet.LoginState)
	h.client.send(packet.LoginState, &packet.LoginStart{Username: "Notch", ID: notchID})
	disconnect := h.client.expect(packet.LoginState, packet.DisconnectKind).(*packet.Disconnect)
	if want := packet.NewDisconnect("Please reconnect to verify yourself"); disconnect.Reason != want.Reason {
		t.Errorf("got reason %s; want %s", disconnect.Reason, want.Reason)
	}
	if err := h.wait(t); !errors.Is(err, session.ErrPlayerRejected) {
		t.Fatalf("expected a rejection, got: %v", err)
	}
	if backend.seen != "Notch" {
		t.Errorf("gate saw %q; want Notch", backend.seen)
	}
	if authenticator.hash != "" {
		t.Error("a rejected player should not reach the session server")
	}
}
