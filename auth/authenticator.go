package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Tnze/go-mc/offline"
	"github.com/realDragonium/Umbra/mc"
)

var (
	ErrNotAuthenticated = errors.New("player has not joined through the session server")
	ErrSessionServer    = errors.New("session server error")
)

// DefaultSessionServerURL is Mojang's hasJoined endpoint.
const DefaultSessionServerURL = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

// Authenticator returns the authoritative profile of a player that just
// finished the encryption handshake.
type Authenticator interface {
	HasJoined(ctx context.Context, username, serverHash, ip string) (mc.GameProfile, error)
}

// SessionServer asks a Mojang compatible session server.
type SessionServer struct {
	URL    string
	Client *http.Client
	// PreventProxyConnections sends the client ip along, the session server
	// then rejects players that joined from another address.
	PreventProxyConnections bool
}

func NewSessionServer() *SessionServer {
	return &SessionServer{
		URL:    DefaultSessionServerURL,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *SessionServer) HasJoined(ctx context.Context, username, serverHash, ip string) (mc.GameProfile, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("serverId", serverHash)
	if s.PreventProxyConnections && ip != "" {
		query.Set("ip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"?"+query.Encode(), nil)
	if err != nil {
		return mc.GameProfile{}, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return mc.GameProfile{}, fmt.Errorf("%w: %w", ErrSessionServer, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return mc.GameProfile{}, ErrNotAuthenticated
	default:
		return mc.GameProfile{}, fmt.Errorf("%w: unexpected status %s", ErrSessionServer, resp.Status)
	}

	var profile mc.GameProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return mc.GameProfile{}, fmt.Errorf("%w: decoding profile: %w", ErrSessionServer, err)
	}
	for i := range profile.Properties {
		profile.Properties[i].Signed = profile.Properties[i].Signature != ""
	}
	return profile, nil
}

// Offline trusts the username and derives the id the way vanilla offline
// mode servers do.
type Offline struct{}

func (Offline) HasJoined(_ context.Context, username, _, _ string) (mc.GameProfile, error) {
	return OfflineProfile(username), nil
}

func OfflineProfile(username string) mc.GameProfile {
	return mc.GameProfile{
		ID:   offline.NameToUUID(username),
		Name: username,
	}
}
