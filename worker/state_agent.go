package worker

import (
	"errors"
	"sync"
	"time"
)

var ErrBackendOffline = errors.New("backend is marked offline")

type ServerState byte

const (
	Unknown ServerState = iota
	Online
	Offline
)

func (state ServerState) String() string {
	switch state {
	case Online:
		return "online"
	case Offline:
		return "offline"
	}
	return "unknown"
}

// StateAgent remembers how the last dial to a backend went.
type StateAgent interface {
	State() ServerState
	Report(state ServerState)
}

func newStateAgent(cooldown time.Duration) StateAgent {
	if cooldown <= 0 {
		return AlwaysOnlineState{}
	}
	return NewMcServerState(cooldown)
}

// NewMcServerState keeps an Offline report for cooldown, after which the
// next player gets to try the server again.
func NewMcServerState(cooldown time.Duration) StateAgent {
	return &McServerState{
		state:    Unknown,
		cooldown: cooldown,
	}
}

type McServerState struct {
	mu        sync.Mutex
	state     ServerState
	cooldown  time.Duration
	startTime time.Time
}

func (server *McServerState) State() ServerState {
	server.mu.Lock()
	defer server.mu.Unlock()
	if server.state == Offline && time.Since(server.startTime) > server.cooldown {
		server.state = Unknown
	}
	return server.state
}

func (server *McServerState) Report(state ServerState) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.state = state
	server.startTime = time.Now()
}

type AlwaysOnlineState struct{}

func (AlwaysOnlineState) State() ServerState { return Online }
func (AlwaysOnlineState) Report(ServerState) {}
