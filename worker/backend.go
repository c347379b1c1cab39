package worker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/realDragonium/Umbra/config"
	"github.com/realDragonium/Umbra/forwarding"
	"github.com/realDragonium/Umbra/packet"
	"github.com/realDragonium/Umbra/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

var (
	playersConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "umbra",
		Name:      "player_connected",
		Help:      "The total number of connected players",
	}, []string{"host"})
	dialErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "umbra",
		Name:      "backend_dial_errors_total",
		Help:      "Failed dial attempts per backend",
	}, []string{"host"})
)

const (
	minDialBackoff = 100 * time.Millisecond
	maxDialBackoff = 2 * time.Second
)

type BackendFactoryFunc func(config.BackendWorkerConfig) Backend

// Backend is a session.Backend the BackendManager can update in place.
type Backend interface {
	session.Backend
	HasActiveConn() bool
	State() ServerState
	Update(cfg config.BackendWorkerConfig)
	Config() config.BackendWorkerConfig
	Close()
}

var BackendFactory BackendFactoryFunc = func(cfg config.BackendWorkerConfig) Backend {
	return NewBackendWorker(cfg)
}

// backendModules is replaced as a whole when the config changes.
type backendModules struct {
	cfg         config.BackendWorkerConfig
	rateLimiter ConnectionLimiter
	serverState StateAgent
}

func newBackendModules(cfg config.BackendWorkerConfig) *backendModules {
	return &backendModules{
		cfg:         cfg,
		rateLimiter: newConnLimiter(cfg),
		serverState: newStateAgent(cfg.StateUpdateCooldown),
	}
}

type BackendWorker struct {
	modules     *atomic.Pointer[backendModules]
	activeConns atomic.Int32
	log         zerolog.Logger
}

func NewBackendWorker(cfg config.BackendWorkerConfig) *BackendWorker {
	wrk := &BackendWorker{
		modules: atomic.NewPointer(newBackendModules(cfg)),
		log:     log.With().Str("component", "backend").Logger(),
	}
	playersConnected.WithLabelValues(cfg.Name).Set(0)
	return wrk
}

func (wrk *BackendWorker) Config() config.BackendWorkerConfig {
	return wrk.modules.Load().cfg
}

func (wrk *BackendWorker) Name() string {
	return wrk.modules.Load().cfg.Name
}

func (wrk *BackendWorker) Forwarding() forwarding.Strategy {
	return wrk.modules.Load().cfg.Forwarding
}

// Status is the offline status while the server is known to be down and
// one is configured.
func (wrk *BackendWorker) Status() packet.SimpleStatus {
	modules := wrk.modules.Load()
	if modules.cfg.OfflineStatus.Name != "" && modules.serverState.State() == Offline {
		return modules.cfg.OfflineStatus
	}
	return modules.cfg.Status
}

func (wrk *BackendWorker) State() ServerState {
	return wrk.modules.Load().serverState.State()
}

func (wrk *BackendWorker) DisconnectMessage() string {
	return wrk.modules.Load().cfg.DisconnectMessage
}

func (wrk *BackendWorker) Online() int {
	return int(wrk.activeConns.Load())
}

func (wrk *BackendWorker) HasActiveConn() bool {
	return wrk.activeConns.Load() > 0
}

func (wrk *BackendWorker) PlayerJoined() {
	wrk.activeConns.Inc()
	playersConnected.WithLabelValues(wrk.Name()).Inc()
}

func (wrk *BackendWorker) PlayerLeft() {
	wrk.activeConns.Dec()
	playersConnected.WithLabelValues(wrk.Name()).Dec()
}

// Allow runs the login through the bot filter.
func (wrk *BackendWorker) Allow(client net.Addr, username string) (string, bool) {
	modules := wrk.modules.Load()
	if modules.rateLimiter.Allow(client, username) {
		return "", true
	}
	limitedLogins.WithLabelValues(modules.cfg.Name).Inc()
	return modules.cfg.RateDisconMsg, false
}

// Update swaps the config. Players that are already connected keep their
// connection, a new name takes the player count with it.
func (wrk *BackendWorker) Update(cfg config.BackendWorkerConfig) {
	old := wrk.modules.Swap(newBackendModules(cfg))
	if old.cfg.Name != cfg.Name {
		playersConnected.Delete(prometheus.Labels{"host": old.cfg.Name})
		playersConnected.WithLabelValues(cfg.Name).Set(float64(wrk.activeConns.Load()))
	}
}

func (wrk *BackendWorker) Close() {
	playersConnected.Delete(prometheus.Labels{"host": wrk.Name()})
}

// Dial connects to the backend, retrying with backoff up to DialRetries
// times. With SendProxyProtocol the PROXY header of the client goes first.
// A backend that failed all retries is not dialed again until its state
// cooldown passed.
func (wrk *BackendWorker) Dial(ctx context.Context, client net.Addr) (net.Conn, error) {
	modules := wrk.modules.Load()
	cfg := modules.cfg
	if modules.serverState.State() == Offline {
		return nil, fmt.Errorf("%w: %s", ErrBackendOffline, cfg.Name)
	}
	dialer := net.Dialer{
		Timeout: cfg.DialTimeout,
	}
	if cfg.ProxyBind != "" {
		dialer.LocalAddr = &net.TCPAddr{
			IP: net.ParseIP(cfg.ProxyBind),
		}
	}

	b := &backoff.Backoff{Min: minDialBackoff, Max: maxDialBackoff}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", cfg.ProxyTo)
		if err == nil {
			modules.serverState.Report(Online)
			if !cfg.SendProxyProtocol {
				return conn, nil
			}
			if _, err := proxyHeader(client, conn.RemoteAddr()).WriteTo(conn); err != nil {
				conn.Close()
				return nil, fmt.Errorf("writing proxy header: %w", err)
			}
			return conn, nil
		}

		dialErrors.WithLabelValues(cfg.Name).Inc()
		attempt := int(b.Attempt())
		if attempt >= cfg.DialRetries {
			if ctx.Err() == nil {
				modules.serverState.Report(Offline)
			}
			return nil, err
		}
		d := b.Duration()
		wrk.log.Debug().Err(err).Str("backend", cfg.Name).Int("attempt", attempt+1).Dur("retryIn", d).Msg("dial failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
}

func proxyHeader(client, server net.Addr) *proxyproto.Header {
	transport := proxyproto.TCPv4
	if tcp, ok := client.(*net.TCPAddr); ok && tcp.IP.To4() == nil {
		transport = proxyproto.TCPv6
	}
	return &proxyproto.Header{
		Version:           2,
		Command:           proxyproto.PROXY,
		TransportProtocol: transport,
		SourceAddr:        client,
		DestinationAddr:   server,
	}
}
