package worker

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/realDragonium/Umbra/auth"
	"github.com/realDragonium/Umbra/config"
	"github.com/realDragonium/Umbra/mc"
	"github.com/realDragonium/Umbra/packet"
	"github.com/realDragonium/Umbra/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const unknownServerAddr = "unknown"

var (
	requestBuckets  = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30}
	processRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "umbra",
		Name:      "request_duration_seconds",
		Help:      "Histogram of the time from accepting a connection until it is relayed or closed.",
		Buckets:   requestBuckets,
	}, []string{"action", "server"})
)

// NewSessionConfig builds the part of session.Config that is shared by all
// workers. The resolver is filled in by the WorkerManager.
func NewSessionConfig(cfg config.WorkerConfig) (session.Config, error) {
	keys, err := auth.GenerateKeyPair()
	if err != nil {
		return session.Config{}, err
	}
	registries, err := packet.NewRegistries(mc.DefaultVersionTable())
	if err != nil {
		return session.Config{}, err
	}

	var authenticator auth.Authenticator = auth.Offline{}
	if cfg.OnlineMode {
		sessionServer := auth.NewSessionServer()
		if cfg.SessionServer != "" {
			sessionServer.URL = cfg.SessionServer
		}
		sessionServer.PreventProxyConnections = cfg.PreventProxyConnections
		authenticator = sessionServer
	}

	return session.Config{
		Registries:           registries,
		Keys:                 keys,
		Authenticator:        authenticator,
		OnlineMode:           cfg.OnlineMode,
		CompressionThreshold: cfg.CompressionThreshold,
		DefaultStatus:        cfg.DefaultStatus,
		LoginTimeout:         cfg.LoginTimeout,
		MaxFrameLength:       cfg.MaxFrameLength,
		Logger:               log.With().Str("component", "session").Logger(),
	}, nil
}

func NewWorker(cfg session.Config, reqCh <-chan net.Conn) BasicWorker {
	return BasicWorker{
		reqCh: reqCh,
		cfg:   cfg,
		log:   log.With().Str("component", "worker").Logger(),
	}
}

// BasicWorker logs players in one at a time. Once a player reaches the
// backend the relay continues on its own goroutine.
type BasicWorker struct {
	reqCh <-chan net.Conn
	cfg   session.Config
	log   zerolog.Logger
}

func (bw *BasicWorker) Work(ctx context.Context) {
	for {
		select {
		case conn, ok := <-bw.reqCh:
			if !ok {
				return
			}
			bw.ProcessConnection(ctx, conn)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessConnection runs the login of conn. Relays outlive ctx so a
// shutdown can wait for players to leave.
func (bw *BasicWorker) ProcessConnection(ctx context.Context, conn net.Conn) {
	start := time.Now()
	s := session.New(bw.cfg, conn)
	connected, err := s.Login(ctx)

	server := s.BackendName()
	if server == "" {
		server = unknownServerAddr
	}
	action := "proxy"
	switch {
	case err != nil:
		action = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			bw.log.Debug().Stringer("remote", conn.RemoteAddr()).Msg("client was too slow to log in")
		}
	case !connected:
		action = "status"
	}
	processRequests.With(prometheus.Labels{"action": action, "server": server}).Observe(time.Since(start).Seconds())

	if err != nil || !connected {
		s.Close(err)
		return
	}
	relayCtx := context.WithoutCancel(ctx)
	go func() {
		s.Close(s.Relay(relayCtx))
	}()
}
