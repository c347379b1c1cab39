// Package worker wires the proxy process together: listeners, the pool of
// login workers, the backends and the HTTP endpoints.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/pires/go-proxyproto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/realDragonium/Umbra/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	pidFileName          = "umbra.pid"
	activeConnsPollDelay = 10 * time.Second
)

// RunProxy runs until the process gets replaced by a hot swap or receives
// SIGINT or SIGTERM. It then waits for connected players to leave.
func RunProxy(configPath, version string) error {
	umbraReader := config.NewUmbraConfigFileReader(configPath)
	cfg, err := umbraReader()
	if err != nil {
		return err
	}
	workerCfg, err := config.NewWorkerConfig(cfg)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(workerCfg.LogLevel)
	logger := log.With().Str("component", "proxy").Logger()

	useHotSwap := cfg.EnableHotSwap && runtime.GOOS != "windows" && version != "docker"
	var upg *tableflip.Upgrader
	if useHotSwap {
		if cfg.PidFile == "" {
			cfg.PidFile = filepath.Join(configPath, pidFileName)
		}
		upg, err = newUpgrader(cfg.PidFile)
		if err != nil {
			return err
		}
		defer upg.Stop()
	}
	listener, err := createListener(cfg, upg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serverCfgReader := config.NewBackendConfigFileReader(configPath, config.Verify)
	proxy := NewProxy(cfg, workerCfg, listener, serverCfgReader.Read)
	if err := proxy.Start(ctx); err != nil {
		return err
	}
	if cfg.WatchConfig {
		if err := WatchConfigs(ctx, configPath, proxy.BackendManager().Update); err != nil {
			logger.Warn().Err(err).Msg("config watcher not started")
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	if useHotSwap {
		if err := upg.Ready(); err != nil {
			return err
		}
		select {
		case <-upg.Exit():
		case <-stop:
		}
	} else {
		<-stop
	}

	cancel()
	listener.Close()
	proxy.Close()
	logger.Info().Msg("waiting for all connections to be closed before shutting down")
	for proxy.BackendManager().CheckActiveConnections() {
		select {
		case <-stop:
			logger.Warn().Msg("shutting down with players still connected")
			return nil
		case <-time.After(activeConnsPollDelay):
		}
	}
	logger.Info().Msg("all connections closed, shutting down process")
	return nil
}

func newUpgrader(pidFile string) (*tableflip.Upgrader, error) {
	if _, err := os.Stat(pidFile); errors.Is(err, os.ErrNotExist) {
		pid := fmt.Sprint(os.Getpid())
		if err := os.WriteFile(pidFile, []byte(pid), 0o644); err != nil {
			return nil, err
		}
	}
	upg, err := tableflip.New(tableflip.Options{
		PIDFile: pidFile,
	})
	if err != nil {
		return nil, err
	}
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP)
		for range sig {
			if err := upg.Upgrade(); err != nil {
				log.Error().Str("component", "proxy").Err(err).Msg("upgrade failed")
			}
		}
	}()
	return upg, nil
}

// createListener listens on ListenTo, through the upgrader when one is
// given. With AcceptProxyProtocol every connection has to start with a
// PROXY header.
func createListener(cfg config.UmbraConfig, upg *tableflip.Upgrader) (net.Listener, error) {
	var ln net.Listener
	var err error
	if upg != nil {
		ln, err = upg.Listen("tcp", cfg.ListenTo)
	} else {
		ln, err = net.Listen("tcp", cfg.ListenTo)
	}
	if err != nil {
		return nil, fmt.Errorf("can't listen on %s: %w", cfg.ListenTo, err)
	}

	if cfg.AcceptProxyProtocol {
		policyFunc := func(upstream net.Addr) (proxyproto.Policy, error) {
			return proxyproto.REQUIRE, nil
		}
		return &proxyproto.Listener{
			Listener: ln,
			Policy:   policyFunc,
		}, nil
	}
	return ln, nil
}

func NewProxy(cfg config.UmbraConfig, workerCfg config.WorkerConfig, l net.Listener, cfgReader config.ServerConfigReader) *Proxy {
	return &Proxy{
		cfg:       cfg,
		workerCfg: workerCfg,
		listener:  l,
		cfgReader: cfgReader,
		log:       log.With().Str("component", "proxy").Logger(),
	}
}

type Proxy struct {
	cfg       config.UmbraConfig
	workerCfg config.WorkerConfig
	listener  net.Listener
	cfgReader config.ServerConfigReader
	log       zerolog.Logger

	backendManager *BackendManager
	api            *API
	metrics        *http.Server
}

func (p *Proxy) BackendManager() *BackendManager {
	return p.backendManager
}

func (p *Proxy) Start(ctx context.Context) error {
	sessionCfg, err := NewSessionConfig(p.workerCfg)
	if err != nil {
		return err
	}
	reqCh := make(chan net.Conn, 50)
	workerManager := NewWorkerManager(sessionCfg, p.cfg.NumberOfWorkers, reqCh)
	p.backendManager, err = NewBackendManager(workerManager, BackendFactory, p.cfgReader)
	if err != nil {
		return err
	}
	workerManager.Start(ctx)

	for i := 0; i < p.cfg.NumberOfListeners; i++ {
		go serveListener(ctx, p.listener, reqCh)
	}
	p.log.Info().Int("listeners", p.cfg.NumberOfListeners).Str("addr", p.cfg.ListenTo).Msg("accepting connections")

	if p.cfg.UsePrometheus {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		p.metrics = &http.Server{Addr: p.cfg.PrometheusBind, Handler: mux}
		go func() {
			if err := p.metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				p.log.Error().Err(err).Msg("prometheus endpoint stopped")
			}
		}()
	}

	if p.cfg.APIBind != "" {
		p.api = NewAPI(p.backendManager, p.cfg.APIBind)
		go func() {
			if err := p.api.Run(); err != nil {
				p.log.Error().Err(err).Msg("api endpoint stopped")
			}
		}()
	}
	p.log.Info().Msg("finished starting up")
	return nil
}

// Close stops the HTTP endpoints. Running sessions are left alone.
func (p *Proxy) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if p.api != nil {
		p.api.Close(ctx)
	}
	if p.metrics != nil {
		p.metrics.Shutdown(ctx)
	}
}

func serveListener(ctx context.Context, listener net.Listener, reqCh chan<- net.Conn) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info().Str("component", "proxy").Msg("listener was closed, stopping with accepting connections")
				return
			}
			log.Warn().Str("component", "proxy").Err(err).Msg("accept failed")
			continue
		}
		select {
		case reqCh <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}
