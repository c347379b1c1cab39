// Package config reads the proxy's JSON configuration: one main file and
// one file per backend server, all living in the same directory.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/realDragonium/Umbra/forwarding"
	"github.com/realDragonium/Umbra/packet"
	"github.com/rs/zerolog"
)

const MainConfigFileName = "umbra.json"

type ServerConfigReader func() ([]ServerConfig, error)

type UmbraConfigReader func() (UmbraConfig, error)

type VerifyFunc func(cfgs []ServerConfig) error

type ServerConfig struct {
	FilePath string   `json:"-"`
	Name     string   `json:"name"`
	Domains  []string `json:"domains"`

	ProxyTo           string `json:"proxyTo"`
	ProxyBind         string `json:"proxyBind"`
	DialTimeout       string `json:"dialTimeout"`
	DialRetries       int    `json:"dialRetries"`
	SendProxyProtocol bool   `json:"sendProxyProtocol"`

	// Forwarding is one of none, legacy, modern or realip.
	Forwarding           string `json:"forwarding"`
	ForwardingSecret     string `json:"forwardingSecret"`
	ForwardingSecretFile string `json:"forwardingSecretFile"`

	DisconnectMessage string              `json:"disconnectMessage"`
	Status            packet.SimpleStatus `json:"status"`
	// OfflineStatus answers status requests while the server is known to
	// be down. It is only used when it has a name.
	OfflineStatus     packet.SimpleStatus `json:"offlineStatus"`

	// RateLimit logins per RateDuration are let through before the bot
	// filter starts asking players to reconnect. Zero disables it.
	RateLimit           int    `json:"rateLimit"`
	RateDuration        string `json:"rateCooldown"`
	RateBanListCooldown string `json:"banListCooldown"`
	RateDisconMsg       string `json:"reconnectMsg"`

	// StateUpdateCooldown is how long a failed dial marks the server as
	// offline.
	StateUpdateCooldown string `json:"stateUpdateCooldown"`
}

// ID identifies a backend between reloads.
func (cfg ServerConfig) ID() string {
	return cfg.FilePath
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		DialTimeout:       "1s",
		DialRetries:       2,
		Forwarding:        string(forwarding.ModeNone),
		DisconnectMessage: "Server is offline",
		Status: packet.SimpleStatus{
			Name:        "Umbra",
			Description: "A Minecraft server",
			MaxPlayers:  100,
		},
		RateLimit:           5,
		RateDuration:        "1s",
		RateBanListCooldown: "5m",
		RateDisconMsg:       "Please reconnect to verify yourself",
		StateUpdateCooldown: "1s",
	}
}

type UmbraConfig struct {
	ListenTo      string              `json:"listenTo"`
	DefaultStatus packet.SimpleStatus `json:"defaultStatus"`

	OnlineMode              bool   `json:"onlineMode"`
	SessionServer           string `json:"sessionServer"`
	PreventProxyConnections bool   `json:"preventProxyConnections"`
	CompressionThreshold    int    `json:"compressionThreshold"`
	MaxFrameLength          int    `json:"maxFrameLength"`
	LoginTimeout            string `json:"loginTimeout"`

	NumberOfWorkers     int  `json:"numberOfWorkers"`
	NumberOfListeners   int  `json:"numberOfListeners"`
	AcceptProxyProtocol bool `json:"acceptProxyProtocol"`

	UsePrometheus  bool   `json:"enablePrometheus"`
	PrometheusBind string `json:"prometheusBind"`
	APIBind        string `json:"apiBind"`
	WatchConfig    bool   `json:"watchConfig"`
	LogLevel       string `json:"logLevel"`

	EnableHotSwap bool   `json:"enableHotSwap"`
	PidFile       string `json:"pidFile"`
}

func DefaultUmbraConfig() UmbraConfig {
	return UmbraConfig{
		ListenTo: ":25565",
		DefaultStatus: packet.SimpleStatus{
			Name:        "Umbra",
			Description: "Unknown server",
		},
		OnlineMode:           true,
		CompressionThreshold: 256,
		LoginTimeout:         "30s",

		NumberOfWorkers:   10,
		NumberOfListeners: 1,

		UsePrometheus:  true,
		PrometheusBind: ":9100",
		APIBind:        "127.0.0.1:9099",
		LogLevel:       "info",

		EnableHotSwap: true,
		PidFile:       "/var/run/umbra.pid",
	}
}

// BackendWorkerConfig is a ServerConfig with every value parsed.
type BackendWorkerConfig struct {
	ID                string
	Name              string
	Domains           []string
	ProxyTo           string
	ProxyBind         string
	DialTimeout       time.Duration
	DialRetries       int
	SendProxyProtocol bool
	Forwarding        forwarding.Strategy
	DisconnectMessage string
	Status            packet.SimpleStatus
	OfflineStatus     packet.SimpleStatus

	RateLimit           int
	RateLimitDuration   time.Duration
	RateBanListCooldown time.Duration
	RateDisconMsg       string
	StateUpdateCooldown time.Duration
}

func ServerToBackendConfig(cfg ServerConfig) (BackendWorkerConfig, error) {
	name := cfg.Name
	if name == "" && len(cfg.Domains) > 0 {
		name = cfg.Domains[0]
	}
	workerCfg := BackendWorkerConfig{
		ID:                cfg.ID(),
		Name:              name,
		Domains:           cfg.Domains,
		ProxyTo:           cfg.ProxyTo,
		ProxyBind:         cfg.ProxyBind,
		DialRetries:       cfg.DialRetries,
		SendProxyProtocol: cfg.SendProxyProtocol,
		DisconnectMessage: cfg.DisconnectMessage,
		Status:            cfg.Status,
		OfflineStatus:     cfg.OfflineStatus,
		RateLimit:         cfg.RateLimit,
		RateDisconMsg:     cfg.RateDisconMsg,
	}

	durations := []struct {
		value string
		dst   *time.Duration
	}{
		{cfg.DialTimeout, &workerCfg.DialTimeout},
		{cfg.RateDuration, &workerCfg.RateLimitDuration},
		{cfg.RateBanListCooldown, &workerCfg.RateBanListCooldown},
		{cfg.StateUpdateCooldown, &workerCfg.StateUpdateCooldown},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return workerCfg, err
		}
		*d.dst = parsed
	}

	secret := []byte(cfg.ForwardingSecret)
	if cfg.ForwardingSecretFile != "" {
		bb, err := os.ReadFile(cfg.ForwardingSecretFile)
		if err != nil {
			return workerCfg, err
		}
		secret = []byte(strings.TrimSpace(string(bb)))
	}
	strategy, err := forwarding.Parse(cfg.Forwarding, secret)
	if err != nil {
		return workerCfg, err
	}
	workerCfg.Forwarding = strategy
	return workerCfg, nil
}

// WorkerConfig is the part of UmbraConfig every session needs.
type WorkerConfig struct {
	DefaultStatus           packet.SimpleStatus
	OnlineMode              bool
	SessionServer           string
	PreventProxyConnections bool
	CompressionThreshold    int
	MaxFrameLength          int
	LoginTimeout            time.Duration
	LogLevel                zerolog.Level
}

func NewWorkerConfig(cfg UmbraConfig) (WorkerConfig, error) {
	workerCfg := WorkerConfig{
		DefaultStatus:           cfg.DefaultStatus,
		OnlineMode:              cfg.OnlineMode,
		SessionServer:           cfg.SessionServer,
		PreventProxyConnections: cfg.PreventProxyConnections,
		CompressionThreshold:    cfg.CompressionThreshold,
		MaxFrameLength:          cfg.MaxFrameLength,
		LogLevel:                zerolog.InfoLevel,
	}
	if cfg.LoginTimeout != "" {
		loginTimeout, err := time.ParseDuration(cfg.LoginTimeout)
		if err != nil {
			return workerCfg, err
		}
		workerCfg.LoginTimeout = loginTimeout
	}
	if cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return workerCfg, err
		}
		workerCfg.LogLevel = level
	}
	return workerCfg, nil
}
