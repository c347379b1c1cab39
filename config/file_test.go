package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/realDragonium/Umbra/config"
	"github.com/realDragonium/Umbra/forwarding"
	"github.com/realDragonium/Umbra/packet"
	"github.com/rs/zerolog"
)

func TestReadUmbraConfigFile(t *testing.T) {
	cfg := config.UmbraConfig{
		ListenTo: ":25565",
		DefaultStatus: packet.SimpleStatus{
			Name:        "Umbra",
			Protocol:    765,
			Description: "One dangerous proxy",
		},
		OnlineMode:      true,
		NumberOfWorkers: 5,
	}
	path := filepath.Join(t.TempDir(), config.MainConfigFileName)
	if err := config.WriteUmbraConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	loadedCfg, err := config.ReadUmbraConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loadedCfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestReadUmbraConfig_WritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	loadedCfg, err := config.NewUmbraConfigFileReader(dir)()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.DefaultUmbraConfig(), loadedCfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, config.MainConfigFileName)); err != nil {
		t.Errorf("expected the default config to be written: %v", err)
	}
}

func TestReadUmbraConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.MainConfigFileName)
	if err := os.WriteFile(path, []byte(`{"listenTo":":25577","onlineMode":false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	loadedCfg, err := config.ReadUmbraConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	want := config.DefaultUmbraConfig()
	want.ListenTo = ":25577"
	want.OnlineMode = false
	if diff := cmp.Diff(want, loadedCfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestServerToBackendConfig(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "forwarding.secret")
	if err := os.WriteFile(secretFile, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tt := []struct {
		name       string
		cfg        config.ServerConfig
		wantName   string
		wantMode   forwarding.Mode
		wantSecret string
		wantErr    error
	}{
		{
			name:     "name falls back to first domain",
			cfg:      config.ServerConfig{Domains: []string{"lobby.example.com", "hub.example.com"}},
			wantName: "lobby.example.com",
			wantMode: forwarding.ModeNone,
		},
		{
			name:     "legacy",
			cfg:      config.ServerConfig{Name: "lobby", Forwarding: "legacy"},
			wantName: "lobby",
			wantMode: forwarding.ModeLegacy,
		},
		{
			name:     "realip",
			cfg:      config.ServerConfig{Name: "lobby", Forwarding: "realip"},
			wantName: "lobby",
			wantMode: forwarding.ModeRealIP,
		},
		{
			name:       "modern with inline secret",
			cfg:        config.ServerConfig{Name: "lobby", Forwarding: "modern", ForwardingSecret: "inline"},
			wantName:   "lobby",
			wantMode:   forwarding.ModeModern,
			wantSecret: "inline",
		},
		{
			name:       "secret file wins and is trimmed",
			cfg:        config.ServerConfig{Name: "lobby", Forwarding: "modern", ForwardingSecret: "inline", ForwardingSecretFile: secretFile},
			wantName:   "lobby",
			wantMode:   forwarding.ModeModern,
			wantSecret: "from-file",
		},
		{
			name:    "modern without secret",
			cfg:     config.ServerConfig{Forwarding: "modern"},
			wantErr: forwarding.ErrMissingSecret,
		},
		{
			name:    "unknown mode",
			cfg:     config.ServerConfig{Forwarding: "bungeeguard"},
			wantErr: forwarding.ErrUnknownMode,
		},
		{
			name:    "missing secret file",
			cfg:     config.ServerConfig{Forwarding: "modern", ForwardingSecretFile: filepath.Join(t.TempDir(), "nope")},
			wantErr: os.ErrNotExist,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			workerCfg, err := config.ServerToBackendConfig(tc.cfg)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got: %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if workerCfg.Name != tc.wantName {
				t.Errorf("expected name %q, got %q", tc.wantName, workerCfg.Name)
			}
			if workerCfg.Forwarding.Mode() != tc.wantMode {
				t.Errorf("expected mode %v, got %v", tc.wantMode, workerCfg.Forwarding.Mode())
			}
			if modern, ok := workerCfg.Forwarding.(*forwarding.Modern); ok && string(modern.Secret) != tc.wantSecret {
				t.Errorf("expected secret %q, got %q", tc.wantSecret, modern.Secret)
			}
		})
	}
}

func TestServerToBackendConfig_ParsesValues(t *testing.T) {
	serverCfg := config.ServerConfig{
		FilePath:          "/etc/umbra/lobby.json",
		Domains:           []string{"umbra", "umbra2"},
		ProxyTo:           "127.0.10.5:25565",
		ProxyBind:         "127.0.0.5",
		DialTimeout:       "1500ms",
		DialRetries:       3,
		SendProxyProtocol: true,
		DisconnectMessage: "HelloThereWeAreClosed...Sorry",

		RateLimit:           5,
		RateDuration:        "1m",
		RateBanListCooldown: "5m",
		RateDisconMsg:       "Reconnect please",
		StateUpdateCooldown: "1m",
	}
	workerCfg, err := config.ServerToBackendConfig(serverCfg)
	if err != nil {
		t.Fatal(err)
	}
	if workerCfg.ID != serverCfg.FilePath {
		t.Errorf("expected: %v - got: %v", serverCfg.FilePath, workerCfg.ID)
	}
	if workerCfg.ProxyTo != serverCfg.ProxyTo {
		t.Errorf("expected: %v - got: %v", serverCfg.ProxyTo, workerCfg.ProxyTo)
	}
	if workerCfg.ProxyBind != serverCfg.ProxyBind {
		t.Errorf("expected: %v - got: %v", serverCfg.ProxyBind, workerCfg.ProxyBind)
	}
	if workerCfg.SendProxyProtocol != serverCfg.SendProxyProtocol {
		t.Errorf("expected: %v - got: %v", serverCfg.SendProxyProtocol, workerCfg.SendProxyProtocol)
	}
	if workerCfg.DialTimeout != 1500*time.Millisecond {
		t.Errorf("expected: %v - got: %v", 1500*time.Millisecond, workerCfg.DialTimeout)
	}
	if workerCfg.DialRetries != 3 {
		t.Errorf("expected: %v - got: %v", 3, workerCfg.DialRetries)
	}
	if workerCfg.DisconnectMessage != serverCfg.DisconnectMessage {
		t.Errorf("expected: %v - got: %v", serverCfg.DisconnectMessage, workerCfg.DisconnectMessage)
	}
	if workerCfg.RateLimit != serverCfg.RateLimit {
		t.Errorf("expected: %v - got: %v", serverCfg.RateLimit, workerCfg.RateLimit)
	}
	if workerCfg.RateLimitDuration != time.Minute {
		t.Errorf("expected: %v - got: %v", time.Minute, workerCfg.RateLimitDuration)
	}
	if workerCfg.RateBanListCooldown != 5*time.Minute {
		t.Errorf("expected: %v - got: %v", 5*time.Minute, workerCfg.RateBanListCooldown)
	}
	if workerCfg.StateUpdateCooldown != time.Minute {
		t.Errorf("expected: %v - got: %v", time.Minute, workerCfg.StateUpdateCooldown)
	}
	if workerCfg.RateDisconMsg != serverCfg.RateDisconMsg {
		t.Errorf("expected: %v - got: %v", serverCfg.RateDisconMsg, workerCfg.RateDisconMsg)
	}

	serverCfg.DialTimeout = "soon"
	if _, err := config.ServerToBackendConfig(serverCfg); err == nil {
		t.Error("expected an error for an invalid dial timeout")
	}
	serverCfg.DialTimeout = "1s"
	serverCfg.RateBanListCooldown = "later"
	if _, err := config.ServerToBackendConfig(serverCfg); err == nil {
		t.Error("expected an error for an invalid ban list cooldown")
	}
}

func TestNewWorkerConfig(t *testing.T) {
	cfg := config.DefaultUmbraConfig()
	cfg.LogLevel = "debug"
	cfg.LoginTimeout = "10s"
	cfg.MaxFrameLength = 1 << 16

	workerCfg, err := config.NewWorkerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := config.WorkerConfig{
		DefaultStatus:        cfg.DefaultStatus,
		OnlineMode:           true,
		CompressionThreshold: 256,
		MaxFrameLength:       1 << 16,
		LoginTimeout:         10 * time.Second,
		LogLevel:             zerolog.DebugLevel,
	}
	if diff := cmp.Diff(want, workerCfg); diff != "" {
		t.Errorf("worker config mismatch (-want +got):\n%s", diff)
	}

	for _, broken := range []config.UmbraConfig{
		{LoginTimeout: "forever"},
		{LogLevel: "loud"},
	} {
		if _, err := config.NewWorkerConfig(broken); err == nil {
			t.Errorf("expected an error for %+v", broken)
		}
	}
}
