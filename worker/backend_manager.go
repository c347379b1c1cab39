package worker

import (
	"reflect"
	"sort"
	"sync"

	"github.com/realDragonium/Umbra/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func NewBackendManager(manager WorkerManager, factory BackendFactoryFunc, cfgReader config.ServerConfigReader) (*BackendManager, error) {
	bManager := &BackendManager{
		backends:       make(map[string]Backend),
		cfgs:           make(map[string]config.ServerConfig),
		workerManager:  manager,
		backendFactory: factory,
		configReader:   cfgReader,
		log:            log.With().Str("component", "backend-manager").Logger(),
	}
	err := bManager.Update()
	return bManager, err
}

// BackendManager keeps the backends in line with the config files.
type BackendManager struct {
	mu       sync.Mutex
	backends map[string]Backend
	cfgs     map[string]config.ServerConfig

	backendFactory BackendFactoryFunc
	workerManager  WorkerManager
	configReader   config.ServerConfigReader
	log            zerolog.Logger
}

// Update reads the configs again and applies the difference. Nothing
// changes when any of the configs is invalid.
func (manager *BackendManager) Update() error {
	newCfgs, err := manager.configReader()
	if err != nil {
		return err
	}
	workerCfgs := make(map[string]config.BackendWorkerConfig, len(newCfgs))
	for _, newCfg := range newCfgs {
		workerCfg, err := config.ServerToBackendConfig(newCfg)
		if err != nil {
			return err
		}
		workerCfgs[newCfg.ID()] = workerCfg
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.loadAllConfigs(newCfgs, workerCfgs)
	manager.log.Info().Int("backends", len(newCfgs)).Msg("registered backends")
	return nil
}

func (manager *BackendManager) addConfig(cfg config.ServerConfig, workerCfg config.BackendWorkerConfig) {
	manager.cfgs[cfg.ID()] = cfg
	backend := manager.backendFactory(workerCfg)
	manager.backends[cfg.ID()] = backend
	manager.workerManager.AddBackend(cfg.Domains, backend)
}

func (manager *BackendManager) removeConfig(cfg config.ServerConfig) {
	backend, ok := manager.backends[cfg.ID()]
	if !ok {
		return
	}
	delete(manager.cfgs, cfg.ID())
	manager.workerManager.RemoveBackend(cfg.Domains, backend)
	backend.Close()
	delete(manager.backends, cfg.ID())
}

func (manager *BackendManager) updateConfig(cfg config.ServerConfig, workerCfg config.BackendWorkerConfig) {
	oldCfg := manager.cfgs[cfg.ID()]
	if reflect.DeepEqual(cfg, oldCfg) {
		return
	}
	manager.cfgs[cfg.ID()] = cfg

	domainStatus := make(map[string]int)
	for _, domain := range cfg.Domains {
		domainStatus[domain] += 1
	}
	for _, domain := range oldCfg.Domains {
		domainStatus[domain] += 2
	}

	removedDomains := []string{}
	addedDomains := []string{}
	for key, value := range domainStatus {
		switch value {
		case 1: // new
			addedDomains = append(addedDomains, key)
		case 2: // old
			removedDomains = append(removedDomains, key)
		}
	}
	backend := manager.backends[cfg.ID()]
	backend.Update(workerCfg)
	if len(removedDomains) > 0 {
		manager.workerManager.RemoveBackend(removedDomains, backend)
	}
	if len(addedDomains) > 0 {
		manager.workerManager.AddBackend(addedDomains, backend)
	}
}

func (manager *BackendManager) loadAllConfigs(cfgs []config.ServerConfig, workerCfgs map[string]config.BackendWorkerConfig) {
	newCfgs := make(map[string]config.ServerConfig)
	for _, cfg := range cfgs {
		newCfgs[cfg.ID()] = cfg
	}

	for id, oldCfg := range manager.cfgs {
		if _, ok := newCfgs[id]; !ok {
			manager.removeConfig(oldCfg)
		}
	}

	for id, newCfg := range newCfgs {
		if _, ok := manager.cfgs[id]; !ok {
			manager.addConfig(newCfg, workerCfgs[id])
			continue
		}
		manager.updateConfig(newCfg, workerCfgs[id])
	}
}

// Backends returns the current backends ordered by name.
func (manager *BackendManager) Backends() []Backend {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	backends := make([]Backend, 0, len(manager.backends))
	for _, backend := range manager.backends {
		backends = append(backends, backend)
	}
	sort.Slice(backends, func(i, j int) bool {
		return backends[i].Name() < backends[j].Name()
	})
	return backends
}

func (manager *BackendManager) CheckActiveConnections() bool {
	for _, backend := range manager.Backends() {
		if backend.HasActiveConn() {
			return true
		}
	}
	return false
}
