package worker

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/realDragonium/Umbra/session"
	"github.com/rs/zerolog/log"
)

// WorkerManager owns the domain catalog the workers route players with.
type WorkerManager interface {
	AddBackend(domains []string, backend Backend)
	// RemoveBackend drops the domains that still point at backend.
	RemoveBackend(domains []string, backend Backend)
	KnowsDomain(domain string) bool
	Resolve(host string) (session.Backend, bool)
	Start(ctx context.Context)
}

func NewWorkerManager(cfg session.Config, numberOfWorkers int, reqCh <-chan net.Conn) WorkerManager {
	return &workerManager{
		cfg:             cfg,
		numberOfWorkers: numberOfWorkers,
		reqCh:           reqCh,
		domains:         make(map[string]Backend),
	}
}

type workerManager struct {
	cfg             session.Config
	numberOfWorkers int
	reqCh           <-chan net.Conn

	mu      sync.RWMutex
	domains map[string]Backend
}

func (manager *workerManager) Start(ctx context.Context) {
	cfg := manager.cfg
	cfg.Resolver = manager
	for i := 0; i < manager.numberOfWorkers; i++ {
		wrk := NewWorker(cfg, manager.reqCh)
		go wrk.Work(ctx)
	}
	log.Info().Str("component", "worker").Int("workers", manager.numberOfWorkers).Msg("running workers")
}

func (manager *workerManager) AddBackend(domains []string, backend Backend) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for _, domain := range domains {
		manager.domains[strings.ToLower(domain)] = backend
	}
}

func (manager *workerManager) RemoveBackend(domains []string, backend Backend) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for _, domain := range domains {
		domain = strings.ToLower(domain)
		if manager.domains[domain] == backend {
			delete(manager.domains, domain)
		}
	}
}

func (manager *workerManager) KnowsDomain(domain string) bool {
	_, ok := manager.Resolve(domain)
	return ok
}

func (manager *workerManager) Resolve(host string) (session.Backend, bool) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	backend, ok := manager.domains[strings.ToLower(host)]
	if !ok {
		return nil, false
	}
	return backend, true
}
