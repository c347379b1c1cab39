package worker

import (
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/realDragonium/Umbra/config"
	"github.com/realDragonium/Umbra/forwarding"
)

var limitedLogins = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "umbra",
	Name:      "limited_logins_total",
	Help:      "Logins the bot filter asked to reconnect",
}, []string{"host"})

// ConnectionLimiter decides if a login may continue to the backend.
type ConnectionLimiter interface {
	Allow(addr net.Addr, username string) bool
}

type AlwaysAllowConnection struct{}

func (AlwaysAllowConnection) Allow(net.Addr, string) bool {
	return true
}

// NewBotFilterConnLimiter lets rateLimit logins through per cooldown. Once
// that is exceeded every ip has to log in twice with the same name before
// it is let through, a different name puts the ip on the ban list for
// clearTime. Limiting stops after unverify without crossing the limit.
func NewBotFilterConnLimiter(rateLimit int, cooldown, clearTime, unverify time.Duration) ConnectionLimiter {
	return &botFilterConnLimiter{
		lastTimeAboveLimit: time.Now(),
		unverifyCooldown:   unverify,
		rateLimit:          rateLimit,
		rateCooldown:       cooldown,
		listClearTime:      clearTime,

		namesList: make(map[string]string),
		blackList: make(map[string]time.Time),
	}
}

type botFilterConnLimiter struct {
	mu               sync.Mutex
	limiting         bool
	unverifyCooldown time.Duration

	rateCounter        int
	rateStartTime      time.Time
	lastTimeAboveLimit time.Time
	rateLimit          int
	rateCooldown       time.Duration
	listClearTime      time.Duration

	blackList map[string]time.Time
	namesList map[string]string
}

func (l *botFilterConnLimiter) Allow(addr net.Addr, username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.rateStartTime) >= l.rateCooldown {
		if l.rateCounter > l.rateLimit {
			l.lastTimeAboveLimit = l.rateStartTime
		}
		if l.limiting && time.Since(l.lastTimeAboveLimit) >= l.unverifyCooldown {
			l.limiting = false
			l.namesList = make(map[string]string)
		}
		l.rateCounter = 0
		l.rateStartTime = time.Now()
	}

	l.rateCounter++
	ip := forwarding.AddressOf(addr)
	if blockTime, ok := l.blackList[ip]; ok {
		if time.Since(blockTime) < l.listClearTime {
			return false
		}
		delete(l.blackList, ip)
	}

	l.limiting = l.limiting || l.rateCounter > l.rateLimit
	if !l.limiting {
		return true
	}
	name, ok := l.namesList[ip]
	if !ok {
		l.namesList[ip] = username
		return false
	}
	if name != username {
		l.blackList[ip] = time.Now()
		return false
	}
	return true
}

func newConnLimiter(cfg config.BackendWorkerConfig) ConnectionLimiter {
	if cfg.RateLimit <= 0 {
		return AlwaysAllowConnection{}
	}
	unverifyCooldown := 10 * cfg.RateLimitDuration
	return NewBotFilterConnLimiter(cfg.RateLimit, cfg.RateLimitDuration, cfg.RateBanListCooldown, unverifyCooldown)
}
