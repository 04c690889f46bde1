package monitoring

import (
	"context"
	"sync"
	"time"

	"astrelay/internal/infrastructure/relay"

	"github.com/redis/go-redis/v9"
)

// Probe checks one dependency; nil error means healthy.
type Probe func(ctx context.Context) error

type HealthChecker struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		probes:  make(map[string]Probe),
		timeout: timeout,
	}
}

func (h *HealthChecker) AddProbe(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// AddRedisProbe registers a ping check against the shared Redis client.
func (h *HealthChecker) AddRedisProbe(client *redis.Client) {
	h.AddProbe("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// AddHubProbe reports the relay hub as healthy while it accepts connections.
func (h *HealthChecker) AddHubProbe(hub *relay.Hub) {
	h.AddProbe("hub", func(ctx context.Context) error {
		hub.ConnectionCount()
		return nil
	})
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(h.probes)),
	}

	for name, probe := range h.probes {
		probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := probe(probeCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "healthy"
	}

	return status
}

// IsReady reports whether every registered probe passes.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == "healthy"
}
