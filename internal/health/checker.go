// Package health reports service liveness and readiness.
package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"jobforge/internal/backend"
)

// ErrShuttingDown is reported once shutdown has begun, so load balancers
// drain the instance before the listener closes.
var ErrShuttingDown = errors.New("service is shutting down")

// Checker caches backend readiness probes so health endpoints cannot hammer
// the cluster API.
type Checker struct {
	backend  backend.Interface
	cacheTTL time.Duration

	shuttingDown atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	lastErr   error
}

func NewChecker(be backend.Interface, cacheTTL time.Duration) *Checker {
	return &Checker{backend: be, cacheTTL: cacheTTL}
}

// SetShuttingDown flips readiness to failing for the rest of the process
// lifetime.
func (c *Checker) SetShuttingDown() {
	c.shuttingDown.Store(true)
}

// Live reports process liveness. It stays healthy during shutdown so the
// orchestrator does not kill the instance mid-drain.
func (c *Checker) Live() error {
	return nil
}

// Ready reports whether the service can reach the cluster API, caching the
// result for the configured TTL.
func (c *Checker) Ready(ctx context.Context) error {
	if c.shuttingDown.Load() {
		return ErrShuttingDown
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastCheck) < c.cacheTTL {
		return c.lastErr
	}

	c.lastErr = c.backend.Ready(ctx)
	c.lastCheck = time.Now()
	return c.lastErr
}
