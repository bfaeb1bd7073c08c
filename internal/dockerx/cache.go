package dockerx

import (
	"context"

	"go.uber.org/zap"
)

// ContainerCache memoizes the container inventory for one debug session.
//
// Discovery runs at most once: the first caller triggers a ListContainers
// call and every later caller gets the same snapshot, even if the live
// state has changed since. A discovery failure is cached as an empty
// inventory so later probes fail fast instead of re-dialing the daemon
// every step.
//
// A cache instance belongs to exactly one session and is never shared
// across goroutines, so no locking is needed.
type ContainerCache struct {
	engine     Engine
	log        *zap.Logger
	inventory  []Container
	discovered bool
	lastErr    error
}

// NewContainerCache returns an empty cache bound to the given engine.
func NewContainerCache(engine Engine, log *zap.Logger) *ContainerCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContainerCache{engine: engine, log: log}
}

// Containers returns the memoized inventory, discovering it on first use.
// The error reports the original discovery failure, if any; the returned
// slice is empty in that case.
func (c *ContainerCache) Containers(ctx context.Context) ([]Container, error) {
	if c.discovered {
		return c.inventory, c.lastErr
	}
	c.discovered = true

	inventory, err := c.engine.ListContainers(ctx)
	if err != nil {
		c.inventory = nil
		c.lastErr = err
		c.log.Warn("container discovery failed, caching empty inventory", zap.Error(err))
		return nil, err
	}
	c.inventory = inventory
	c.log.Debug("container inventory discovered", zap.Int("count", len(inventory)))
	return c.inventory, nil
}

// Discovered reports whether discovery has already run.
func (c *ContainerCache) Discovered() bool {
	return c.discovered
}
