package probe

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gumshoe-dev/gumshoe/internal/dockerx"
	"github.com/gumshoe-dev/gumshoe/internal/metrics"
)

// Invoker dispatches probe calls to their bodies. It is the single
// enforcement point of the "probes never raise" contract: unknown names,
// container-resolution failures, body errors, and body panics all come
// back as structured Results.
type Invoker struct {
	registry      *Registry
	cache         *dockerx.ContainerCache
	engine        dockerx.Engine
	workspaceRoot string
	log           *zap.Logger
}

// NewInvoker builds an invoker over the registry, the session's
// container cache, and the engine handle passed to probe bodies.
func NewInvoker(registry *Registry, cache *dockerx.ContainerCache, engine dockerx.Engine, workspaceRoot string, log *zap.Logger) *Invoker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{
		registry:      registry,
		cache:         cache,
		engine:        engine,
		workspaceRoot: workspaceRoot,
		log:           log,
	}
}

// Invoke runs one probe with already sanitized and resolved arguments.
// It never returns an error and never panics.
func (iv *Invoker) Invoke(ctx context.Context, name string, args map[string]interface{}) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			iv.log.Error("probe body panicked", zap.String("probe", name), zap.Any("panic", r))
			result = Fail(name, fmt.Sprintf("probe panicked: %v", r))
		}
		result = normalize(name, result)
		status := "success"
		if !result.Success {
			status = "error"
		}
		metrics.ProbeExecutions.WithLabelValues(name, status).Inc()
	}()

	spec, err := iv.registry.Lookup(name)
	if err != nil {
		return Fail(name, fmt.Sprintf("unknown probe %q", name))
	}

	timer := metrics.NewProbeTimer(name)
	defer timer.ObserveDuration()

	inv := Invocation{
		Args:          args,
		Engine:        iv.engine,
		WorkspaceRoot: iv.workspaceRoot,
	}

	switch {
	case spec.needsNamedContainer():
		containerName, _ := args["container"].(string)
		handle, err := iv.resolveContainer(ctx, containerName)
		if err != nil {
			return Fail(name, err.Error())
		}
		inv.Container = handle
	case spec.Scope == ScopeContainer:
		// Inventory probes work on the memoized snapshot; a failed
		// discovery gives them an empty inventory to report on.
		inventory, _ := iv.cache.Containers(ctx)
		inv.Containers = inventory
	}

	return spec.Run(ctx, inv)
}

// resolveContainer maps a name or short identifier onto a live handle:
// exact name match first, then ID-prefix match against the cached
// inventory, then a final live lookup against the engine.
func (iv *Invoker) resolveContainer(ctx context.Context, name string) (*dockerx.Container, error) {
	if name == "" {
		return nil, fmt.Errorf("no container name given")
	}
	inventory, cacheErr := iv.cache.Containers(ctx)

	for i := range inventory {
		if inventory[i].Name == name {
			return &inventory[i], nil
		}
	}
	for i := range inventory {
		if strings.HasPrefix(inventory[i].ID, name) {
			return &inventory[i], nil
		}
	}

	if doc, err := iv.engine.InspectContainer(ctx, name); err == nil {
		return containerFromInspect(doc), nil
	}

	if cacheErr != nil || len(inventory) == 0 {
		return nil, fmt.Errorf("container %q not found: no containers available", name)
	}
	known := make([]string, 0, len(inventory))
	for _, c := range inventory {
		known = append(known, c.Name)
	}
	return nil, fmt.Errorf("container %q not found; known containers: %s", name, strings.Join(known, ", "))
}

// containerFromInspect builds a minimal handle from a raw inspect
// document returned by the live-lookup fallback.
func containerFromInspect(doc map[string]interface{}) *dockerx.Container {
	c := &dockerx.Container{}
	if id, ok := doc["Id"].(string); ok {
		c.ID = id
	}
	if name, ok := doc["Name"].(string); ok {
		c.Name = strings.TrimPrefix(name, "/")
	}
	if cfg, ok := doc["Config"].(map[string]interface{}); ok {
		if image, ok := cfg["Image"].(string); ok {
			c.Image = image
		}
	}
	if state, ok := doc["State"].(map[string]interface{}); ok {
		if status, ok := state["Status"].(string); ok {
			c.State = status
		}
	}
	return c
}

// normalize guarantees the uniform output shape: probe name set, data
// map never nil.
func normalize(name string, r Result) Result {
	if r.ProbeName == "" {
		r.ProbeName = name
	}
	if r.Data == nil {
		r.Data = map[string]interface{}{}
	}
	return r
}
