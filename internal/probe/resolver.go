package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/gumshoe-dev/gumshoe/internal/metrics"
)

// ResultsCache holds the raw probe results of one session, keyed by
// probe name. The resolver reads it to avoid re-running prerequisites
// and the control loop writes every executed probe into it.
type ResultsCache map[string]Result

// Get returns the cached result for a probe name.
func (c ResultsCache) Get(name string) (Result, bool) {
	r, ok := c[name]
	return r, ok
}

// Put caches a result under its probe name, replacing any earlier one.
func (c ResultsCache) Put(r Result) {
	c[r.ProbeName] = r
}

// Resolver auto-executes a probe's declared prerequisite and merges the
// transformed output into the caller's arguments.
//
// Resolution is single-hop: if the prerequisite itself declares a
// dependency, that one is not resolved here. Extending this into a
// transitive resolver would be a topological walk over the registry,
// not recursion in this method.
type Resolver struct {
	registry      *Registry
	invoker       *Invoker
	workspaceRoot string
	log           *zap.Logger
}

// NewResolver builds a resolver over the given registry and invoker.
func NewResolver(registry *Registry, invoker *Invoker, workspaceRoot string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{registry: registry, invoker: invoker, workspaceRoot: workspaceRoot, log: log}
}

// Resolve returns the caller's arguments with the prerequisite's
// transformed output merged in. Existing wins: a caller-supplied key is
// only overwritten when absent or falsy. A failed prerequisite is still
// cached and transformed; the transform degrades to empty collections.
func (r *Resolver) Resolve(ctx context.Context, spec *Spec, args map[string]interface{}, cache ResultsCache) map[string]interface{} {
	merged := make(map[string]interface{}, len(args))
	for k, v := range args {
		merged[k] = v
	}
	if spec.Requires == "" {
		return merged
	}

	depResult, ok := cache.Get(spec.Requires)
	if !ok {
		depArgs := r.implicitArgs(spec.Requires)
		r.log.Debug("auto-invoking dependency probe",
			zap.String("probe", spec.Name),
			zap.String("dependency", spec.Requires))
		depResult = r.invoker.Invoke(ctx, spec.Requires, depArgs)
		metrics.DependencyResolutions.WithLabelValues(spec.Requires).Inc()
		// Cached even on failure, so a broken prerequisite is attempted
		// once per session, not once per dependent probe.
		cache.Put(depResult)
	}

	for key, value := range spec.Transform(depResult) {
		if existing, present := merged[key]; !present || isFalsy(existing) {
			merged[key] = value
		}
	}
	return merged
}

// implicitArgs picks the default arguments for an auto-invoked
// prerequisite: discovery probes scan the workspace root at a shallow
// depth, everything else runs bare.
func (r *Resolver) implicitArgs(depName string) map[string]interface{} {
	spec, err := r.registry.Lookup(depName)
	if err != nil {
		return map[string]interface{}{}
	}
	if spec.HasTag("discovery") {
		return map[string]interface{}{
			"root":  r.workspaceRoot,
			"depth": 3,
		}
	}
	return map[string]interface{}{}
}
