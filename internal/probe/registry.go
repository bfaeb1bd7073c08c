package probe

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrProbeNotFound marks lookups of names absent from the registry.
	ErrProbeNotFound = errors.New("probe not found")

	// ErrDuplicateProbe marks a second registration under the same name.
	// Duplicate names are a startup defect, never a silent overwrite.
	ErrDuplicateProbe = errors.New("duplicate probe name")
)

// Registry is the name-keyed catalog of probe specs. It is assembled
// once at startup and read-only afterwards.
type Registry struct {
	specs map[string]*Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register inserts a spec. It fails on a duplicate name, a missing body,
// or a dependency declaration referencing nothing.
func (r *Registry) Register(spec *Spec) error {
	if spec.Name == "" {
		return errors.New("probe spec has no name")
	}
	if spec.Run == nil {
		return fmt.Errorf("probe %s has no body", spec.Name)
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProbe, spec.Name)
	}
	if spec.Requires != "" && spec.Transform == nil {
		return fmt.Errorf("probe %s declares a dependency without a transform", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Finalize verifies cross-spec invariants once every spec is registered:
// every Requires must reference a registered probe.
func (r *Registry) Finalize() error {
	for name, spec := range r.specs {
		if spec.Requires == "" {
			continue
		}
		if _, ok := r.specs[spec.Requires]; !ok {
			return fmt.Errorf("probe %s requires unknown probe %s", name, spec.Requires)
		}
	}
	return nil
}

// Lookup returns the spec for name, or ErrProbeNotFound.
func (r *Registry) Lookup(name string) (*Spec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProbeNotFound, name)
	}
	return spec, nil
}

// List returns all specs sorted by name. The order is stable so the
// catalog text shown to the Reasoner is reproducible.
func (r *Registry) List() []*Spec {
	out := make([]*Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered probes.
func (r *Registry) Len() int {
	return len(r.specs)
}

// CatalogText renders the deterministic tool documentation presented to
// the Reasoner when it plans the next probe.
func (r *Registry) CatalogText() string {
	var b strings.Builder
	for _, spec := range r.List() {
		fmt.Fprintf(&b, "- %s (%s): %s\n", spec.Name, spec.Scope, spec.Description)
		if len(spec.Args) > 0 {
			argNames := make([]string, 0, len(spec.Args))
			for name := range spec.Args {
				argNames = append(argNames, name)
			}
			sort.Strings(argNames)
			required := make(map[string]bool, len(spec.RequiredArgs))
			for _, req := range spec.RequiredArgs {
				required[req] = true
			}
			for _, name := range argNames {
				marker := ""
				if required[name] {
					marker = " (required)"
				}
				fmt.Fprintf(&b, "    %s%s: %s\n", name, marker, spec.Args[name])
			}
		}
		if spec.Example != "" {
			fmt.Fprintf(&b, "    example: %s\n", spec.Example)
		}
	}
	return b.String()
}
