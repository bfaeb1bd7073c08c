package probe

import (
	"context"

	"github.com/gumshoe-dev/gumshoe/internal/dockerx"
)

// Package probe implements the probe orchestration engine.
//
// Responsibilities:
//   - Hold the static catalog of probes (Registry), each entry declaring
//     its arguments and an optional single-hop dependency on another probe
//   - Normalize and validate the Reasoner's proposed arguments
//     (Sanitize / Validate)
//   - Auto-execute declared dependencies and merge their transformed
//     output into the caller's arguments (Resolver)
//   - Dispatch the call to the probe body by scope and guarantee that
//     probe failures never escape the boundary (Invoker)
//   - Canonicalize (probe, args) into a content hash so the control loop
//     can skip repeated requests (Signature)
//
// Probe bodies themselves live in internal/probes; this package only
// orchestrates them.

// Scope classifies what a probe inspects and drives invoker routing.
type Scope string

const (
	ScopeContainer Scope = "container"
	ScopeVolume    Scope = "volume"
	ScopeNetwork   Scope = "network"
	ScopeConfig    Scope = "config"
	ScopeHost      Scope = "host"
)

// Result is the uniform output shape of every probe. Error is reserved
// for execution failure; a probe can succeed while reporting negative
// findings in Data.
type Result struct {
	ProbeName string                 `json:"probe_name"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// Invocation carries everything a probe body may need. The invoker fills
// only the fields the probe's scope calls for: Container for probes that
// name one container, Containers for inventory probes, plain Args for
// the rest.
type Invocation struct {
	Args          map[string]interface{}
	Container     *dockerx.Container
	Containers    []dockerx.Container
	Engine        dockerx.Engine
	WorkspaceRoot string
}

// Func is a probe body. It must not panic; the invoker recovers panics
// regardless, as the single enforcement point of that contract.
type Func func(ctx context.Context, inv Invocation) Result

// Transform converts a prerequisite probe's result into a partial
// argument map for the dependent probe. It must tolerate missing or
// malformed data by degrading to empty collections.
type Transform func(dep Result) map[string]interface{}

// Spec describes one probe: its metadata, declared arguments, and an
// optional single-hop dependency.
type Spec struct {
	Name         string
	Description  string
	Scope        Scope
	Tags         []string
	Args         map[string]string // arg name -> description
	RequiredArgs []string          // subset of Args keys
	Example      string
	Requires     string    // name of a prerequisite probe, or ""
	Transform    Transform // set iff Requires is set
	Run          Func

	// ResolverOnlyArgs lists argument keys whose values may only come
	// from dependency resolution; caller-supplied values are stripped.
	ResolverOnlyArgs []string
}

// HasTag reports whether the spec carries the given tag.
func (s *Spec) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// needsNamedContainer reports whether the invoker must resolve a
// container handle before dispatch.
func (s *Spec) needsNamedContainer() bool {
	if s.Scope != ScopeContainer {
		return false
	}
	for _, r := range s.RequiredArgs {
		if r == "container" {
			return true
		}
	}
	return false
}

// Ok builds a successful result for the named probe.
func Ok(name string, data map[string]interface{}) Result {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Result{ProbeName: name, Success: true, Data: data}
}

// Fail builds a failed result carrying an execution error.
func Fail(name, msg string) Result {
	return Result{ProbeName: name, Success: false, Error: msg, Data: map[string]interface{}{}}
}

// WrapList normalizes list-shaped probe output under a synthetic "items"
// key, so downstream consumers always see a single result shape.
func WrapList(name string, items []interface{}) Result {
	return Ok(name, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}
