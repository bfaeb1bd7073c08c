package dockerx

import "context"

// Package dockerx wraps access to the local container engine.
//
// Responsibilities:
//   - Expose the narrow set of engine operations the probes need
//     (container inventory, logs, exec, inspect, volumes)
//   - Run short-lived helper containers for volume inspection with
//     deterministic teardown
//   - Memoize the container inventory once per session (ContainerCache)
//
// Probe bodies never talk to the Docker SDK directly; they go through the
// Engine interface so tests can substitute a fake.

// Container is one entry of the engine's container inventory.
type Container struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Image  string            `json:"image"`
	State  string            `json:"state"`
	Status string            `json:"status"`
	Ports  []string          `json:"ports,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Mount describes a single mount point of a container.
type Mount struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Mode        string `json:"mode,omitempty"`
	RW          bool   `json:"rw"`
}

// Volume describes a named volume.
type Volume struct {
	Name       string            `json:"name"`
	Driver     string            `json:"driver"`
	Mountpoint string            `json:"mountpoint"`
	Scope      string            `json:"scope,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// ExecResult carries the outcome of a command executed inside a container.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Engine is the container-engine surface consumed by probe bodies.
type Engine interface {
	// ListContainers returns the full inventory, including stopped containers.
	ListContainers(ctx context.Context) ([]Container, error)

	// InspectContainer returns the raw inspect document for one container.
	InspectContainer(ctx context.Context, id string) (map[string]interface{}, error)

	// ContainerLogs returns up to tail lines of combined stdout/stderr.
	ContainerLogs(ctx context.Context, id string, tail int) (string, error)

	// ContainerExec runs a shell command inside a running container.
	ContainerExec(ctx context.Context, id, command string) (ExecResult, error)

	// ContainerMounts returns the mount points of one container.
	ContainerMounts(ctx context.Context, id string) ([]Mount, error)

	// ListVolumes returns all named volumes known to the engine.
	ListVolumes(ctx context.Context) ([]Volume, error)

	// InspectVolume returns metadata for one named volume.
	InspectVolume(ctx context.Context, name string) (Volume, error)

	// VolumeExec mounts the volume read-only into a short-lived helper
	// container and runs a shell script against it. The helper is always
	// removed, even when the script fails or the context is cancelled.
	VolumeExec(ctx context.Context, volumeName, script string) (ExecResult, error)

	// Close releases the underlying client connection.
	Close() error
}
