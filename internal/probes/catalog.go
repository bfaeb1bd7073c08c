package probes

import (
	"fmt"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

// BuildRegistry assembles the static probe catalog. It is called once
// at startup; any defect in the table (duplicate name, dangling
// dependency) fails the process before a session starts.
func BuildRegistry() (*probe.Registry, error) {
	registry := probe.NewRegistry()
	for _, spec := range catalog() {
		if err := registry.Register(spec); err != nil {
			return nil, fmt.Errorf("build probe registry: %w", err)
		}
	}
	if err := registry.Finalize(); err != nil {
		return nil, fmt.Errorf("build probe registry: %w", err)
	}
	return registry, nil
}

func catalog() []*probe.Spec {
	return []*probe.Spec{
		// ─── Container scope ────────────────────────────────────────────
		{
			Name:        "containers_state",
			Description: "List all containers with their current state and status.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"inventory"},
			Example:     `containers_state {}`,
			Run:         containersState,
		},
		{
			Name:        "container_logs",
			Description: "Fetch the most recent log lines of one container.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"logs"},
			Args: map[string]string{
				"container": "container name or short id",
				"tail":      "number of trailing lines (default 100)",
			},
			RequiredArgs: []string{"container"},
			Example:      `container_logs {"container": "api", "tail": 50}`,
			Run:          containerLogs,
		},
		{
			Name:        "container_exec",
			Description: "Run a shell command inside a running container.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"exec"},
			Args: map[string]string{
				"container": "container name or short id",
				"command":   "shell command to run",
				"timeout":   "seconds before the command is abandoned",
			},
			RequiredArgs: []string{"container", "command"},
			Example:      `container_exec {"container": "api", "command": "ls /app"}`,
			Run:          containerExec,
		},
		{
			Name:        "container_mounts",
			Description: "List the mount points of one container.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"storage"},
			Args: map[string]string{
				"container": "container name or short id",
			},
			RequiredArgs: []string{"container"},
			Example:      `container_mounts {"container": "db"}`,
			Run:          containerMounts,
		},
		{
			Name:        "containers_ports",
			Description: "List the published ports of every container.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"inventory", "network"},
			Example:     `containers_ports {}`,
			Run:         containersPorts,
		},
		{
			Name:        "container_inspect",
			Description: "Summarize one container's inspect document: state, exit code, restart policy, limits.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"inspect"},
			Args: map[string]string{
				"container": "container name or short id",
			},
			RequiredArgs: []string{"container"},
			Example:      `container_inspect {"container": "api"}`,
			Run:          containerInspect,
		},
		{
			Name:        "inspect_container_runtime_uid",
			Description: "Report the uid/gid the container's main process runs as.",
			Scope:       probe.ScopeContainer,
			Tags:        []string{"inspect", "permissions"},
			Args: map[string]string{
				"container": "container name or short id",
			},
			RequiredArgs: []string{"container"},
			Example:      `inspect_container_runtime_uid {"container": "worker"}`,
			Run:          inspectContainerRuntimeUID,
		},

		// ─── Volume scope ───────────────────────────────────────────────
		{
			Name:        "list_volumes",
			Description: "List all named volumes.",
			Scope:       probe.ScopeVolume,
			Tags:        []string{"inventory", "storage"},
			Example:     `list_volumes {}`,
			Run:         listVolumes,
		},
		{
			Name:        "volume_metadata",
			Description: "Inspect one volume: driver, mountpoint, labels.",
			Scope:       probe.ScopeVolume,
			Tags:        []string{"storage"},
			Args: map[string]string{
				"volume_name": "volume name",
			},
			RequiredArgs: []string{"volume_name"},
			Example:      `volume_metadata {"volume_name": "pgdata"}`,
			Run:          volumeMetadata,
		},
		{
			Name:        "volume_data_inspection",
			Description: "List the contents and size of a volume through a throwaway helper container.",
			Scope:       probe.ScopeVolume,
			Tags:        []string{"storage"},
			Args: map[string]string{
				"volume_name": "volume name",
			},
			RequiredArgs: []string{"volume_name"},
			Example:      `volume_data_inspection {"volume_name": "pgdata"}`,
			Run:          volumeDataInspection,
		},
		{
			Name:        "volume_file_read",
			Description: "Read the head of one file inside a volume.",
			Scope:       probe.ScopeVolume,
			Tags:        []string{"storage"},
			Args: map[string]string{
				"volume_name": "volume name",
				"path":        "file path relative to the volume root",
			},
			RequiredArgs: []string{"volume_name", "path"},
			Example:      `volume_file_read {"volume_name": "appcfg", "path": "settings.json"}`,
			Run:          volumeFileRead,
		},
		{
			Name:        "inspect_volume_file_permissions",
			Description: "Report numeric ownership and permissions of files inside a volume.",
			Scope:       probe.ScopeVolume,
			Tags:        []string{"storage", "permissions"},
			Args: map[string]string{
				"volume_name": "volume name",
				"path":        "file or directory relative to the volume root (default: root)",
			},
			RequiredArgs: []string{"volume_name"},
			Example:      `inspect_volume_file_permissions {"volume_name": "pgdata", "path": "data"}`,
			Run:          inspectVolumeFilePermissions,
		},

		// ─── Network scope ──────────────────────────────────────────────
		{
			Name:        "dns_resolution",
			Description: "Resolve a hostname from the host's resolver.",
			Scope:       probe.ScopeNetwork,
			Tags:        []string{"network"},
			Args: map[string]string{
				"hostname": "hostname to resolve",
			},
			RequiredArgs: []string{"hostname"},
			Example:      `dns_resolution {"hostname": "db"}`,
			Run:          dnsResolution,
		},
		{
			Name:        "tcp_connection",
			Description: "Attempt a TCP connection to host:port and report reachability and latency.",
			Scope:       probe.ScopeNetwork,
			Tags:        []string{"network"},
			Args: map[string]string{
				"host": "target host",
				"port": "target port",
			},
			RequiredArgs: []string{"host", "port"},
			Example:      `tcp_connection {"host": "localhost", "port": 5432}`,
			Run:          tcpConnection,
		},
		{
			Name:        "http_connection",
			Description: "Issue a GET request and report status, latency, and a body snippet.",
			Scope:       probe.ScopeNetwork,
			Tags:        []string{"network"},
			Args: map[string]string{
				"url": "target URL",
			},
			RequiredArgs: []string{"url"},
			Example:      `http_connection {"url": "http://localhost:8080/health"}`,
			Run:          httpConnection,
		},

		// ─── Config scope ───────────────────────────────────────────────
		{
			Name:        "config_files_detection",
			Description: "Walk the workspace and classify configuration files (compose, env, dockerfile, generic).",
			Scope:       probe.ScopeConfig,
			Tags:        []string{"discovery", "config"},
			Args: map[string]string{
				"root":  "directory to scan (default: workspace root)",
				"depth": "maximum directory depth (default 3)",
			},
			Example: `config_files_detection {"root": ".", "depth": 3}`,
			Run:     configFilesDetection,
		},
		{
			Name:        "docker_compose_parsing",
			Description: "Parse detected docker-compose files and summarize services, ports, and volumes.",
			Scope:       probe.ScopeConfig,
			Tags:        []string{"config"},
			ResolverOnlyArgs: []string{"files"},
			Requires:         "config_files_detection",
			Transform:        filesOfType(fileTypeCompose),
			Example:          `docker_compose_parsing {}`,
			Run:              dockerComposeParsing,
		},
		{
			Name:        "env_files_parsing",
			Description: "Parse detected .env files; secret-looking values are redacted.",
			Scope:       probe.ScopeConfig,
			Tags:        []string{"config"},
			ResolverOnlyArgs: []string{"files"},
			Requires:         "config_files_detection",
			Transform:        filesOfType(fileTypeEnv),
			Example:          `env_files_parsing {}`,
			Run:              envFilesParsing,
		},
		{
			Name:        "generic_config_parsing",
			Description: "Parse detected generic config files and report their top-level structure.",
			Scope:       probe.ScopeConfig,
			Tags:        []string{"config"},
			ResolverOnlyArgs: []string{"files"},
			Requires:         "config_files_detection",
			Transform:        filesOfType(fileTypeConfig),
			Example:          `generic_config_parsing {}`,
			Run:              genericConfigParsing,
		},
	}
}
