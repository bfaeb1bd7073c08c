package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/gumshoe-dev/gumshoe/internal/dockerx"
	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

// Package probes holds the probe bodies and the catalog that assembles
// them into a registry. Bodies receive everything through
// probe.Invocation and report through probe.Result; they never reach
// outside the dockerx.Engine interface, the filesystem, or the network.

func containersState(_ context.Context, inv probe.Invocation) probe.Result {
	if len(inv.Containers) == 0 {
		return probe.Ok("containers_state", map[string]interface{}{
			"containers": []interface{}{},
			"count":      0,
			"note":       "no containers available",
		})
	}
	summaries := lo.Map(inv.Containers, func(c dockerx.Container, _ int) interface{} {
		return map[string]interface{}{
			"id":     shortID(c.ID),
			"name":   c.Name,
			"image":  c.Image,
			"state":  c.State,
			"status": c.Status,
		}
	})
	running := lo.CountBy(inv.Containers, func(c dockerx.Container) bool { return c.State == "running" })
	return probe.Ok("containers_state", map[string]interface{}{
		"containers": summaries,
		"count":      len(summaries),
		"running":    running,
	})
}

func containerLogs(ctx context.Context, inv probe.Invocation) probe.Result {
	tail := asInt(inv.Args["tail"], 100)
	out, err := inv.Engine.ContainerLogs(ctx, inv.Container.ID, tail)
	if err != nil {
		return probe.Fail("container_logs", err.Error())
	}
	return probe.Ok("container_logs", map[string]interface{}{
		"container": inv.Container.Name,
		"tail":      tail,
		"logs":      out,
		"lines":     len(strings.Split(strings.TrimRight(out, "\n"), "\n")),
	})
}

func containerExec(ctx context.Context, inv probe.Invocation) probe.Result {
	command := asString(inv.Args["command"])
	res, err := inv.Engine.ContainerExec(ctx, inv.Container.ID, command)
	if err != nil {
		return probe.Fail("container_exec", err.Error())
	}
	return probe.Ok("container_exec", map[string]interface{}{
		"container": inv.Container.Name,
		"command":   command,
		"exit_code": res.ExitCode,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
	})
}

func containerMounts(ctx context.Context, inv probe.Invocation) probe.Result {
	mounts, err := inv.Engine.ContainerMounts(ctx, inv.Container.ID)
	if err != nil {
		return probe.Fail("container_mounts", err.Error())
	}
	items := lo.Map(mounts, func(m dockerx.Mount, _ int) interface{} {
		return map[string]interface{}{
			"type":        m.Type,
			"source":      m.Source,
			"destination": m.Destination,
			"mode":        m.Mode,
			"rw":          m.RW,
		}
	})
	return probe.WrapList("container_mounts", items)
}

func containersPorts(_ context.Context, inv probe.Invocation) probe.Result {
	items := lo.FilterMap(inv.Containers, func(c dockerx.Container, _ int) (interface{}, bool) {
		if len(c.Ports) == 0 {
			return nil, false
		}
		return map[string]interface{}{
			"name":  c.Name,
			"state": c.State,
			"ports": c.Ports,
		}, true
	})
	return probe.WrapList("containers_ports", items)
}

func containerInspect(ctx context.Context, inv probe.Invocation) probe.Result {
	doc, err := inv.Engine.InspectContainer(ctx, inv.Container.ID)
	if err != nil {
		return probe.Fail("container_inspect", err.Error())
	}
	data := map[string]interface{}{
		"container": inv.Container.Name,
	}
	if state, ok := doc["State"].(map[string]interface{}); ok {
		data["state"] = map[string]interface{}{
			"status":     state["Status"],
			"exit_code":  state["ExitCode"],
			"oom_killed": state["OOMKilled"],
			"error":      state["Error"],
			"started_at": state["StartedAt"],
		}
	}
	if rc, ok := doc["RestartCount"]; ok {
		data["restart_count"] = rc
	}
	if hc, ok := doc["HostConfig"].(map[string]interface{}); ok {
		data["restart_policy"] = hc["RestartPolicy"]
		data["memory_limit"] = hc["Memory"]
		data["network_mode"] = hc["NetworkMode"]
	}
	if cfg, ok := doc["Config"].(map[string]interface{}); ok {
		data["image"] = cfg["Image"]
		data["entrypoint"] = cfg["Entrypoint"]
		data["cmd"] = cfg["Cmd"]
		if env, ok := cfg["Env"].([]interface{}); ok {
			data["env_count"] = len(env)
		}
	}
	return probe.Ok("container_inspect", data)
}

// inspectContainerRuntimeUID reports the identity the container's main
// process actually runs as, which is a common source of volume
// permission failures.
func inspectContainerRuntimeUID(ctx context.Context, inv probe.Invocation) probe.Result {
	res, err := inv.Engine.ContainerExec(ctx, inv.Container.ID, "id -u && id -g && id -un 2>/dev/null || true")
	if err != nil {
		return probe.Fail("inspect_container_runtime_uid", err.Error())
	}
	lines := strings.Fields(strings.TrimSpace(res.Stdout))
	data := map[string]interface{}{
		"container": inv.Container.Name,
		"raw":       strings.TrimSpace(res.Stdout),
	}
	if len(lines) >= 2 {
		data["uid"] = lines[0]
		data["gid"] = lines[1]
	}
	if len(lines) >= 3 {
		data["user"] = lines[2]
	}
	if res.ExitCode != 0 {
		return probe.Fail("inspect_container_runtime_uid",
			fmt.Sprintf("id command exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}
	return probe.Ok("inspect_container_runtime_uid", data)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
