package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/gumshoe-dev/gumshoe/internal/dockerx"
	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

func listVolumes(ctx context.Context, inv probe.Invocation) probe.Result {
	volumes, err := inv.Engine.ListVolumes(ctx)
	if err != nil {
		return probe.Fail("list_volumes", err.Error())
	}
	items := lo.Map(volumes, func(v dockerx.Volume, _ int) interface{} {
		return map[string]interface{}{
			"name":   v.Name,
			"driver": v.Driver,
		}
	})
	return probe.WrapList("list_volumes", items)
}

func volumeMetadata(ctx context.Context, inv probe.Invocation) probe.Result {
	name := asString(inv.Args["volume_name"])
	v, err := inv.Engine.InspectVolume(ctx, name)
	if err != nil {
		return probe.Fail("volume_metadata", err.Error())
	}
	return probe.Ok("volume_metadata", map[string]interface{}{
		"name":       v.Name,
		"driver":     v.Driver,
		"mountpoint": v.Mountpoint,
		"scope":      v.Scope,
		"created_at": v.CreatedAt,
		"labels":     v.Labels,
	})
}

func volumeDataInspection(ctx context.Context, inv probe.Invocation) probe.Result {
	name := asString(inv.Args["volume_name"])
	res, err := inv.Engine.VolumeExec(ctx, name, "ls -la /probe && echo --- && du -sh /probe 2>/dev/null")
	if err != nil {
		return probe.Fail("volume_data_inspection", err.Error())
	}
	return probe.Ok("volume_data_inspection", map[string]interface{}{
		"volume":    name,
		"listing":   res.Stdout,
		"exit_code": res.ExitCode,
	})
}

const maxVolumeFileBytes = 4096

func volumeFileRead(ctx context.Context, inv probe.Invocation) probe.Result {
	name := asString(inv.Args["volume_name"])
	path := asString(inv.Args["path"])
	clean, err := volumePath(path)
	if err != nil {
		return probe.Fail("volume_file_read", err.Error())
	}
	script := fmt.Sprintf("head -c %d /probe/%s", maxVolumeFileBytes, clean)
	res, err := inv.Engine.VolumeExec(ctx, name, script)
	if err != nil {
		return probe.Fail("volume_file_read", err.Error())
	}
	if res.ExitCode != 0 {
		return probe.Fail("volume_file_read",
			fmt.Sprintf("read %s in volume %s exited %d", clean, name, res.ExitCode))
	}
	return probe.Ok("volume_file_read", map[string]interface{}{
		"volume":    name,
		"path":      clean,
		"content":   res.Stdout,
		"truncated": len(res.Stdout) >= maxVolumeFileBytes,
	})
}

func inspectVolumeFilePermissions(ctx context.Context, inv probe.Invocation) probe.Result {
	name := asString(inv.Args["volume_name"])
	path := asString(inv.Args["path"])
	target := "/probe"
	if path != "" {
		clean, err := volumePath(path)
		if err != nil {
			return probe.Fail("inspect_volume_file_permissions", err.Error())
		}
		target = "/probe/" + clean
	}
	// Numeric uid/gid output matches what inspect_container_runtime_uid
	// reports, so the two can be compared directly.
	res, err := inv.Engine.VolumeExec(ctx, name, "ls -lan "+target)
	if err != nil {
		return probe.Fail("inspect_volume_file_permissions", err.Error())
	}
	return probe.Ok("inspect_volume_file_permissions", map[string]interface{}{
		"volume":      name,
		"target":      strings.TrimPrefix(target, "/probe/"),
		"permissions": res.Stdout,
		"exit_code":   res.ExitCode,
	})
}

// volumePath rejects traversal out of the mounted volume root.
func volumePath(path string) (string, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if clean == "" {
		return "", fmt.Errorf("no file path given")
	}
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path %q escapes the volume root", path)
	}
	return clean, nil
}
