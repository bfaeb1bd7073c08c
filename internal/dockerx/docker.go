package dockerx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// helperImage is used for volume inspection when no container has the
// volume mounted. Small, always has a POSIX shell.
const helperImage = "alpine:3.20"

// dockerEngine implements Engine on top of the Docker SDK client.
type dockerEngine struct {
	cli *client.Client
}

// NewEngine connects to the local Docker daemon using the standard
// environment configuration (DOCKER_HOST etc.).
func NewEngine() (Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon: %w", err)
	}
	return &dockerEngine{cli: cli}, nil
}

func (e *dockerEngine) ListContainers(ctx context.Context) ([]Container, error) {
	raw, err := e.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]Container, 0, len(raw))
	for _, c := range raw {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		ports := make([]string, 0, len(c.Ports))
		for _, p := range c.Ports {
			if p.PublicPort > 0 {
				ports = append(ports, fmt.Sprintf("%s:%d->%d/%s", p.IP, p.PublicPort, p.PrivatePort, p.Type))
			} else {
				ports = append(ports, fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
			}
		}
		out = append(out, Container{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			State:  c.State,
			Status: c.Status,
			Ports:  ports,
			Labels: c.Labels,
		})
	}
	return out, nil
}

func (e *dockerEngine) InspectContainer(ctx context.Context, id string) (map[string]interface{}, error) {
	info, err := e.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", id, err)
	}
	// Round-trip through JSON so callers get a plain document instead of
	// the SDK's struct graph.
	buf, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode inspect document: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("decode inspect document: %w", err)
	}
	return doc, nil
}

func (e *dockerEngine) ContainerLogs(ctx context.Context, id string, tail int) (string, error) {
	if tail <= 0 {
		tail = 100
	}
	rc, err := e.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return "", fmt.Errorf("fetch logs for %s: %w", id, err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil && err != io.EOF {
		// TTY-attached containers write a raw stream with no multiplexing
		// header; fall back to reading it as-is.
		plain, rerr := io.ReadAll(rc)
		if rerr != nil {
			return "", fmt.Errorf("read logs for %s: %w", id, err)
		}
		return string(plain), nil
	}
	if stderr.Len() > 0 {
		return stdout.String() + stderr.String(), nil
	}
	return stdout.String(), nil
}

func (e *dockerEngine) ContainerExec(ctx context.Context, id, command string) (ExecResult, error) {
	created, err := e.cli.ContainerExecCreate(ctx, id, types.ExecConfig{
		Cmd:          []string{"sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("create exec in %s: %w", id, err)
	}
	attach, err := e.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("attach exec in %s: %w", id, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && err != io.EOF {
		return ExecResult{}, fmt.Errorf("read exec output from %s: %w", id, err)
	}
	inspect, err := e.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("inspect exec in %s: %w", id, err)
	}
	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func (e *dockerEngine) ContainerMounts(ctx context.Context, id string) ([]Mount, error) {
	info, err := e.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", id, err)
	}
	mounts := make([]Mount, 0, len(info.Mounts))
	for _, m := range info.Mounts {
		mounts = append(mounts, Mount{
			Type:        string(m.Type),
			Source:      m.Source,
			Destination: m.Destination,
			Mode:        m.Mode,
			RW:          m.RW,
		})
	}
	return mounts, nil
}

func (e *dockerEngine) ListVolumes(ctx context.Context) ([]Volume, error) {
	resp, err := e.cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	out := make([]Volume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		out = append(out, volumeFromSDK(*v))
	}
	return out, nil
}

func (e *dockerEngine) InspectVolume(ctx context.Context, name string) (Volume, error) {
	v, err := e.cli.VolumeInspect(ctx, name)
	if err != nil {
		return Volume{}, fmt.Errorf("inspect volume %s: %w", name, err)
	}
	return volumeFromSDK(v), nil
}

// VolumeExec mounts volumeName read-only at /probe inside a throwaway
// helper container, runs the script, and removes the helper. Teardown
// uses a background context so an interrupt mid-probe cannot leak the
// helper.
func (e *dockerEngine) VolumeExec(ctx context.Context, volumeName, script string) (ExecResult, error) {
	// Best-effort pull; a locally cached image works offline.
	if rc, err := e.cli.ImagePull(ctx, helperImage, types.ImagePullOptions{}); err == nil {
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
	}

	created, err := e.cli.ContainerCreate(ctx,
		&container.Config{
			Image: helperImage,
			Cmd:   []string{"sh", "-c", script},
		},
		&container.HostConfig{
			Binds: []string{volumeName + ":/probe:ro"},
		},
		nil, nil, "")
	if err != nil {
		return ExecResult{}, fmt.Errorf("create helper container for volume %s: %w", volumeName, err)
	}
	defer func() {
		_ = e.cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})
	}()

	if err := e.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return ExecResult{}, fmt.Errorf("start helper container: %w", err)
	}

	exitCode := 0
	waitCh, errCh := e.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case status := <-waitCh:
		exitCode = int(status.StatusCode)
	case err := <-errCh:
		return ExecResult{}, fmt.Errorf("wait for helper container: %w", err)
	case <-ctx.Done():
		return ExecResult{}, ctx.Err()
	}

	out, err := e.ContainerLogs(ctx, created.ID, 1000)
	if err != nil {
		return ExecResult{}, err
	}
	return ExecResult{ExitCode: exitCode, Stdout: out}, nil
}

func (e *dockerEngine) Close() error {
	return e.cli.Close()
}

func volumeFromSDK(v volume.Volume) Volume {
	return Volume{
		Name:       v.Name,
		Driver:     v.Driver,
		Mountpoint: v.Mountpoint,
		Scope:      v.Scope,
		CreatedAt:  v.CreatedAt,
		Labels:     v.Labels,
	}
}
