package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

// File types assigned by config_files_detection and filtered on by the
// parser probes' dependency transforms.
const (
	fileTypeCompose    = "compose"
	fileTypeEnv        = "env"
	fileTypeDockerfile = "dockerfile"
	fileTypeConfig     = "config"
)

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".json": true,
	".toml": true, ".ini": true, ".conf": true, ".cfg": true,
}

var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"__pycache__": true, ".venv": true,
}

func configFilesDetection(_ context.Context, inv probe.Invocation) probe.Result {
	root := asString(inv.Args["root"])
	if root == "" {
		root = inv.WorkspaceRoot
	}
	depth := asInt(inv.Args["depth"], 3)

	var files []interface{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if rel != "." && strings.Count(rel, string(filepath.Separator)) >= depth {
				return filepath.SkipDir
			}
			return nil
		}
		kind := classifyFile(d.Name())
		if kind == "" {
			return nil
		}
		size := int64(0)
		if info, ierr := d.Info(); ierr == nil {
			size = info.Size()
		}
		files = append(files, map[string]interface{}{
			"path":       path,
			"name":       d.Name(),
			"type":       kind,
			"size_bytes": size,
		})
		return nil
	})
	if err != nil {
		return probe.Fail("config_files_detection", err.Error())
	}
	sort.Slice(files, func(i, j int) bool {
		a := files[i].(map[string]interface{})["path"].(string)
		b := files[j].(map[string]interface{})["path"].(string)
		return a < b
	})
	return probe.Ok("config_files_detection", map[string]interface{}{
		"root":  root,
		"depth": depth,
		"files": files,
		"count": len(files),
	})
}

// classifyFile assigns a file type by name, or "" for files the
// detection probe ignores.
func classifyFile(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "docker-compose") || strings.HasPrefix(lower, "compose."):
		return fileTypeCompose
	case lower == ".env" || strings.HasPrefix(lower, ".env.") || strings.HasSuffix(lower, ".env"):
		return fileTypeEnv
	case lower == "dockerfile" || strings.HasPrefix(lower, "dockerfile."):
		return fileTypeDockerfile
	case configExtensions[filepath.Ext(lower)]:
		return fileTypeConfig
	default:
		return ""
	}
}

// filesOfType builds the dependency transform for a parser probe: it
// extracts the paths of detected files matching the wanted type. Missing
// or malformed detection data degrades to an empty list.
func filesOfType(wanted string) probe.Transform {
	return func(dep probe.Result) map[string]interface{} {
		raw, _ := dep.Data["files"].([]interface{})
		paths := lo.FilterMap(raw, func(entry interface{}, _ int) (interface{}, bool) {
			m, ok := entry.(map[string]interface{})
			if !ok {
				return nil, false
			}
			kind, _ := m["type"].(string)
			path, _ := m["path"].(string)
			if kind != wanted || path == "" {
				return nil, false
			}
			return path, true
		})
		return map[string]interface{}{"files": paths}
	}
}

func dockerComposeParsing(_ context.Context, inv probe.Invocation) probe.Result {
	paths := asStringSlice(inv.Args["files"])
	if len(paths) == 0 {
		return probe.Ok("docker_compose_parsing", map[string]interface{}{
			"files": []interface{}{},
			"note":  "no compose files detected",
		})
	}
	parsed := make([]interface{}, 0, len(paths))
	for _, path := range paths {
		parsed = append(parsed, parseComposeFile(path))
	}
	return probe.Ok("docker_compose_parsing", map[string]interface{}{
		"files": parsed,
		"count": len(parsed),
	})
}

func parseComposeFile(path string) map[string]interface{} {
	out := map[string]interface{}{"path": path}
	raw, err := os.ReadFile(path)
	if err != nil {
		out["error"] = err.Error()
		return out
	}
	var doc struct {
		Services map[string]struct {
			Image       string      `yaml:"image"`
			Build       interface{} `yaml:"build"`
			Ports       []string    `yaml:"ports"`
			DependsOn   interface{} `yaml:"depends_on"`
			Environment interface{} `yaml:"environment"`
			Volumes     []string    `yaml:"volumes"`
			Restart     string      `yaml:"restart"`
		} `yaml:"services"`
		Volumes map[string]interface{} `yaml:"volumes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		out["error"] = fmt.Sprintf("yaml parse: %v", err)
		return out
	}
	services := map[string]interface{}{}
	for name, svc := range doc.Services {
		services[name] = map[string]interface{}{
			"image":       svc.Image,
			"ports":       svc.Ports,
			"depends_on":  svc.DependsOn,
			"environment": svc.Environment,
			"volumes":     svc.Volumes,
			"restart":     svc.Restart,
		}
	}
	out["services"] = services
	out["service_count"] = len(services)
	if len(doc.Volumes) > 0 {
		out["volumes"] = lo.Keys(doc.Volumes)
	}
	return out
}

var secretKeyMarkers = []string{"PASSWORD", "SECRET", "TOKEN", "KEY", "CREDENTIAL"}

func envFilesParsing(_ context.Context, inv probe.Invocation) probe.Result {
	paths := asStringSlice(inv.Args["files"])
	if len(paths) == 0 {
		return probe.Ok("env_files_parsing", map[string]interface{}{
			"files": []interface{}{},
			"note":  "no env files detected",
		})
	}
	parsed := make([]interface{}, 0, len(paths))
	for _, path := range paths {
		entry := map[string]interface{}{"path": path}
		vars, err := godotenv.Read(path)
		if err != nil {
			entry["error"] = err.Error()
			parsed = append(parsed, entry)
			continue
		}
		redacted := map[string]interface{}{}
		for key, value := range vars {
			if isSecretKey(key) {
				redacted[key] = "<redacted>"
			} else {
				redacted[key] = value
			}
		}
		entry["variables"] = redacted
		entry["count"] = len(redacted)
		parsed = append(parsed, entry)
	}
	return probe.Ok("env_files_parsing", map[string]interface{}{
		"files": parsed,
		"count": len(parsed),
	})
}

func isSecretKey(key string) bool {
	upper := strings.ToUpper(key)
	return lo.SomeBy(secretKeyMarkers, func(marker string) bool {
		return strings.Contains(upper, marker)
	})
}

func genericConfigParsing(_ context.Context, inv probe.Invocation) probe.Result {
	paths := asStringSlice(inv.Args["files"])
	if len(paths) == 0 {
		return probe.Ok("generic_config_parsing", map[string]interface{}{
			"files": []interface{}{},
			"note":  "no config files detected",
		})
	}
	parsed := make([]interface{}, 0, len(paths))
	for _, path := range paths {
		parsed = append(parsed, parseConfigFile(path))
	}
	return probe.Ok("generic_config_parsing", map[string]interface{}{
		"files": parsed,
		"count": len(parsed),
	})
}

func parseConfigFile(path string) map[string]interface{} {
	out := map[string]interface{}{"path": path}
	raw, err := os.ReadFile(path)
	if err != nil {
		out["error"] = err.Error()
		return out
	}
	out["size_bytes"] = len(raw)

	switch filepath.Ext(strings.ToLower(path)) {
	case ".json":
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			out["error"] = fmt.Sprintf("json parse: %v", err)
			return out
		}
		out["format"] = "json"
		out["top_level_keys"] = sortedKeys(doc)
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			out["error"] = fmt.Sprintf("yaml parse: %v", err)
			return out
		}
		out["format"] = "yaml"
		out["top_level_keys"] = sortedKeys(doc)
	default:
		// ini/conf style: report non-comment key names only.
		keys := []string{}
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
				continue
			}
			if idx := strings.IndexAny(line, "=:"); idx > 0 {
				keys = append(keys, strings.TrimSpace(line[:idx]))
			}
		}
		out["format"] = "plain"
		out["keys"] = keys
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// ─── Argument coercion helpers ──────────────────────────────────────────────

func asString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asInt accepts the numeric shapes that survive JSON decoding and plan
// text parsing.
func asInt(v interface{}, fallback int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return fallback
}

func asStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}
