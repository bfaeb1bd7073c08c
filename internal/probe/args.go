package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks argument validation failures: unknown probe or a
// required argument still missing after dependency resolution.
var ErrValidation = errors.New("argument validation failed")

// argAliases maps the argument spellings the Reasoner tends to produce
// onto the canonical keys the specs declare.
var argAliases = map[string]string{
	"container_name": "container",
	"cmd":            "command",
	"tail_lines":     "tail",
	"timeout_s":      "timeout",
}

// Sanitize normalizes raw arguments for one probe:
//
//  1. alias keys are rewritten to their canonical form;
//  2. when the spec declares a non-empty argument schema, keys outside
//     it are dropped (probes with an empty schema accept anything, since
//     their arguments are injected by the resolver);
//  3. resolver-only keys are stripped outright, so their values can only
//     originate from dependency resolution.
//
// The input map is never mutated.
func Sanitize(spec *Spec, raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		if canonical, ok := argAliases[key]; ok {
			key = canonical
		}
		out[key] = value
	}
	if len(spec.Args) > 0 {
		for key := range out {
			if _, declared := spec.Args[key]; !declared {
				delete(out, key)
			}
		}
	}
	for _, key := range spec.ResolverOnlyArgs {
		delete(out, key)
	}
	return out
}

// Validate checks that every declared required argument is present and
// non-empty. It runs after resolution so injected arguments count.
func Validate(spec *Spec, args map[string]interface{}) error {
	var missing []string
	for _, req := range spec.RequiredArgs {
		value, ok := args[req]
		if !ok || isFalsy(value) {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: probe %s missing required arguments: %s",
			ErrValidation, spec.Name, strings.Join(missing, ", "))
	}
	return nil
}

// ParseArgsText turns the Reasoner's literal argument text into a map.
// JSON is tried first, then best-effort key=value pairs, then an empty
// map. It never fails: a malformed plan must not fail the step.
func ParseArgsText(text string) map[string]interface{} {
	text = strings.TrimSpace(text)
	if text == "" || text == "{}" || strings.EqualFold(text, "none") {
		return map[string]interface{}{}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed
	}

	out := map[string]interface{}{}
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			kv = strings.SplitN(part, ":", 2)
		}
		if len(kv) != 2 {
			continue
		}
		key := strings.Trim(strings.TrimSpace(kv[0]), `"'{}`)
		value := strings.Trim(strings.TrimSpace(kv[1]), `"'{}`)
		if key != "" {
			out[key] = value
		}
	}
	return out
}

// isFalsy mirrors the merge semantics of the resolver: nil, empty
// strings, zero numbers, false, and empty collections all count as
// absent.
func isFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}
