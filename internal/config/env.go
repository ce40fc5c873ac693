package config

import (
	"fmt"
	"os"
	"regexp"
)

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnvLookup serves lookups from a fixed map.
func MapEnvLookup(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

var placeholderPattern = regexp.MustCompile(`^\$\{(\w+)\}$`)

// ResolveEnv replaces string values that are exactly "${NAME}" with the
// variable's value, or "" when unset. Maps and sequences are walked
// recursively; keys and all other values are returned unchanged.
func ResolveEnv(value any, lookup EnvLookup) any {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = ResolveEnv(item, lookup)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = ResolveEnv(item, lookup)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = ResolveEnv(item, lookup)
		}
		return out
	case string:
		match := placeholderPattern.FindStringSubmatch(v)
		if match == nil {
			return v
		}
		resolved, _ := lookup(match[1])
		return resolved
	default:
		return value
	}
}
