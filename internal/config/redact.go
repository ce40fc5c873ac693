package config

import (
	"codeagent/internal/logging"
)

// Redacted returns a deep copy of the raw document with secret-looking keys
// masked, for display.
func (c *Config) Redacted() map[string]any {
	if c == nil {
		return nil
	}
	out, _ := redactValue(c.Raw).(map[string]any)
	return out
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if s, ok := item.(string); ok && s != "" && logging.IsSensitiveKey(key) {
				out[key] = logging.Placeholder
				continue
			}
			out[key] = redactValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}
