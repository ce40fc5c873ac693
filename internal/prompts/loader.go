package prompts

import (
	"fmt"
	"os"
	"strings"

	"codeagent/internal/config"

	"gopkg.in/yaml.v3"
)

// Loader holds the prompt templates parsed from a YAML file.
type Loader struct {
	path      string
	templates map[string]any
}

// Load reads the prompt YAML at path. An empty path resolves through
// CODEAGENT_PROMPTS_PATH and then prompts/prompts.yaml.
func Load(path string) (*Loader, error) {
	return LoadWith(path, os.ReadFile, config.DefaultEnvLookup)
}

// LoadWith is Load with injectable file and environment access.
func LoadWith(path string, readFile func(string) ([]byte, error), lookup config.EnvLookup) (*Loader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path, _ = config.ResolvePromptsPath(lookup)
	}
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts from %s: %w", path, err)
	}
	var templates map[string]any
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to load prompts from %s: parse yaml: %w", path, err)
	}
	if templates == nil {
		return nil, fmt.Errorf("failed to load prompts from %s: file is empty", path)
	}
	return &Loader{path: path, templates: templates}, nil
}

// Path returns the file the templates were read from.
func (l *Loader) Path() string {
	return l.path
}

// Templates returns the whole template document. Treat as read-only.
func (l *Loader) Templates() map[string]any {
	return l.templates
}

// Get walks nested keys and returns the string found there, or defaultValue
// when any key is missing or the leaf is not a string.
func (l *Loader) Get(defaultValue string, keys ...string) string {
	if l == nil || len(keys) == 0 {
		return defaultValue
	}
	var current any = l.templates
	for _, key := range keys {
		node, ok := current.(map[string]any)
		if !ok {
			return defaultValue
		}
		if current, ok = node[key]; !ok {
			return defaultValue
		}
	}
	if text, ok := current.(string); ok {
		return text
	}
	return defaultValue
}
