package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

const sampleYAML = `
llm:
  provider: litellm
  api_key: ${LITELLM_API_KEY}
  api_base: http://localhost:4000
  model: gpt-4o
  temperature: 0.2
agent:
  use_prompts_yaml: true
tools:
  enabled: [read_file, execute_command]
  command_timeout: 10
docker:
  image_name: my-sandbox
  port: 8080
labels:
  - ${LABEL}
  - literal ${LABEL} text
`

func readerFor(content string) func(string) ([]byte, error) {
	return func(string) ([]byte, error) { return []byte(content), nil }
}

func TestLoadResolvesPlaceholdersAndDefaults(t *testing.T) {
	cfg, err := Load(
		WithConfigPath("config.yaml"),
		WithFileReader(readerFor(sampleYAML)),
		WithEnv(MapEnvLookup(map[string]string{"LITELLM_API_KEY": "secret", "LABEL": "blue"})),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.APIKey != "secret" {
		t.Fatalf("api_key = %q, want resolved placeholder", cfg.LLM.APIKey)
	}
	if cfg.LLM.Temperature != 0.2 || cfg.LLM.MaxTokens != 128000 {
		t.Fatalf("unexpected llm numbers: %+v", cfg.LLM)
	}
	if !cfg.Agent.UsePromptsYAML || cfg.Agent.MaxSteps != 50 {
		t.Fatalf("unexpected agent config: %+v", cfg.Agent)
	}
	if !reflect.DeepEqual(cfg.Tools.Enabled, []string{"read_file", "execute_command"}) {
		t.Fatalf("enabled tools = %v", cfg.Tools.Enabled)
	}
	if cfg.Tools.CommandTimeoutSeconds != 10 {
		t.Fatalf("command_timeout = %d", cfg.Tools.CommandTimeoutSeconds)
	}
	if cfg.Docker.ImageName != "my-sandbox" || cfg.Docker.Port != 8080 || cfg.Docker.WorkingDir != "/app" || cfg.Docker.DataDir != "/data" {
		t.Fatalf("unexpected docker config: %+v", cfg.Docker)
	}
	if cfg.Web.Host != "0.0.0.0" || cfg.Web.Port != 7860 {
		t.Fatalf("unexpected web defaults: %+v", cfg.Web)
	}
	if cfg.Path != "config.yaml" {
		t.Fatalf("Path = %q", cfg.Path)
	}

	labels, _ := cfg.Raw["labels"].([]any)
	if len(labels) != 2 || labels[0] != "blue" || labels[1] != "literal ${LABEL} text" {
		t.Fatalf("labels = %#v", labels)
	}
	if cfg.Section("llm")["api_key"] != "secret" {
		t.Fatalf("raw section not resolved: %#v", cfg.Section("llm"))
	}
	if cfg.Section("missing") != nil {
		t.Fatal("missing section should be nil")
	}
}

func TestLoadUnsetPlaceholderBecomesEmpty(t *testing.T) {
	cfg, err := Load(
		WithConfigPath("config.yaml"),
		WithFileReader(readerFor(sampleYAML)),
		WithEnv(MapEnvLookup(nil)),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected empty api key, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := Load(WithConfigPath(path))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to load configuration from "+path) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestLoadMalformedAndEmptyFiles(t *testing.T) {
	for name, content := range map[string]string{
		"malformed": "llm: [unclosed",
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(WithConfigPath("bad.yaml"), WithFileReader(readerFor(content)))
			if err == nil || !strings.Contains(err.Error(), "failed to load configuration from bad.yaml") {
				t.Fatalf("expected load failure, got %v", err)
			}
		})
	}
}

func TestLoadUsesEnvConfigPath(t *testing.T) {
	var requested string
	reader := func(path string) ([]byte, error) {
		requested = path
		return []byte("llm:\n  model: m\n"), nil
	}
	_, err := Load(
		WithFileReader(reader),
		WithEnv(MapEnvLookup(map[string]string{EnvConfigPath: "/etc/codeagent.yaml"})),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if requested != "/etc/codeagent.yaml" {
		t.Fatalf("read %q, want env path", requested)
	}
}

func TestResolvePaths(t *testing.T) {
	path, source := ResolveConfigPath(MapEnvLookup(nil))
	if path != DefaultConfigPath || source != SourceDefault {
		t.Fatalf("got %q (%s)", path, source)
	}
	path, source = ResolvePromptsPath(MapEnvLookup(map[string]string{EnvPromptsPath: " custom.yaml "}))
	if path != "custom.yaml" || source != SourceEnv {
		t.Fatalf("got %q (%s)", path, source)
	}
}

func TestFlagOverridesFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "", "")
	if err := flags.Parse([]string{"--model", "flag-model"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(
		WithConfigPath("config.yaml"),
		WithFileReader(readerFor(sampleYAML)),
		WithEnv(MapEnvLookup(nil)),
		WithFlag("llm.model", flags.Lookup("model")),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "flag-model" {
		t.Fatalf("model = %q, want flag value", cfg.LLM.Model)
	}
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg, err := Load(
		WithConfigPath("config.yaml"),
		WithFileReader(readerFor(sampleYAML)),
		WithEnv(MapEnvLookup(map[string]string{"LITELLM_API_KEY": "secret"})),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	llm := cfg.Redacted()["llm"].(map[string]any)
	if llm["api_key"] != "[REDACTED]" {
		t.Fatalf("api_key not masked: %v", llm["api_key"])
	}
	if llm["model"] != "gpt-4o" {
		t.Fatalf("model should be kept: %v", llm["model"])
	}
	if cfg.Section("llm")["api_key"] != "secret" {
		t.Fatal("Redacted must not modify the raw document")
	}
}
