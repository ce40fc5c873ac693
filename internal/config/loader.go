package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the configuration file location.
	EnvConfigPath = "CODEAGENT_CONFIG_PATH"
	// EnvPromptsPath overrides the prompt template file location.
	EnvPromptsPath = "CODEAGENT_PROMPTS_PATH"
	// EnvPrefix prefixes per-key environment overrides, e.g. CODEAGENT_LLM_MODEL.
	EnvPrefix = "CODEAGENT"

	DefaultConfigPath  = "config/config.yaml"
	DefaultPromptsPath = "prompts/prompts.yaml"
)

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	configPath string
	flags      map[string]*pflag.Flag
}

// WithEnv supplies a custom environment lookup used for ${VAR} placeholders
// and path resolution.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithConfigPath forces the loader to read configuration from a specific file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		o.readFile = reader
	}
}

// WithFlag binds a command-line flag to a dotted config key. The flag wins
// over file and environment only when it was set explicitly.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(o *loadOptions) {
		if flag == nil {
			return
		}
		if o.flags == nil {
			o.flags = make(map[string]*pflag.Flag)
		}
		o.flags[key] = flag
	}
}

// ResolveConfigPath returns the configuration file path and where it came from.
func ResolveConfigPath(lookup EnvLookup) (string, ValueSource) {
	return resolvePath(lookup, EnvConfigPath, DefaultConfigPath)
}

// ResolvePromptsPath returns the prompt file path and where it came from.
func ResolvePromptsPath(lookup EnvLookup) (string, ValueSource) {
	return resolvePath(lookup, EnvPromptsPath, DefaultPromptsPath)
}

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceEnv     ValueSource = "environment"
)

func resolvePath(lookup EnvLookup, envKey, fallback string) (string, ValueSource) {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}
	if value, ok := lookup(envKey); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), SourceEnv
	}
	return fallback, SourceDefault
}

// Load reads the YAML configuration, substitutes ${VAR} placeholders and
// decodes the typed sections on top of defaults.
func Load(opts ...Option) (*Config, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	path := strings.TrimSpace(options.configPath)
	if path == "" {
		path, _ = ResolveConfigPath(options.envLookup)
	}

	raw, err := readDocument(path, options.readFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	resolved, _ := ResolveEnv(raw, options.envLookup).(map[string]any)

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.MergeConfigMap(resolved); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	for key, flag := range options.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration from %s: %w", path, err)
	}
	cfg.Path = path
	cfg.Raw = resolved
	return cfg, nil
}

func readDocument(path string, readFile func(string) ([]byte, error)) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("configuration file is empty")
	}
	return doc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "litellm")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 128000)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_base", "")
	v.SetDefault("llm.model", "")

	v.SetDefault("agent.use_prompts_yaml", false)
	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.planning_interval", 0)
	v.SetDefault("agent.user_id", "default_user")
	v.SetDefault("agent.memory_limit", 3)

	v.SetDefault("tools.enabled", []string{})
	v.SetDefault("tools.command_timeout", 30)
	v.SetDefault("tools.shell", "sh")
	v.SetDefault("tools.python_binary", "python3")
	v.SetDefault("tools.max_output_tokens", 8000)
	v.SetDefault("tools.web_search_endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("tools.web_search_max_results", 10)
	v.SetDefault("tools.web_fetch_cache_size", 64)
	v.SetDefault("tools.web_fetch_cache_ttl", 900)
	v.SetDefault("tools.web_page_max_chars", 40000)
	v.SetDefault("tools.http_timeout", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("docker.image_name", "sandbox-image")
	v.SetDefault("docker.dockerfile_path", ".")
	v.SetDefault("docker.working_dir", "/app")
	v.SetDefault("docker.data_dir", "/data")
	v.SetDefault("docker.port", 0)
	v.SetDefault("docker.force_rebuild", false)
	v.SetDefault("docker.agent_command", []string{"codeagent", "chat"})

	v.SetDefault("memory.provider", "none")
	v.SetDefault("memory.api_base", "https://api.mem0.ai")
	v.SetDefault("memory.api_key", "")
	v.SetDefault("memory.persist_path", "data/memory")
	v.SetDefault("memory.collection", "memories")
	v.SetDefault("memory.embedding_model", "text-embedding-3-small")
	v.SetDefault("memory.embedding_api_base", "")
	v.SetDefault("memory.embedding_api_key", "")

	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 7860)
	v.SetDefault("web.debug", false)
	v.SetDefault("web.allowed_origins", []string{"*"})

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("observability.tracing.zipkin_endpoint", "")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
}
