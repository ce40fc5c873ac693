package config

// Config is the resolved application configuration. Typed sections are
// decoded from Raw, which keeps the full ${VAR}-resolved document.
type Config struct {
	LLM           LLMConfig           `mapstructure:"llm"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Docker        DockerConfig        `mapstructure:"docker"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Web           WebConfig           `mapstructure:"web"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
	// Raw is the resolved YAML document. Treat as read-only.
	Raw map[string]any `mapstructure:"-"`
}

// LLMConfig selects the chat model endpoint.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	APIKey         string  `mapstructure:"api_key"`
	APIBase        string  `mapstructure:"api_base"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// AgentConfig tunes the delegated agent runtime and the memory-augmented runner.
type AgentConfig struct {
	UsePromptsYAML   bool   `mapstructure:"use_prompts_yaml"`
	MaxSteps         int    `mapstructure:"max_steps"`
	PlanningInterval int    `mapstructure:"planning_interval"`
	UserID           string `mapstructure:"user_id"`
	MemoryLimit      int    `mapstructure:"memory_limit"`
}

// ToolsConfig controls which tools are registered and how they run.
type ToolsConfig struct {
	// Enabled lists tool names to register; empty means all.
	Enabled               []string `mapstructure:"enabled"`
	CommandTimeoutSeconds int      `mapstructure:"command_timeout"`
	Shell                 string   `mapstructure:"shell"`
	PythonBinary          string   `mapstructure:"python_binary"`
	MaxOutputTokens       int      `mapstructure:"max_output_tokens"`
	WebSearchEndpoint     string   `mapstructure:"web_search_endpoint"`
	WebSearchMaxResults   int      `mapstructure:"web_search_max_results"`
	WebFetchCacheSize     int      `mapstructure:"web_fetch_cache_size"`
	WebFetchCacheTTL      int      `mapstructure:"web_fetch_cache_ttl"`
	WebPageMaxChars       int      `mapstructure:"web_page_max_chars"`
	HTTPTimeoutSeconds    int      `mapstructure:"http_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DockerConfig configures the sandbox runner.
type DockerConfig struct {
	ImageName      string   `mapstructure:"image_name"`
	DockerfilePath string   `mapstructure:"dockerfile_path"`
	WorkingDir     string   `mapstructure:"working_dir"`
	DataDir        string   `mapstructure:"data_dir"`
	Port           int      `mapstructure:"port"`
	ForceRebuild   bool     `mapstructure:"force_rebuild"`
	AgentCommand   []string `mapstructure:"agent_command"`
}

// MemoryConfig selects the long-term memory backend.
type MemoryConfig struct {
	// Provider is mem0, local or none.
	Provider         string `mapstructure:"provider"`
	APIBase          string `mapstructure:"api_base"`
	APIKey           string `mapstructure:"api_key"`
	PersistPath      string `mapstructure:"persist_path"`
	Collection       string `mapstructure:"collection"`
	EmbeddingModel   string `mapstructure:"embedding_model"`
	EmbeddingAPIBase string `mapstructure:"embedding_api_base"`
	EmbeddingAPIKey  string `mapstructure:"embedding_api_key"`
}

// WebConfig configures the web UI server.
type WebConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Debug          bool     `mapstructure:"debug"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ObservabilityConfig groups metrics and tracing settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ZipkinEndpoint string  `mapstructure:"zipkin_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

// Section returns a top-level mapping of the raw document, or nil.
func (c *Config) Section(name string) map[string]any {
	if c == nil || c.Raw == nil {
		return nil
	}
	section, _ := c.Raw[name].(map[string]any)
	return section
}
