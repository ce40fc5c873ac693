// Package di builds the process's services once and hands them out lazily.
// The entrypoint creates one Container and passes it to whatever needs it.
package di

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"codeagent/internal/agent"
	"codeagent/internal/config"
	agenterrors "codeagent/internal/errors"
	"codeagent/internal/httpclient"
	"codeagent/internal/llm"
	"codeagent/internal/logging"
	"codeagent/internal/memory"
	"codeagent/internal/observability"
	"codeagent/internal/prompts"
	"codeagent/internal/sandbox"
	"codeagent/internal/tools"
	"codeagent/internal/tools/builtin"

	"github.com/spf13/pflag"
	"github.com/tmc/langchaingo/llms"
)

// Version is reported as the tracing service version.
var Version = "dev"

const shutdownTimeout = 5 * time.Second

// Options configure a Container.
type Options struct {
	ConfigPath  string
	PromptsPath string
	Env         config.EnvLookup
	// Flags binds command-line flags to dotted config keys.
	Flags map[string]*pflag.Flag
	// WorkDir is the host directory the sandbox mounts.
	WorkDir string
	// Prompter answers user_input; nil disables the tool's interactivity.
	Prompter builtin.Prompter
	// LogOutput overrides logging.file.
	LogOutput io.Writer
	// Model replaces the configured LLM client.
	Model llms.Model
}

// Container holds lazily built services. Each accessor builds its service on
// first use and returns the cached value (or error) afterwards.
type Container struct {
	opts Options
	mu   sync.Mutex

	cfg       *config.Config
	logger    *observability.Logger
	logCloser func() error
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
	model     llms.Model
	registry  *tools.Registry
	prompts   *prompts.Loader
	memory    memory.Client
	memoryErr error
	memoryOK  bool
	sandbox   *sandbox.Runner
	runtime   agent.Runtime
	runner    *agent.Runner

	log logging.Logger
}

// New returns an empty container; nothing is built until asked for.
func New(opts Options) *Container {
	if opts.Env == nil {
		opts.Env = config.DefaultEnvLookup
	}
	return &Container{opts: opts, log: logging.NewComponentLogger("DI")}
}

// Config loads the configuration file.
func (c *Container) Config() (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config()
}

func (c *Container) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	loadOpts := []config.Option{config.WithEnv(c.opts.Env)}
	if c.opts.ConfigPath != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(c.opts.ConfigPath))
	}
	for key, flag := range c.opts.Flags {
		loadOpts = append(loadOpts, config.WithFlag(key, flag))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// Logger returns the structured logger and installs it as the process
// default for component loggers.
func (c *Container) Logger() (*observability.Logger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.structuredLogger()
}

func (c *Container) structuredLogger() (*observability.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	output := c.opts.LogOutput
	closer := func() error { return nil }
	if output == nil {
		output, closer, err = observability.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return nil, agenterrors.NewInitError("logger", err)
		}
	}
	c.logger = observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	})
	c.logCloser = closer
	logging.SetDefault(c.logger)
	c.log = logging.NewComponentLogger("DI")
	return c.logger, nil
}

// Metrics returns the metrics collector.
func (c *Container) Metrics() (*observability.MetricsCollector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metricsCollector()
}

func (c *Container) metricsCollector() (*observability.MetricsCollector, error) {
	if c.metrics != nil {
		return c.metrics, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{Enabled: cfg.Observability.Metrics.Enabled})
	if err != nil {
		return nil, agenterrors.NewInitError("metrics", err)
	}
	c.metrics = metrics
	return metrics, nil
}

// Tracer returns the tracer provider; a noop tracer when tracing is off.
func (c *Container) Tracer() (*observability.TracerProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracerProvider()
}

func (c *Container) tracerProvider() (*observability.TracerProvider, error) {
	if c.tracer != nil {
		return c.tracer, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	tc := cfg.Observability.Tracing
	tracer, err := observability.NewTracerProvider(observability.TracingConfig{
		Enabled:        tc.Enabled,
		Exporter:       tc.Exporter,
		OTLPEndpoint:   tc.OTLPEndpoint,
		ZipkinEndpoint: tc.ZipkinEndpoint,
		SampleRate:     tc.SampleRate,
		ServiceName:    "codeagent",
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, agenterrors.NewInitError("tracer", err)
	}
	c.tracer = tracer
	return tracer, nil
}

// LLM returns the model client.
func (c *Container) LLM() (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.llm()
}

func (c *Container) llm() (llms.Model, error) {
	if c.model != nil {
		return c.model, nil
	}
	if c.opts.Model != nil {
		c.model = c.opts.Model
		return c.model, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	c.ensureLogger()
	tracer, err := c.tracerProvider()
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		APIBase:     cfg.LLM.APIBase,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, llm.WithLogger(logging.NewComponentLogger("LLM")), llm.WithTracer(tracer))
	if err != nil {
		if agenterrors.IsConfigError(err) {
			return nil, err
		}
		return nil, agenterrors.NewInitError("LLM client", err)
	}
	c.model = client
	return client, nil
}

// Prompts returns the prompt templates.
func (c *Container) Prompts() (*prompts.Loader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promptLoader()
}

func (c *Container) promptLoader() (*prompts.Loader, error) {
	if c.prompts != nil {
		return c.prompts, nil
	}
	loader, err := prompts.LoadWith(c.opts.PromptsPath, os.ReadFile, c.opts.Env)
	if err != nil {
		return nil, agenterrors.NewInitError("prompts", err)
	}
	c.prompts = loader
	return loader, nil
}

// Memory returns the memory client. With memory.provider "none" the error
// wraps memory.ErrDisabled.
func (c *Container) Memory() (memory.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryClient()
}

func (c *Container) memoryClient() (memory.Client, error) {
	if c.memoryOK {
		return c.memory, c.memoryErr
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	c.ensureLogger()
	mc := cfg.Memory
	embedKey, embedBase := mc.EmbeddingAPIKey, mc.EmbeddingAPIBase
	if embedKey == "" {
		embedKey, embedBase = cfg.LLM.APIKey, firstNonEmpty(embedBase, cfg.LLM.APIBase)
	}
	client, err := memory.New(memory.Config{
		Provider:         mc.Provider,
		APIBase:          mc.APIBase,
		APIKey:           mc.APIKey,
		PersistPath:      mc.PersistPath,
		Collection:       mc.Collection,
		EmbeddingModel:   mc.EmbeddingModel,
		EmbeddingAPIBase: embedBase,
		EmbeddingAPIKey:  embedKey,
		HTTPClient:       httpclient.New(time.Duration(cfg.Tools.HTTPTimeoutSeconds)*time.Second, logging.NewComponentLogger("Memory")),
	})
	if err != nil && !agenterrors.IsConfigError(err) {
		err = agenterrors.NewInitError("memory client", err)
	}
	c.memory, c.memoryErr, c.memoryOK = client, err, true
	return client, err
}

// Sandbox returns the docker sandbox runner.
func (c *Container) Sandbox() (*sandbox.Runner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sandbox != nil {
		return c.sandbox, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	c.ensureLogger()
	dc := cfg.Docker
	runner, err := sandbox.New(sandbox.Config{
		ImageName:      dc.ImageName,
		DockerfilePath: dc.DockerfilePath,
		WorkingDir:     dc.WorkingDir,
		DataDir:        dc.DataDir,
		Port:           dc.Port,
		ForceRebuild:   dc.ForceRebuild,
		AgentCommand:   dc.AgentCommand,
		HostDir:        c.opts.WorkDir,
	}, sandbox.WithLogger(logging.NewComponentLogger("Sandbox")))
	if err != nil {
		if agenterrors.IsConfigError(err) {
			return nil, err
		}
		return nil, agenterrors.NewInitError("sandbox", err)
	}
	c.sandbox = runner
	return runner, nil
}

// Tools returns the registry of enabled, instrumented tools. An empty
// registry is not an error.
func (c *Container) Tools() (*tools.Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tools()
}

func (c *Container) tools() (*tools.Registry, error) {
	if c.registry != nil {
		return c.registry, nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	c.ensureLogger()
	metrics, err := c.metricsCollector()
	if err != nil {
		return nil, err
	}
	tracer, err := c.tracerProvider()
	if err != nil {
		return nil, err
	}

	mem, err := c.memoryClient()
	if err != nil {
		if !errors.Is(err, memory.ErrDisabled) {
			c.log.Warn("memory tools disabled: %v", err)
		}
		mem = nil
	}

	tc := cfg.Tools
	execs, err := builtin.New(builtin.Options{
		Shell: builtin.ShellConfig{
			Shell:          tc.Shell,
			PythonBinary:   tc.PythonBinary,
			DefaultTimeout: time.Duration(tc.CommandTimeoutSeconds) * time.Second,
		},
		Web: builtin.WebConfig{
			Client:           httpclient.New(time.Duration(tc.HTTPTimeoutSeconds)*time.Second, logging.NewComponentLogger("HTTP")),
			SearchEndpoint:   tc.WebSearchEndpoint,
			SearchMaxResults: tc.WebSearchMaxResults,
			CacheSize:        tc.WebFetchCacheSize,
			CacheTTL:         time.Duration(tc.WebFetchCacheTTL) * time.Second,
			PageMaxChars:     tc.WebPageMaxChars,
		},
		Prompter: c.opts.Prompter,
		Memory:   mem,
		UserID:   cfg.Agent.UserID,
		Enabled:  tc.Enabled,
	})
	if err != nil {
		return nil, err
	}

	obs := tools.Observers{
		Logger:          logging.NewComponentLogger("Tools"),
		Metrics:         metrics,
		Tracer:          tracer,
		MaxOutputTokens: tc.MaxOutputTokens,
	}
	registry, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, exec := range execs {
		if err := registry.Register(tools.Instrument(exec, obs)); err != nil {
			return nil, agenterrors.NewInitError("tools", err)
		}
	}

	if builtin.Enabled(tc.Enabled, tools.KindRunCodeAgent) {
		sub := agent.NewSubAgentTool(func() (agent.Runtime, error) {
			model, err := c.LLM()
			if err != nil {
				return nil, err
			}
			runtime, err := agent.NewRuntime(model, registry.Without(string(tools.KindRunCodeAgent)), c.runtimeOptions())
			if err != nil {
				return nil, err
			}
			return runtime, nil
		})
		if err := registry.Register(tools.Instrument(sub, obs)); err != nil {
			return nil, agenterrors.NewInitError("tools", err)
		}
	}

	c.log.Debug("registered %d tools", registry.Len())
	c.registry = registry
	return registry, nil
}

// Runtime returns the agent runtime over the LLM and the tool registry.
func (c *Container) Runtime() (agent.Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentRuntime()
}

func (c *Container) agentRuntime() (agent.Runtime, error) {
	if c.runtime != nil {
		return c.runtime, nil
	}
	model, err := c.llm()
	if err != nil {
		return nil, err
	}
	registry, err := c.tools()
	if err != nil {
		return nil, err
	}
	opts, err := c.lockedRuntimeOptions()
	if err != nil {
		return nil, err
	}
	runtime, err := agent.NewRuntime(model, registry.Executors(), opts)
	if err != nil {
		return nil, agenterrors.NewInitError("agent runtime", err)
	}
	c.runtime = runtime
	return runtime, nil
}

// Runner returns the memory-augmented turn runner. Memory is optional.
func (c *Container) Runner() (*agent.Runner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner != nil {
		return c.runner, nil
	}
	runtime, err := c.agentRuntime()
	if err != nil {
		return nil, err
	}
	cfg, _ := c.config()
	metrics, err := c.metricsCollector()
	if err != nil {
		return nil, err
	}
	tracer, err := c.tracerProvider()
	if err != nil {
		return nil, err
	}

	opts := []agent.RunnerOption{
		agent.WithRunnerLogger(logging.NewComponentLogger("Runner")),
		agent.WithMetrics(metrics),
		agent.WithTracer(tracer),
	}
	if mem, err := c.memoryClient(); err == nil {
		opts = append(opts, agent.WithMemory(mem, cfg.Agent.MemoryLimit))
	} else if !errors.Is(err, memory.ErrDisabled) {
		c.log.Warn("running without memory: %v", err)
	}
	c.runner = agent.NewRunner(runtime, opts...)
	return c.runner, nil
}

func (c *Container) runtimeOptions() agent.RuntimeOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts, err := c.lockedRuntimeOptions()
	if err != nil {
		c.log.Warn("using default runtime options: %v", err)
	}
	return opts
}

// lockedRuntimeOptions expects c.mu to be held.
func (c *Container) lockedRuntimeOptions() (agent.RuntimeOptions, error) {
	cfg, err := c.config()
	if err != nil {
		return agent.RuntimeOptions{}, err
	}
	opts := agent.RuntimeOptions{
		MaxSteps: cfg.Agent.MaxSteps,
		Logger:   logging.NewComponentLogger("Agent"),
	}
	if cfg.Agent.PlanningInterval > 0 {
		c.log.Debug("agent.planning_interval=%d is not supported by the runtime and is ignored", cfg.Agent.PlanningInterval)
	}
	if cfg.Agent.UsePromptsYAML {
		loader, err := c.promptLoader()
		if err != nil {
			return opts, err
		}
		opts.SystemPrompt = loader.Get("", "system_prompt")
	}
	return opts, nil
}

// ensureLogger installs the configured logger before services that log are
// built. Failures fall back to the stderr default.
func (c *Container) ensureLogger() {
	if _, err := c.structuredLogger(); err != nil {
		c.log.Warn("using default logger: %v", err)
	}
}

// Cleanup flushes telemetry and closes the log file.
func (c *Container) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if c.tracer != nil {
		errs = append(errs, c.tracer.Shutdown(ctx))
	}
	if c.metrics != nil {
		errs = append(errs, c.metrics.Shutdown(ctx))
	}
	if c.logCloser != nil {
		errs = append(errs, c.logCloser())
		c.logCloser = nil
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
