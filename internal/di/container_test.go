package di

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"codeagent/internal/config"
	agenterrors "codeagent/internal/errors"
	"codeagent/internal/memory"
	"codeagent/internal/tools"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type finalAnswerModel struct {
	mu      sync.Mutex
	prompts []string
}

func (m *finalAnswerModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}
	m.prompts = append(m.prompts, prompt.String())
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Thought: I now know the final answer\nFinal Answer: done"}}}, nil
}

func (m *finalAnswerModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestContainer(t *testing.T, body string, mutate func(*Options)) *Container {
	t.Helper()
	opts := Options{
		ConfigPath: writeConfig(t, body),
		Env:        config.MapEnvLookup(map[string]string{"TEST_KEY": "sk-test"}),
		WorkDir:    t.TempDir(),
		LogOutput:  io.Discard,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c := New(opts)
	t.Cleanup(func() { _ = c.Cleanup() })
	return c
}

const baseConfig = `
llm:
  provider: litellm
  api_key: ${TEST_KEY}
  api_base: http://localhost:4000
  model: gpt-4o
observability:
  metrics:
    enabled: false
`

func TestConfigIsLoadedOnce(t *testing.T) {
	c := newTestContainer(t, baseConfig, nil)

	first, err := c.Config()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", first.LLM.APIKey)

	second, err := c.Config()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestFlagsOverrideConfig(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "", "")
	require.NoError(t, flags.Parse([]string{"--model", "claude"}))

	c := newTestContainer(t, baseConfig, func(o *Options) {
		o.Flags = map[string]*pflag.Flag{"llm.model": flags.Lookup("model")}
	})
	cfg, err := c.Config()
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.LLM.Model)
}

func TestLLMReportsMissingCredentials(t *testing.T) {
	c := newTestContainer(t, "llm:\n  provider: litellm\n", nil)

	_, err := c.LLM()
	require.Error(t, err)
	assert.True(t, agenterrors.IsConfigError(err))
	assert.Contains(t, err.Error(), "api_key")
}

func TestToolsRegistersBuiltinsAndSubAgent(t *testing.T) {
	c := newTestContainer(t, baseConfig, func(o *Options) { o.Model = &finalAnswerModel{} })

	registry, err := c.Tools()
	require.NoError(t, err)

	var names []string
	for _, def := range registry.List() {
		names = append(names, def.Name)
	}
	assert.Contains(t, names, string(tools.KindReadFile))
	assert.Contains(t, names, string(tools.KindVisitWebpage))
	assert.Contains(t, names, string(tools.KindRunCodeAgent))
	assert.NotContains(t, names, string(tools.KindMemorySearch))
	assert.Equal(t, 12, registry.Len())

	again, err := c.Tools()
	require.NoError(t, err)
	assert.Same(t, registry, again)
}

func TestToolsHonoursEnabledList(t *testing.T) {
	body := baseConfig + `
tools:
  enabled: [read_file, list_files]
`
	c := newTestContainer(t, body, nil)

	registry, err := c.Tools()
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())
	_, err = registry.Get(string(tools.KindRunCodeAgent))
	assert.Error(t, err)
}

func TestToolsRejectsUnknownName(t *testing.T) {
	body := baseConfig + `
tools:
  enabled: [teleport]
`
	c := newTestContainer(t, body, nil)

	_, err := c.Tools()
	require.Error(t, err)
	assert.True(t, agenterrors.IsConfigError(err))
}

func TestMemoryDisabledByDefault(t *testing.T) {
	c := newTestContainer(t, baseConfig, nil)

	_, err := c.Memory()
	assert.True(t, errors.Is(err, memory.ErrDisabled))
}

func TestMemoryProviderMisconfigured(t *testing.T) {
	body := baseConfig + `
memory:
  provider: mem0
  api_key: ""
`
	c := newTestContainer(t, body, func(o *Options) { o.Model = &finalAnswerModel{} })

	_, err := c.Memory()
	require.Error(t, err)
	assert.True(t, agenterrors.IsConfigError(err))

	// A broken memory backend leaves the rest of the stack usable.
	runner, err := c.Runner()
	require.NoError(t, err)
	require.NotNil(t, runner)
}

func TestRunnerUsesPromptsFile(t *testing.T) {
	promptsPath := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(promptsPath, []byte("system_prompt: |\n  You are the repository assistant.\n"), 0o644))

	model := &finalAnswerModel{}
	body := baseConfig + `
agent:
  use_prompts_yaml: true
`
	c := newTestContainer(t, body, func(o *Options) {
		o.Model = model
		o.PromptsPath = promptsPath
	})

	runner, err := c.Runner()
	require.NoError(t, err)

	reply, err := runner.Turn(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", reply.Answer)

	require.NotEmpty(t, model.prompts)
	assert.Contains(t, model.prompts[0], "You are the repository assistant.")
	assert.Contains(t, model.prompts[0], "read_file")
}

func TestRuntimeFailsWithoutPromptsFile(t *testing.T) {
	body := baseConfig + `
agent:
  use_prompts_yaml: true
`
	c := newTestContainer(t, body, func(o *Options) {
		o.Model = &finalAnswerModel{}
		o.PromptsPath = filepath.Join(t.TempDir(), "missing.yaml")
	})

	_, err := c.Runtime()
	require.Error(t, err)
	assert.True(t, agenterrors.IsInitError(err))
}

func TestSandboxUsesWorkDir(t *testing.T) {
	workDir := t.TempDir()
	c := newTestContainer(t, baseConfig+"\ndocker:\n  image_name: agent-img\n", func(o *Options) { o.WorkDir = workDir })

	runner, err := c.Sandbox()
	require.NoError(t, err)
	assert.Equal(t, workDir, runner.Config().HostDir)
	assert.DirExists(t, filepath.Join(workDir, "data"))
}

func TestCleanupWithoutServices(t *testing.T) {
	c := New(Options{ConfigPath: writeConfig(t, baseConfig)})
	assert.NoError(t, c.Cleanup())
}
