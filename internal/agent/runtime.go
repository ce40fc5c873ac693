// Package agent wires the builtin tools into the langchaingo agent runtime
// and wraps each conversation turn with memory recall and recording.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeagent/internal/logging"
	"codeagent/internal/tools"

	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
)

const (
	DefaultMaxSteps = 50

	toolsPreamble = "You have access to the following tools:\n\n{{.tool_descriptions}}"
)

// Runtime runs one task to completion and returns the final answer.
type Runtime interface {
	Run(ctx context.Context, task string) (string, error)
}

// RuntimeOptions configures NewRuntime.
type RuntimeOptions struct {
	MaxSteps int
	// SystemPrompt replaces the runtime's default preamble. The tool
	// descriptions are always appended.
	SystemPrompt string
	Logger       logging.Logger
}

// LangchainRuntime is a zero-shot ReAct agent driven by langchaingo.
type LangchainRuntime struct {
	executor *agents.Executor
	tools    []tools.Executor
	logger   logging.Logger
}

var _ Runtime = (*LangchainRuntime)(nil)

// NewRuntime builds a one-shot agent over model and executors.
func NewRuntime(model llms.Model, executors []tools.Executor, opts RuntimeOptions) (*LangchainRuntime, error) {
	if model == nil {
		return nil, errors.New("agent runtime requires a model")
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	logger := logging.OrNop(opts.Logger)

	agentOpts := []agents.Option{agents.WithMaxIterations(maxSteps)}
	if prefix := promptPrefix(opts.SystemPrompt); prefix != "" {
		agentOpts = append(agentOpts, agents.WithPromptPrefix(prefix))
	}

	oneShot := agents.NewOneShotAgent(model, adaptTools(executors, logger), agentOpts...)
	return &LangchainRuntime{
		executor: agents.NewExecutor(oneShot, agents.WithMaxIterations(maxSteps)),
		tools:    executors,
		logger:   logger,
	}, nil
}

// Tools returns the executors the runtime can call.
func (r *LangchainRuntime) Tools() []tools.Executor {
	return r.tools
}

// Run executes task and returns the final answer.
func (r *LangchainRuntime) Run(ctx context.Context, task string) (string, error) {
	answer, err := chains.Run(ctx, r.executor, task)
	if err != nil {
		if errors.Is(err, agents.ErrNotFinished) {
			return "", fmt.Errorf("agent stopped without a final answer: %w", err)
		}
		return "", fmt.Errorf("agent run failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// promptPrefix escapes template actions in a configured system prompt, so
// prompt files written for other template engines render literally, and
// appends the tool list.
func promptPrefix(systemPrompt string) string {
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return ""
	}
	escaped := strings.ReplaceAll(systemPrompt, "{{", `{{"{{"}}`)
	return escaped + "\n\n" + toolsPreamble
}
