package agent

import (
	"context"
	"strings"

	"codeagent/internal/tools"
)

// RuntimeFactory builds a fresh runtime for a nested task.
type RuntimeFactory func() (Runtime, error)

type subAgentTool struct {
	factory RuntimeFactory
}

// NewSubAgentTool returns the run_code_agent tool. Each call runs the task
// on a runtime from factory, which should exclude this tool.
func NewSubAgentTool(factory RuntimeFactory) tools.Executor {
	return &subAgentTool{factory: factory}
}

type subAgentArgs struct {
	Task string `json:"task"`
}

func (t *subAgentTool) Execute(ctx context.Context, call tools.Call) *tools.Result {
	var args subAgentArgs
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	if strings.TrimSpace(args.Task) == "" {
		return tools.Fail(tools.FailureInvalidArgument, "Error: task must not be empty.")
	}
	runtime, err := t.factory()
	if err != nil {
		return tools.Fail(tools.FailureInternal, "Error creating sub-agent: %v", err)
	}
	answer, err := runtime.Run(ctx, args.Task)
	if err != nil {
		return tools.Fail(tools.FailureInternal, "Error running sub-agent: %v", err)
	}
	return tools.Success(answer)
}

func (t *subAgentTool) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindRunCodeAgent,
		Name:        string(tools.KindRunCodeAgent),
		Description: "Runs a separate agent with the same tools on a self-contained task and returns its final answer.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"task": {Type: "string", Description: "Task for the agent to solve."},
			},
			Required: []string{"task"},
		},
		Output: tools.OutputString,
	}
}
