package builtin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"codeagent/internal/tools"
)

const (
	defaultCommandTimeout = 30 * time.Second
	processWaitDelay      = 2 * time.Second
)

// ShellConfig configures the command and python tools.
type ShellConfig struct {
	Shell          string
	PythonBinary   string
	DefaultTimeout time.Duration
}

func (c ShellConfig) withDefaults() ShellConfig {
	if c.Shell == "" {
		c.Shell = "sh"
	}
	if c.PythonBinary == "" {
		c.PythonBinary = "python3"
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultCommandTimeout
	}
	return c
}

type processSpec struct {
	name    string
	args    []string
	dir     string
	stdin   io.Reader
	timeout time.Duration
}

// runProcess executes proc and maps the outcome onto the shared result
// shapes: trimmed stdout on success, exit code with stderr (or stdout) on
// failure, and a timeout failure when the deadline passes.
func runProcess(ctx context.Context, proc processSpec) *tools.Result {
	runCtx, cancel := context.WithTimeout(ctx, proc.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, proc.name, proc.args...)
	cmd.Dir = proc.dir
	cmd.Stdin = proc.stdin
	cmd.WaitDelay = processWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	errOutput := strings.TrimSpace(stderr.String())

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return tools.Fail(tools.FailureTimeout, "Error: Command timed out after %d seconds.", int(proc.timeout/time.Second))
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		detail := errOutput
		if detail == "" {
			detail = output
		}
		return tools.Fail(tools.FailureNonZeroExit, "Command failed with code %d:\n%s", exitErr.ExitCode(), detail).
			WithMetadata("exit_code", exitErr.ExitCode())
	case err != nil:
		return tools.Fail(tools.FailureInternal, "Error running command: %v", err)
	}

	if output == "" {
		output = "(No output)"
	}
	return tools.Success(output).
		WithMetadata("exit_code", 0).
		WithMetadata("duration_ms", time.Since(started).Milliseconds())
}

type executeCommand struct {
	cfg ShellConfig
}

// NewExecuteCommand returns the execute_command tool.
func NewExecuteCommand(cfg ShellConfig) tools.Executor {
	return &executeCommand{cfg: cfg.withDefaults()}
}

type executeCommandArgs struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd"`
	Timeout int    `json:"timeout"`
}

func (t *executeCommand) Execute(ctx context.Context, call tools.Call) *tools.Result {
	args := executeCommandArgs{Timeout: int(t.cfg.DefaultTimeout / time.Second)}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	if strings.TrimSpace(args.Command) == "" {
		return tools.Fail(tools.FailureInvalidArgument, "Error running command: command must not be empty")
	}
	timeout := time.Duration(args.Timeout) * time.Second
	if timeout <= 0 {
		timeout = t.cfg.DefaultTimeout
	}

	return runProcess(ctx, processSpec{
		name:    t.cfg.Shell,
		args:    []string{"-c", args.Command},
		dir:     args.Cwd,
		timeout: timeout,
	})
}

func (t *executeCommand) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindExecuteCommand,
		Name:        string(tools.KindExecuteCommand),
		Description: "Runs a shell command and returns its output.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"command": {Type: "string", Description: "Shell command to execute."},
				"cwd":     {Type: "string", Description: "Working directory.", Nullable: true},
				"timeout": {Type: "integer", Description: "Timeout in seconds.", Default: int(t.cfg.DefaultTimeout / time.Second), Nullable: true},
			},
			Required: []string{"command"},
		},
		Output: tools.OutputString,
	}
}

type pythonInterpreter struct {
	cfg ShellConfig
}

// NewPythonInterpreter returns the python_interpreter tool, which feeds code
// to the configured interpreter on stdin.
func NewPythonInterpreter(cfg ShellConfig) tools.Executor {
	return &pythonInterpreter{cfg: cfg.withDefaults()}
}

type pythonArgs struct {
	Code string `json:"code"`
}

func (t *pythonInterpreter) Execute(ctx context.Context, call tools.Call) *tools.Result {
	var args pythonArgs
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	return runProcess(ctx, processSpec{
		name:    t.cfg.PythonBinary,
		args:    []string{"-"},
		stdin:   strings.NewReader(args.Code),
		timeout: t.cfg.DefaultTimeout,
	})
}

func (t *pythonInterpreter) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindPythonInterpreter,
		Name:        string(tools.KindPythonInterpreter),
		Description: "Evaluates Python code in a fresh interpreter process and returns what it prints.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"code": {Type: "string", Description: "Python source to run; print the values you need."},
			},
			Required: []string{"code"},
		},
		Output: tools.OutputString,
	}
}
