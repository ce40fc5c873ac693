// Package builtin implements the tools handed to the agent runtime: file
// manipulation, shell and python execution, code outline, web access, user
// interaction and memory.
package builtin

import (
	"strings"

	agenterrors "codeagent/internal/errors"
	"codeagent/internal/memory"
	"codeagent/internal/tools"
)

// Options carries what the builtin tools need from the surrounding process.
type Options struct {
	Shell    ShellConfig
	Web      WebConfig
	Prompter Prompter
	// Memory may be nil, in which case the memory tools are left out.
	Memory memory.Client
	UserID string
	// Enabled lists tool names to register; empty means all.
	Enabled []string
}

// New returns the enabled builtin executors in registration order. The
// sub-agent tool is not built here since it needs the finished registry.
func New(opts Options) ([]tools.Executor, error) {
	enabled, err := enabledSet(opts.Enabled)
	if err != nil {
		return nil, err
	}

	candidates := []tools.Executor{
		NewFileRead(),
		NewFileWrite(),
		NewFileReplace(),
		NewFileSearch(),
		NewFileList(),
		NewCodeDefinitions(),
		NewExecuteCommand(opts.Shell),
		NewPythonInterpreter(opts.Shell),
		NewWebSearch(opts.Web),
		NewVisitWebpage(opts.Web),
		NewUserInput(opts.Prompter),
	}
	if opts.Memory != nil {
		candidates = append(candidates,
			NewMemorySearch(opts.Memory, opts.UserID),
			NewMemoryAdd(opts.Memory, opts.UserID),
		)
	}

	out := make([]tools.Executor, 0, len(candidates))
	for _, exec := range candidates {
		if enabled == nil || enabled[exec.Definition().Kind] {
			out = append(out, exec)
		}
	}
	return out, nil
}

// Enabled reports whether kind is switched on by the tools.enabled list.
func Enabled(names []string, kind tools.Kind) bool {
	set, err := enabledSet(names)
	return err == nil && (set == nil || set[kind])
}

func enabledSet(names []string) (map[tools.Kind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[tools.Kind]bool)
	for _, kind := range tools.AllKinds() {
		known[kind] = true
	}
	set := make(map[tools.Kind]bool, len(names))
	for _, name := range names {
		kind := tools.Kind(strings.TrimSpace(name))
		if !known[kind] {
			return nil, agenterrors.Invalidf("tools", "enabled", "Unknown tool '%s' in tools.enabled.", name)
		}
		set[kind] = true
	}
	return set, nil
}
