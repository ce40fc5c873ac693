package tools

import (
	"context"
	"fmt"
	"strings"
)

// Kind names one of the closed set of tools the agent can call.
type Kind string

const (
	KindReadFile            Kind = "read_file"
	KindWriteFile           Kind = "write_to_file"
	KindReplaceInFile       Kind = "replace_in_file"
	KindSearchFiles         Kind = "search_files"
	KindListFiles           Kind = "list_files"
	KindListCodeDefinitions Kind = "list_code_definition_names"
	KindExecuteCommand      Kind = "execute_command"
	KindPythonInterpreter   Kind = "python_interpreter"
	KindWebSearch           Kind = "web_search"
	KindVisitWebpage        Kind = "visit_webpage"
	KindUserInput           Kind = "user_input"
	KindMemorySearch        Kind = "memory_search"
	KindMemoryAdd           Kind = "memory_add"
	KindRunCodeAgent        Kind = "run_code_agent"
)

// AllKinds lists every tool kind in registration order.
func AllKinds() []Kind {
	return []Kind{
		KindReadFile, KindWriteFile, KindReplaceInFile, KindSearchFiles, KindListFiles,
		KindListCodeDefinitions, KindExecuteCommand, KindPythonInterpreter,
		KindWebSearch, KindVisitWebpage, KindUserInput,
		KindMemorySearch, KindMemoryAdd, KindRunCodeAgent,
	}
}

// OutputType tags what a tool returns.
type OutputType string

const (
	OutputString OutputType = "string"
	OutputList   OutputType = "list"
)

// Property describes one tool parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Nullable    bool   `json:"nullable,omitempty"`
}

// ParameterSchema is the JSON-schema-like description of a tool's inputs.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Definition is the static descriptor of a tool.
type Definition struct {
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
	Output      OutputType      `json:"output_type"`
}

// Call is one invocation request.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Executor is implemented by every tool.
type Executor interface {
	Definition() Definition
	Execute(ctx context.Context, call Call) *Result
}

// FailureKind classifies why a tool could not do its job.
type FailureKind string

const (
	FailureNotFound         FailureKind = "not_found"
	FailurePermissionDenied FailureKind = "permission_denied"
	FailureDecode           FailureKind = "decode"
	FailureInvalidArgument  FailureKind = "invalid_argument"
	FailureNonZeroExit      FailureKind = "non_zero_exit"
	FailureTimeout          FailureKind = "timeout"
	FailureUnsupported      FailureKind = "unsupported"
	FailureParseError       FailureKind = "parse_error"
	FailureNetwork          FailureKind = "network"
	FailureInternal         FailureKind = "internal"
)

// Failure is a typed tool failure. Message is what the model sees.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Result is the outcome of a tool call: either content (Content for string
// tools, Items for list tools) or a Failure.
type Result struct {
	CallID   string
	Content  string
	Items    []string
	Failure  *Failure
	Metadata map[string]any
}

// Success returns a string result.
func Success(content string) *Result {
	return &Result{Content: content}
}

// Items returns a list result.
func Items(items []string) *Result {
	if items == nil {
		items = []string{}
	}
	return &Result{Items: items}
}

// Fail returns a failed result with a formatted message.
func Fail(kind FailureKind, format string, args ...any) *Result {
	return &Result{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// OK reports whether the call succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Failure == nil
}

// Lines renders the result as a list: the items, or the failure message as a
// single element.
func (r *Result) Lines() []string {
	switch {
	case r == nil:
		return nil
	case r.Failure != nil:
		return []string{r.Failure.Message}
	case r.Items != nil:
		return r.Items
	case r.Content != "":
		return []string{r.Content}
	default:
		return []string{}
	}
}

// Text renders the result as the string handed back to the model.
func (r *Result) Text() string {
	switch {
	case r == nil:
		return ""
	case r.Failure != nil:
		return r.Failure.Message
	case r.Items != nil:
		return strings.Join(r.Items, "\n")
	default:
		return r.Content
	}
}

// WithMetadata attaches a metadata entry and returns r.
func (r *Result) WithMetadata(key string, value any) *Result {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}
