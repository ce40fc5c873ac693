package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"codeagent/internal/logging"
	"codeagent/internal/tools"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
	lctools "github.com/tmc/langchaingo/tools"
)

// toolAdapter exposes a tools.Executor to the langchaingo runtime, which
// passes a single free-form "Action Input" string.
type toolAdapter struct {
	exec   tools.Executor
	def    tools.Definition
	logger logging.Logger
}

var _ lctools.Tool = (*toolAdapter)(nil)

func adaptTools(executors []tools.Executor, logger logging.Logger) []lctools.Tool {
	out := make([]lctools.Tool, 0, len(executors))
	for _, exec := range executors {
		out = append(out, &toolAdapter{exec: exec, def: exec.Definition(), logger: logger})
	}
	return out
}

func (a *toolAdapter) Name() string {
	return a.def.Name
}

func (a *toolAdapter) Description() string {
	return tools.Describe(a.def)
}

// Call never returns an error: failures go back to the model as text so it
// can recover on the next step.
func (a *toolAdapter) Call(ctx context.Context, input string) (string, error) {
	Emit(ctx, Event{Type: EventToolStart, Tool: a.def.Name, Input: input})

	args, err := parseActionInput(a.def, input)
	if err != nil {
		msg := fmt.Sprintf("Error: could not parse input for %s: %v. %s", a.def.Name, err, tools.Describe(a.def))
		a.logger.Warn("tool %s: bad action input %q: %v", a.def.Name, input, err)
		Emit(ctx, Event{Type: EventToolEnd, Tool: a.def.Name, Output: msg, Failure: string(tools.FailureInvalidArgument)})
		return msg, nil
	}

	res := a.exec.Execute(ctx, tools.Call{ID: uuid.NewString(), Name: a.def.Name, Arguments: args})
	text := res.Text()
	ev := Event{Type: EventToolEnd, Tool: a.def.Name, Output: text}
	if res != nil && res.Failure != nil {
		ev.Failure = string(res.Failure.Kind)
	}
	Emit(ctx, ev)
	return text, nil
}

// parseActionInput turns the runtime's action input into tool arguments. A
// JSON object (possibly malformed or fenced) is decoded as-is; anything else
// is bound to the tool's only required string parameter.
func parseActionInput(def tools.Definition, input string) (map[string]any, error) {
	text := stripFence(strings.TrimSpace(input))

	if strings.HasPrefix(text, "{") {
		if args, err := decodeObject(text); err == nil {
			return args, nil
		}
	}

	if name, ok := tools.SingleStringParameter(def); ok {
		return map[string]any{name: unquote(text)}, nil
	}
	if len(def.Parameters.Required) == 0 && (text == "" || strings.EqualFold(text, "none")) {
		return map[string]any{}, nil
	}
	return nil, fmt.Errorf("expected a JSON object")
}

func decodeObject(text string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(text), &args); err == nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "{}\"") {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func unquote(text string) string {
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return text[1 : len(text)-1]
		}
	}
	return text
}
