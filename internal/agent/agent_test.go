package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"codeagent/internal/memory"
	"codeagent/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type echoTool struct {
	calls []tools.Call
}

func (e *echoTool) Definition() tools.Definition {
	return tools.Definition{
		Kind:        "echo_tool",
		Name:        "echo_tool",
		Description: "Echoes text back.",
		Parameters: tools.ParameterSchema{
			Type:       "object",
			Properties: map[string]tools.Property{"text": {Type: "string", Description: "Text to echo."}},
			Required:   []string{"text"},
		},
		Output: tools.OutputString,
	}
}

func (e *echoTool) Execute(_ context.Context, call tools.Call) *tools.Result {
	e.calls = append(e.calls, call)
	var args struct {
		Text string `json:"text"`
	}
	if res := tools.DecodeArgs(e.Definition(), call, &args); res != nil {
		return res
	}
	return tools.Success("echo: " + args.Text)
}

type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
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
	if len(m.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: next}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestParseActionInput(t *testing.T) {
	single := (&echoTool{}).Definition()
	multi := tools.Definition{
		Name: "multi",
		Parameters: tools.ParameterSchema{
			Properties: map[string]tools.Property{"a": {Type: "string"}, "b": {Type: "integer"}},
			Required:   []string{"a", "b"},
		},
	}
	none := tools.Definition{Name: "none"}

	cases := []struct {
		name  string
		def   tools.Definition
		input string
		want  map[string]any
		err   bool
	}{
		{name: "json object", def: multi, input: `{"a": "x", "b": 2}`, want: map[string]any{"a": "x", "b": float64(2)}},
		{name: "fenced json", def: multi, input: "```json\n{\"a\": \"x\", \"b\": 2}\n```", want: map[string]any{"a": "x", "b": float64(2)}},
		{name: "repaired json", def: multi, input: `{'a': 'x', "b": 2,}`, want: map[string]any{"a": "x", "b": float64(2)}},
		{name: "bare string", def: single, input: `"hello world"`, want: map[string]any{"text": "hello world"}},
		{name: "bare unquoted string", def: single, input: "  hello  ", want: map[string]any{"text": "hello"}},
		{name: "no parameters", def: none, input: "None", want: map[string]any{}},
		{name: "free text for multi", def: multi, input: "do the thing", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseActionInput(tc.def, tc.input)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToolAdapterEmitsEvents(t *testing.T) {
	var events []Event
	ctx := WithListener(context.Background(), func(ev Event) { events = append(events, ev) })

	adapter := adaptTools([]tools.Executor{&echoTool{}}, nil)[0]
	out, err := adapter.Call(ctx, `{"text":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)

	require.Len(t, events, 2)
	assert.Equal(t, EventToolStart, events[0].Type)
	assert.Equal(t, "echo_tool", events[0].Tool)
	assert.Equal(t, EventToolEnd, events[1].Type)
	assert.Equal(t, "echo: hi", events[1].Output)
	assert.Empty(t, events[1].Failure)

	out, err = adapter.Call(ctx, `{"other": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "missing required argument")
	assert.Equal(t, string(tools.FailureInvalidArgument), events[3].Failure)
}

func TestRuntimeRunsToolsThroughLangchain(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"Thought: I should echo.\nAction: echo_tool\nAction Input: {\"text\": \"ping\"}",
		"Thought: I now know the final answer\nFinal Answer: pong",
	}}
	echo := &echoTool{}

	runtime, err := NewRuntime(model, []tools.Executor{echo}, RuntimeOptions{
		MaxSteps:     5,
		SystemPrompt: "You are a coding agent. Keep {{name}} literal.",
	})
	require.NoError(t, err)

	answer, err := runtime.Run(context.Background(), "say pong")
	require.NoError(t, err)
	assert.Equal(t, "pong", answer)

	require.Len(t, echo.calls, 1)
	assert.Equal(t, "ping", echo.calls[0].Arguments["text"])

	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0], "You are a coding agent. Keep {{name}} literal.")
	assert.Contains(t, model.prompts[0], "echo_tool")
	assert.Contains(t, model.prompts[0], "say pong")
	assert.Contains(t, model.prompts[1], "echo: ping")
}

func TestRuntimeStopsAtMaxSteps(t *testing.T) {
	step := "Thought: again\nAction: echo_tool\nAction Input: {\"text\": \"x\"}"
	model := &scriptedModel{responses: []string{step, step, step}}
	runtime, err := NewRuntime(model, []tools.Executor{&echoTool{}}, RuntimeOptions{MaxSteps: 2})
	require.NoError(t, err)

	_, err = runtime.Run(context.Background(), "loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a final answer")
}

func TestNewRuntimeRequiresModel(t *testing.T) {
	_, err := NewRuntime(nil, nil, RuntimeOptions{})
	assert.Error(t, err)
}

type fakeRuntime struct {
	tasks  []string
	answer string
	err    error
}

func (f *fakeRuntime) Run(_ context.Context, task string) (string, error) {
	f.tasks = append(f.tasks, task)
	return f.answer, f.err
}

type recordingMemory struct {
	entries   []memory.Entry
	searchErr error
	addErr    error
	added     [][]memory.Message
	users     []string
}

func (m *recordingMemory) Search(_ context.Context, _, userID string, _ int) ([]memory.Entry, error) {
	m.users = append(m.users, userID)
	return m.entries, m.searchErr
}

func (m *recordingMemory) Add(_ context.Context, messages []memory.Message, userID string) error {
	m.added = append(m.added, messages)
	m.users = append(m.users, userID)
	return m.addErr
}

func TestRunnerPrefixesMemoriesAndRecordsTurn(t *testing.T) {
	rt := &fakeRuntime{answer: "Use gofmt."}
	mem := &recordingMemory{entries: []memory.Entry{{Memory: "Prefers Go"}, {Memory: "Works on codeagent"}}}
	runner := NewRunner(rt, WithMemory(mem, 2))

	var events []Event
	ctx := WithListener(context.Background(), func(ev Event) { events = append(events, ev) })

	reply, err := runner.Turn(ctx, "", "How do I format code?")
	require.NoError(t, err)
	assert.Equal(t, "Use gofmt.", reply.Answer)
	assert.Equal(t, []string{"Prefers Go", "Works on codeagent"}, reply.Memories)

	require.Len(t, rt.tasks, 1)
	assert.Equal(t, "You are a helpful AI. Use the following user memories to inform your answer.\n"+
		"User Memories:\n- Prefers Go\n- Works on codeagent\n\nHow do I format code?", rt.tasks[0])

	require.Len(t, mem.added, 1)
	assert.Equal(t, []memory.Message{
		{Role: "user", Content: "How do I format code?"},
		{Role: "assistant", Content: "Use gofmt."},
	}, mem.added[0])
	assert.Equal(t, []string{memory.DefaultUserID, memory.DefaultUserID}, mem.users)

	require.Len(t, events, 1)
	assert.Equal(t, EventAnswer, events[0].Type)
}

func TestRunnerToleratesMemoryFailures(t *testing.T) {
	rt := &fakeRuntime{answer: "ok"}
	mem := &recordingMemory{searchErr: errors.New("search down"), addErr: errors.New("add down")}
	runner := NewRunner(rt, WithMemory(mem, 3))

	reply, err := runner.Turn(context.Background(), "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Answer)
	assert.Equal(t, "hi", rt.tasks[0])
}

func TestRunnerWithoutMemoryAndRuntimeError(t *testing.T) {
	rt := &fakeRuntime{err: errors.New("model unavailable")}
	runner := NewRunner(rt)

	var events []Event
	ctx := WithListener(context.Background(), func(ev Event) { events = append(events, ev) })
	_, err := runner.Turn(ctx, "bob", "hi")
	require.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, "model unavailable", events[0].Failure)
}

func TestSubAgentTool(t *testing.T) {
	rt := &fakeRuntime{answer: "done"}
	tool := NewSubAgentTool(func() (Runtime, error) { return rt, nil })

	res := tool.Execute(context.Background(), tools.Call{Arguments: map[string]any{"task": "refactor"}})
	require.True(t, res.OK(), res.Text())
	assert.Equal(t, "done", res.Content)
	assert.Equal(t, []string{"refactor"}, rt.tasks)

	failing := NewSubAgentTool(func() (Runtime, error) { return nil, errors.New("no model") })
	res = failing.Execute(context.Background(), tools.Call{Arguments: map[string]any{"task": "x"}})
	require.NotNil(t, res.Failure)
	assert.Contains(t, res.Text(), "no model")
}
