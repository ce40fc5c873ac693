package tools

import (
	"context"
	"strings"
	"testing"

	"codeagent/internal/observability"
)

type stubTool struct {
	def    Definition
	result *Result
	calls  []Call
}

func (s *stubTool) Definition() Definition { return s.def }

func (s *stubTool) Execute(_ context.Context, call Call) *Result {
	s.calls = append(s.calls, call)
	return s.result
}

func newStub(name string, result *Result) *stubTool {
	return &stubTool{
		def: Definition{
			Name:        name,
			Description: "stub " + name,
			Parameters: ParameterSchema{
				Type:       "object",
				Properties: map[string]Property{"path": {Type: "string", Description: "target"}},
				Required:   []string{"path"},
			},
			Output: OutputString,
		},
		result: result,
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	a, b := newStub("a", Success("A")), newStub("b", Success("B"))
	reg, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d", reg.Len())
	}
	defs := reg.List()
	if defs[0].Name != "a" || defs[1].Name != "b" {
		t.Fatalf("unexpected order: %+v", defs)
	}
	if _, err := reg.Get("missing"); err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if err := reg.Register(newStub("a", nil)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	c := newStub("c", Success("C"))
	if err := reg.Register(c); err != nil {
		t.Fatalf("late Register: %v", err)
	}
	if got := reg.Without("c"); len(got) != 2 {
		t.Fatalf("Without(c) returned %d executors", len(got))
	}
}

func TestRegistryInvoke(t *testing.T) {
	stub := newStub("echo", Success("done"))
	nilTool := newStub("broken", nil)
	reg, _ := NewRegistry(stub, nilTool)

	res := reg.Invoke(context.Background(), Call{ID: "c1", Name: "echo", Arguments: map[string]any{"path": "x"}})
	if !res.OK() || res.Text() != "done" || res.CallID != "c1" {
		t.Fatalf("unexpected result %+v", res)
	}

	res = reg.Invoke(context.Background(), Call{Name: "nope"})
	if res.OK() || res.Failure.Kind != FailureNotFound {
		t.Fatalf("expected not_found failure, got %+v", res)
	}

	res = reg.Invoke(context.Background(), Call{Name: "broken"})
	if res.OK() || res.Failure.Kind != FailureInternal {
		t.Fatalf("expected internal failure, got %+v", res)
	}
}

func TestResultRendering(t *testing.T) {
	if got := Items([]string{"a", "b"}).Text(); got != "a\nb" {
		t.Fatalf("list Text = %q", got)
	}
	failed := Fail(FailureNotFound, "Error: '%s' does not exist.", "x")
	if got := failed.Lines(); len(got) != 1 || got[0] != "Error: 'x' does not exist." {
		t.Fatalf("failure Lines = %v", got)
	}
	if got := Items(nil).Lines(); got == nil || len(got) != 0 {
		t.Fatalf("empty list should render as empty slice, got %#v", got)
	}
	if Success("x").WithMetadata("k", 1).Metadata["k"] != 1 {
		t.Fatal("metadata not attached")
	}
}

func TestDecodeArgs(t *testing.T) {
	def := Definition{
		Name: "replace",
		Parameters: ParameterSchema{
			Properties: map[string]Property{
				"file_path": {Type: "string"},
				"count":     {Type: "integer"},
				"use_regex": {Type: "boolean"},
			},
			Required: []string{"file_path"},
		},
	}
	type args struct {
		FilePath string `json:"file_path"`
		Count    int    `json:"count"`
		UseRegex bool   `json:"use_regex"`
	}

	got := args{Count: 1}
	if res := DecodeArgs(def, Call{Arguments: map[string]any{"file_path": "a.txt", "count": "3", "use_regex": "true"}}, &got); res != nil {
		t.Fatalf("DecodeArgs failed: %+v", res.Failure)
	}
	if got.FilePath != "a.txt" || got.Count != 3 || !got.UseRegex {
		t.Fatalf("decoded %+v", got)
	}

	defaults := args{Count: 1}
	if res := DecodeArgs(def, Call{Arguments: map[string]any{"file_path": "a", "count": nil}}, &defaults); res != nil || defaults.Count != 1 {
		t.Fatalf("nil argument should keep default, got %+v / %+v", defaults, res)
	}

	res := DecodeArgs(def, Call{Arguments: map[string]any{}}, &args{})
	if res == nil || res.Failure.Kind != FailureInvalidArgument || !strings.Contains(res.Failure.Message, "file_path") {
		t.Fatalf("expected missing-argument failure, got %+v", res)
	}

	res = DecodeArgs(def, Call{Arguments: map[string]any{"file_path": "a", "count": "many"}}, &args{})
	if res == nil || res.Failure.Kind != FailureInvalidArgument {
		t.Fatalf("expected decode failure, got %+v", res)
	}
}

func TestSingleStringParameterAndDescribe(t *testing.T) {
	def := newStub("read", nil).Definition()
	name, ok := SingleStringParameter(def)
	if !ok || name != "path" {
		t.Fatalf("SingleStringParameter = %q, %v", name, ok)
	}
	desc := Describe(def)
	if !strings.Contains(desc, "path (string, required): target") {
		t.Fatalf("Describe = %q", desc)
	}
}

func TestInstrumentTruncatesAndRecords(t *testing.T) {
	long := strings.Repeat("word ", 50)
	stub := newStub("big", Success(long))
	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	wrapped := Instrument(stub, Observers{Metrics: metrics, MaxOutputTokens: 1000})
	if wrapped.Definition().Name != "big" {
		t.Fatalf("definition not forwarded")
	}
	res := wrapped.Execute(context.Background(), Call{Name: "big"})
	if res.Content != long {
		t.Fatalf("output under the budget must be untouched")
	}

	failing := Instrument(newStub("bad", nil), Observers{})
	if res := failing.Execute(context.Background(), Call{}); res.OK() {
		t.Fatal("nil result should become a failure")
	}
}

func TestTruncateItemsKeepsShortLists(t *testing.T) {
	items := []string{"a", "b"}
	if got := truncateItems(items, 100); len(got) != 2 {
		t.Fatalf("truncateItems = %v", got)
	}
}
