package builtin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"codeagent/internal/memory"
	"codeagent/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<div class="result">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">The Go
  Documentation</a></h2>
  <a class="result__snippet">Official   docs for Go.</a>
</div>
<div class="result">
  <h2><a class="result__a" href="https://pkg.go.dev/">Go Packages</a></h2>
</div>
<div class="result"><h2><a class="result__a" href="https://example.com/3">Third</a></h2></div>
</body></html>`

func TestWebSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query = r.PostForm.Get("q")
		_, _ = io.WriteString(w, searchPage)
	}))
	defer srv.Close()

	tool := NewWebSearch(WebConfig{Client: srv.Client(), SearchEndpoint: srv.URL})
	res := run(t, tool, map[string]any{"query": "golang docs", "max_results": 2})
	require.True(t, res.OK(), res.Text())
	assert.Equal(t, "golang docs", query)
	assert.Equal(t, "## Search Results\n\n"+
		"[The Go Documentation](https://go.dev/doc/)\nOfficial docs for Go.\n\n"+
		"[Go Packages](https://pkg.go.dev/)", res.Content)
	assert.Equal(t, 2, res.Metadata["results"])
}

func TestWebSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html><body>nothing</body></html>")
	}))
	defer srv.Close()

	res := run(t, NewWebSearch(WebConfig{SearchEndpoint: srv.URL}), map[string]any{"query": "zzz"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureNotFound, res.Failure.Kind)
}

func TestWebSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := run(t, NewWebSearch(WebConfig{SearchEndpoint: srv.URL}), map[string]any{"query": "q"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureNetwork, res.Failure.Kind)
	assert.Contains(t, res.Text(), "HTTP 503")
}

const articlePage = `<html><head><title>Example Page</title><style>body{}</style></head>
<body>
<nav>Home | About</nav>
<h1>Welcome</h1>
<p>Read the <a href="https://example.com/docs">docs</a> first.</p>
<ul><li>one</li><li>two</li></ul>
<script>alert(1)</script>
<div>Closing   words</div>
</body></html>`

func TestVisitWebpageRendersAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, articlePage)
	}))
	defer srv.Close()

	tool := NewVisitWebpage(WebConfig{Client: srv.Client()})
	res := run(t, tool, map[string]any{"url": srv.URL + "/page"})
	require.True(t, res.OK(), res.Text())
	assert.Equal(t, "# Example Page\n\n# Welcome\n\nRead the [docs](https://example.com/docs) first.\n\n- one\n- two\n\nClosing words", res.Content)
	assert.Equal(t, false, res.Metadata["cached"])

	again := run(t, tool, map[string]any{"url": srv.URL + "/page"})
	assert.Equal(t, res.Content, again.Content)
	assert.Equal(t, true, again.Metadata["cached"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestVisitWebpageTruncatesAndPassesPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("x", 50))
	}))
	defer srv.Close()

	res := run(t, NewVisitWebpage(WebConfig{PageMaxChars: 10}), map[string]any{"url": srv.URL})
	require.True(t, res.OK(), res.Text())
	assert.True(t, strings.HasPrefix(res.Content, strings.Repeat("x", 10)+"\n\n..._This content has been truncated"))
}

func TestVisitWebpageFailures(t *testing.T) {
	tool := NewVisitWebpage(WebConfig{})

	res := run(t, tool, map[string]any{"url": "ftp://example.com/file"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureInvalidArgument, res.Failure.Kind)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	res = run(t, tool, map[string]any{"url": srv.URL})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureNetwork, res.Failure.Kind)
	assert.True(t, strings.HasPrefix(res.Text(), "Error fetching the webpage: HTTP 404"), res.Text())
}

func TestUserInput(t *testing.T) {
	res := run(t, NewUserInput(nil), map[string]any{"question": "name?"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureUnsupported, res.Failure.Kind)

	var asked string
	prompter := PrompterFunc(func(_ context.Context, q string) (string, error) {
		asked = q
		return "  Ada \n", nil
	})
	res = run(t, NewUserInput(prompter), map[string]any{"question": "name?"})
	assert.Equal(t, "name?", asked)
	assert.Equal(t, "Ada", res.Content)

	eof := PrompterFunc(func(context.Context, string) (string, error) { return "", io.EOF })
	res = run(t, NewUserInput(eof), map[string]any{"question": "name?"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureUnsupported, res.Failure.Kind)
}

type fakeMemory struct {
	entries []memory.Entry
	err     error

	query   string
	userID  string
	limit   int
	added   []memory.Message
	addedTo string
}

func (f *fakeMemory) Search(_ context.Context, query, userID string, limit int) ([]memory.Entry, error) {
	f.query, f.userID, f.limit = query, userID, limit
	return f.entries, f.err
}

func (f *fakeMemory) Add(_ context.Context, messages []memory.Message, userID string) error {
	f.added, f.addedTo = messages, userID
	return f.err
}

func TestMemoryTools(t *testing.T) {
	mem := &fakeMemory{entries: []memory.Entry{{Memory: "likes go"}, {Memory: " "}, {Memory: "uses vim"}}}

	res := run(t, NewMemorySearch(mem, ""), map[string]any{"query": "editor"})
	assert.Equal(t, []string{"likes go", "uses vim"}, res.Items)
	assert.Equal(t, memory.DefaultUserID, mem.userID)
	assert.Equal(t, memory.DefaultLimit, mem.limit)

	run(t, NewMemorySearch(mem, "alice"), map[string]any{"query": "x", "user_id": "bob", "limit": "5"})
	assert.Equal(t, "bob", mem.userID)
	assert.Equal(t, 5, mem.limit)

	res = run(t, NewMemoryAdd(mem, "alice"), map[string]any{"content": "prefers tabs"})
	assert.Equal(t, "Memory stored for user 'alice'.", res.Content)
	assert.Equal(t, []memory.Message{{Role: "user", Content: "prefers tabs"}}, mem.added)

	mem.err = errors.New("down")
	res = run(t, NewMemorySearch(mem, ""), map[string]any{"query": "x"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, tools.FailureNetwork, res.Failure.Kind)
}

func TestNewFiltersEnabledTools(t *testing.T) {
	all, err := New(Options{})
	require.NoError(t, err)
	assert.Len(t, all, 11)

	withMemory, err := New(Options{Memory: &fakeMemory{}})
	require.NoError(t, err)
	assert.Len(t, withMemory, 13)

	some, err := New(Options{Enabled: []string{"read_file", "execute_command", "memory_add"}})
	require.NoError(t, err)
	var names []string
	for _, exec := range some {
		names = append(names, exec.Definition().Name)
	}
	assert.Equal(t, []string{"read_file", "execute_command"}, names)

	_, err = New(Options{Enabled: []string{"rm_rf"}})
	assert.Error(t, err)

	assert.True(t, Enabled(nil, tools.KindRunCodeAgent))
	assert.False(t, Enabled([]string{"read_file"}, tools.KindRunCodeAgent))
}
