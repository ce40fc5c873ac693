package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerRespectsLevelAndFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: buf})

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"key":"value"`) {
		t.Fatalf("expected json record, got %q", out)
	}
}

func TestLoggerWithContextAddsSession(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "debug", Output: buf})
	ctx := ContextWithSessionID(context.Background(), "sess-1")

	logger.WithContext(ctx).Debug("turn")

	if !strings.Contains(buf.String(), "session_id=sess-1") {
		t.Fatalf("expected session id in %q", buf.String())
	}
}

func TestOpenLogFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	w, closeFn, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	NewLogger(LogConfig{Output: w}).Info("written")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written") {
		t.Fatalf("expected record in file, got %q", data)
	}
}

func TestSanitizeAPIKey(t *testing.T) {
	if got := SanitizeAPIKey("short"); got != "***" {
		t.Fatalf("short key: %q", got)
	}
	if got := SanitizeAPIKey("sk-1234567890abcdef"); got != "sk-12345...cdef" {
		t.Fatalf("long key: %q", got)
	}
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m, err := NewMetricsCollector(MetricsConfig{})
	if err != nil {
		t.Fatalf("NewMetricsCollector: %v", err)
	}
	m.RecordToolExecution(context.Background(), "read_file", "success", time.Millisecond)
	m.RecordAgentTurn(context.Background(), "success", time.Second)
	if m.Enabled() {
		t.Fatal("expected disabled collector")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from disabled handler, got %d", rec.Code)
	}
}

func TestMetricsExposedThroughHandler(t *testing.T) {
	m, err := NewMetricsCollector(MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewMetricsCollector: %v", err)
	}
	defer m.Shutdown(context.Background())

	m.RecordToolExecution(context.Background(), "read_file", "success", 5*time.Millisecond)
	m.RecordAgentTurn(context.Background(), "success", time.Second)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"codeagent_tool_executions", "codeagent_agent_turns", `tool_name="read_file"`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}
}

func TestNoopTracerSpans(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{})
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	ctx, span := tp.StartSpan(context.Background(), SpanToolExecute)
	if ctx == nil {
		t.Fatal("expected context")
	}
	EndSpan(span, errors.New("boom"))
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestUnsupportedExporterRejected(t *testing.T) {
	if _, err := NewTracerProvider(TracingConfig{Enabled: true, Exporter: "jaeger"}); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
