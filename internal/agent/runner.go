package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"codeagent/internal/logging"
	"codeagent/internal/memory"
	"codeagent/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const memoryPreamble = "You are a helpful AI. Use the following user memories to inform your answer.\nUser Memories:\n"

// Reply is the outcome of one turn.
type Reply struct {
	Answer   string        `json:"answer"`
	Memories []string      `json:"memories,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Runner executes conversation turns: it recalls the user's memories,
// prefixes them to the message, runs the runtime and records the exchange.
type Runner struct {
	runtime     Runtime
	memory      memory.Client
	memoryLimit int
	logger      logging.Logger
	metrics     *observability.MetricsCollector
	tracer      *observability.TracerProvider
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithMemory enables recall and recording. A nil client disables both.
func WithMemory(client memory.Client, limit int) RunnerOption {
	return func(r *Runner) {
		r.memory = client
		r.memoryLimit = limit
	}
}

func WithRunnerLogger(logger logging.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.OrNop(logger) }
}

func WithMetrics(metrics *observability.MetricsCollector) RunnerOption {
	return func(r *Runner) { r.metrics = metrics }
}

func WithTracer(tracer *observability.TracerProvider) RunnerOption {
	return func(r *Runner) { r.tracer = tracer }
}

// NewRunner wraps runtime.
func NewRunner(runtime Runtime, opts ...RunnerOption) *Runner {
	r := &Runner{
		runtime:     runtime,
		memoryLimit: memory.DefaultLimit,
		logger:      logging.NewComponentLogger("Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memoryLimit <= 0 {
		r.memoryLimit = memory.DefaultLimit
	}
	return r
}

// Turn answers message on behalf of userID. Memory failures are logged and
// do not fail the turn.
func (r *Runner) Turn(ctx context.Context, userID, message string) (*Reply, error) {
	if strings.TrimSpace(userID) == "" {
		userID = memory.DefaultUserID
	}
	started := time.Now()
	ctx, span := r.tracer.StartSpan(ctx, observability.SpanAgentTurn, attribute.String("user_id", userID))

	memories := r.recall(ctx, userID, message)
	answer, err := r.runtime.Run(ctx, withMemories(message, memories))
	duration := time.Since(started)

	if err != nil {
		r.metrics.RecordAgentTurn(ctx, "error", duration)
		observability.EndSpan(span, err)
		Emit(ctx, Event{Type: EventError, Failure: err.Error()})
		r.logger.Error("turn failed after %s: %v", duration, err)
		return nil, err
	}

	r.metrics.RecordAgentTurn(ctx, "success", duration)
	observability.EndSpan(span, nil)
	Emit(ctx, Event{Type: EventAnswer, Output: answer})
	r.record(ctx, userID, message, answer)

	return &Reply{Answer: answer, Memories: memories, Duration: duration}, nil
}

func (r *Runner) recall(ctx context.Context, userID, message string) []string {
	if r.memory == nil {
		return nil
	}
	entries, err := r.memory.Search(ctx, message, userID, r.memoryLimit)
	if err != nil {
		r.logger.Warn("memory search failed: %v", err)
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if text := strings.TrimSpace(entry.Memory); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func (r *Runner) record(ctx context.Context, userID, message, answer string) {
	if r.memory == nil {
		return
	}
	messages := []memory.Message{
		{Role: "user", Content: message},
		{Role: "assistant", Content: answer},
	}
	// The turn already succeeded; a cancelled caller should not drop it.
	if err := r.memory.Add(context.WithoutCancel(ctx), messages, userID); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("memory add failed: %v", err)
	}
}

func withMemories(message string, memories []string) string {
	if len(memories) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString(memoryPreamble)
	for _, m := range memories {
		b.WriteString("- " + m + "\n")
	}
	b.WriteString("\n")
	b.WriteString(message)
	return b.String()
}
