package tools

import (
	"context"
	"fmt"
	"time"

	"codeagent/internal/logging"
	"codeagent/internal/observability"
	"codeagent/internal/tokenutil"

	"go.opentelemetry.io/otel/attribute"
)

// Observers bundles the cross-cutting hooks applied to every tool call.
type Observers struct {
	Logger          logging.Logger
	Metrics         *observability.MetricsCollector
	Tracer          *observability.TracerProvider
	MaxOutputTokens int
}

type instrumented struct {
	inner Executor
	obs   Observers
}

// Instrument wraps exec with logging, metrics, tracing and token-bounded
// output.
func Instrument(exec Executor, obs Observers) Executor {
	obs.Logger = logging.OrNop(obs.Logger)
	if obs.Tracer == nil {
		obs.Tracer = observability.NoopTracer()
	}
	return &instrumented{inner: exec, obs: obs}
}

func (i *instrumented) Definition() Definition {
	return i.inner.Definition()
}

// Unwrap returns the wrapped executor.
func (i *instrumented) Unwrap() Executor {
	return i.inner
}

func (i *instrumented) Execute(ctx context.Context, call Call) *Result {
	name := i.inner.Definition().Name
	ctx, span := i.obs.Tracer.StartSpan(ctx, observability.SpanToolExecute, attribute.String(observability.AttrToolName, name))

	i.obs.Logger.Info("tool %s called with %v", name, call.Arguments)
	started := time.Now()
	result := i.inner.Execute(ctx, call)
	elapsed := time.Since(started)
	if result == nil {
		result = Fail(FailureInternal, "Unexpected error: tool %s returned no result", name)
	}

	status := "success"
	var spanErr error
	if result.Failure != nil {
		status = string(result.Failure.Kind)
		spanErr = result.Failure
		i.obs.Logger.Warn("tool %s failed (%s) after %s: %s", name, result.Failure.Kind, elapsed, result.Failure.Message)
	} else {
		i.obs.Logger.Debug("tool %s finished in %s", name, elapsed)
	}
	span.SetAttributes(attribute.String(observability.AttrStatus, status))
	observability.EndSpan(span, spanErr)
	i.obs.Metrics.RecordToolExecution(ctx, name, status, elapsed)

	if i.obs.MaxOutputTokens > 0 && result.Failure == nil {
		if result.Content != "" {
			result.Content = tokenutil.TruncateToTokens(result.Content, i.obs.MaxOutputTokens)
		}
		result.Items = truncateItems(result.Items, i.obs.MaxOutputTokens)
	}
	return result
}

// truncateItems keeps whole items until their combined token count would pass
// the budget, then records how many were dropped.
func truncateItems(items []string, maxTokens int) []string {
	total := 0
	for _, item := range items {
		total += len(item) + 1
	}
	if total <= maxTokens {
		return items
	}
	used := 0
	for idx, item := range items {
		cost := tokenutil.CountTokens(item) + 1
		if used+cost > maxTokens {
			kept := append([]string{}, items[:idx]...)
			return append(kept, fmt.Sprintf("...[%d more entries truncated]", len(items)-idx))
		}
		used += cost
	}
	return items
}
