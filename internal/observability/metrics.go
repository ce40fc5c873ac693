package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool
}

// MetricsCollector records tool and agent-turn metrics. A disabled collector
// accepts every call and records nothing.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	toolExecutions metric.Int64Counter
	toolDuration   metric.Float64Histogram
	agentTurns     metric.Int64Counter
	turnDuration   metric.Float64Histogram
}

// NewMetricsCollector creates a metrics collector backed by its own
// prometheus registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("codeagent")

	toolExecutions, err := meter.Int64Counter(
		"codeagent.tool.executions",
		metric.WithDescription("Total number of tool executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_executions counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"codeagent.tool.duration",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration histogram: %w", err)
	}

	agentTurns, err := meter.Int64Counter(
		"codeagent.agent.turns",
		metric.WithDescription("Total number of agent turns"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_turns counter: %w", err)
	}

	turnDuration, err := meter.Float64Histogram(
		"codeagent.agent.turn.duration",
		metric.WithDescription("Agent turn duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create turn_duration histogram: %w", err)
	}

	return &MetricsCollector{
		provider:       provider,
		registry:       registry,
		toolExecutions: toolExecutions,
		toolDuration:   toolDuration,
		agentTurns:     agentTurns,
		turnDuration:   turnDuration,
	}, nil
}

// Enabled reports whether metrics are being recorded.
func (m *MetricsCollector) Enabled() bool {
	return m != nil && m.registry != nil
}

// Handler serves the prometheus exposition format. A disabled collector
// answers 404.
func (m *MetricsCollector) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordToolExecution records one tool invocation.
func (m *MetricsCollector) RecordToolExecution(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolExecutions == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool_name", toolName),
		attribute.String("status", status),
	)
	m.toolExecutions.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool_name", toolName)))
}

// RecordAgentTurn records one completed agent turn.
func (m *MetricsCollector) RecordAgentTurn(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.agentTurns == nil {
		return
	}
	m.agentTurns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.turnDuration.Record(ctx, duration.Seconds())
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
