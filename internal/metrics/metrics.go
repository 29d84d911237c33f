// Package metrics exposes Prometheus instrumentation for agent activity —
// active agent count, tool execution latency, permission decisions, and LLM
// turn latency — plus an OpenTelemetry tracer for per-turn spans.
//
// Grounded on the Metrics type in haasonsaas-nexus's internal/observability
// (NewMetrics/promauto registration style, CounterVec/HistogramVec/GaugeVec
// shape, Record* method naming) and kadirpekel-hector's pkg/observability,
// generalized from their channel/webhook/database domain to agent turns,
// tool calls, and permission decisions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a registered set of Prometheus collectors for one process.
type Metrics struct {
	// ActiveAgents tracks currently running agents by kind (top-level,
	// subagent).
	ActiveAgents *prometheus.GaugeVec

	// AgentTurns counts AgentStopped calls by agent kind and outcome.
	// agentloop.Loop calls AgentStopped once, when its Run exits, with the
	// outcome "exited"; individual turns are not counted.
	AgentTurns *prometheus.CounterVec

	// LLMTurnDuration measures the wall-clock time of one callModel call in
	// the agent loop, covering every streamTurn try including retries, in
	// seconds.
	LLMTurnDuration *prometheus.HistogramVec

	// ToolExecutionDuration measures one tool call's latency in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool calls by tool name and outcome.
	ToolExecutionCounter *prometheus.CounterVec

	// PermissionAsks counts permission prompts by tool name and the
	// resolution (allow|allow_remember|deny).
	PermissionAsks *prometheus.CounterVec

	// ContextCompactions counts history-compaction runs by agent kind.
	ContextCompactions *prometheus.CounterVec
}

// New creates and registers every collector against reg. Pass
// prometheus.DefaultRegisterer to use the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration panics
// across test runs.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveAgents: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentcore_active_agents",
				Help: "Number of currently running agents by kind",
			},
			[]string{"kind"},
		),
		AgentTurns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_agent_turns_total",
				Help: "Total number of completed agent turns by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		LLMTurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_llm_turn_duration_seconds",
				Help:    "Duration of one LLM turn, including retries, in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total number of tool executions by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		PermissionAsks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_permission_asks_total",
				Help: "Total number of permission prompts by tool name and resolution",
			},
			[]string{"tool_name", "resolution"},
		),
		ContextCompactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_context_compactions_total",
				Help: "Total number of history compaction runs by agent kind",
			},
			[]string{"kind"},
		),
	}
}

// AgentStarted increments the active-agent gauge for kind.
func (m *Metrics) AgentStarted(kind string) {
	if m == nil {
		return
	}
	m.ActiveAgents.WithLabelValues(kind).Inc()
}

// AgentStopped decrements the active-agent gauge and records the turn
// outcome.
func (m *Metrics) AgentStopped(kind, outcome string) {
	if m == nil {
		return
	}
	m.ActiveAgents.WithLabelValues(kind).Dec()
	m.AgentTurns.WithLabelValues(kind, outcome).Inc()
}

// RecordLLMTurn records one LLM call's latency.
func (m *Metrics) RecordLLMTurn(model string, duration time.Duration) {
	if m == nil {
		return
	}
	m.LLMTurnDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordToolExecution records one tool call's latency and outcome.
func (m *Metrics) RecordToolExecution(toolName, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, outcome).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordPermissionAsk records a permission prompt's resolution.
func (m *Metrics) RecordPermissionAsk(toolName, resolution string) {
	if m == nil {
		return
	}
	m.PermissionAsks.WithLabelValues(toolName, resolution).Inc()
}

// RecordCompaction records a history-compaction run.
func (m *Metrics) RecordCompaction(kind string) {
	if m == nil {
		return
	}
	m.ContextCompactions.WithLabelValues(kind).Inc()
}
