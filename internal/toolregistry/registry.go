package toolregistry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// registeredTool pairs a Definition with its compiled schema (nil for
// ModeNative or a schema-less tool) and its running stats.
type registeredTool struct {
	def    Definition
	schema *jsonschema.Schema

	mu    sync.Mutex
	stats Stats
}

// Registry is the Tool Registry of spec section 4.9. It owns tool
// definitions, validates managed-mode arguments before invoking handlers,
// and tracks per-tool call statistics and Prometheus metrics.
//
// Metrics is exported so a host application can mount it behind its own
// /metrics endpoint; this repo does not serve one itself.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool

	Metrics *prometheus.Registry
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewRegistry builds an empty Registry with its own Prometheus registry -
// distinct instances never share metric state, unlike the teacher's
// package-level prometheus.MustRegister pattern in
// internal/server/middleware.go (not pack-present here but observed in the
// sibling example repo), which assumes a single process-wide registry.
func NewRegistry() *Registry {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_tool_calls_total",
		Help: "Total number of tool invocations, by tool and outcome.",
	}, []string{"tool", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcp_tool_call_duration_seconds",
		Help:    "Tool invocation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(calls, latency)

	return &Registry{
		tools:   make(map[string]*registeredTool),
		Metrics: reg,
		calls:   calls,
		latency: latency,
	}
}

// RegisterTool compiles def's schema (ModeManaged only) and adds it to the
// registry. Registering a name twice replaces the previous definition.
func (r *Registry) RegisterTool(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("toolregistry: tool name must not be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("toolregistry: tool %s has no handler", def.Name)
	}
	if def.Mode == "" {
		def.Mode = ModeManaged
	}

	var schema *jsonschema.Schema
	if def.Mode == ModeManaged {
		var err error
		schema, err = compileSchema(def.Name, def.InputSchema)
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = &registeredTool{def: def, schema: schema}
	return nil
}

// List returns the names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// MCPTools returns the mcp.Tool descriptors for every registered tool, for
// mounting onto the MCP transport's tools/list response.
func (r *Registry) MCPTools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, mcp.Tool{
			Name:        t.def.Name,
			Description: t.def.Description,
			InputSchema: toMCPInputSchema(t.def.InputSchema),
		})
	}
	return out
}

// Stats returns the current call statistics for name, or false if name is
// not registered.
func (r *Registry) Stats(name string) (Stats, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats, true
}

// InvokeTool validates (ModeManaged) and dispatches args to name's handler,
// per spec section 4.9. A validation failure or a handler panic both
// produce a result with IsError set rather than a returned error, matching
// the MCP convention that tool failures are reported as part of the result
// content.
func (r *Registry) InvokeTool(ctx context.Context, name string, args map[string]interface{}, requestID string) (*mcp.CallToolResult, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("toolregistry: unknown tool %s", name)
	}

	if t.def.Mode == ModeManaged && t.schema != nil {
		if err := t.schema.Validate(args); err != nil {
			r.recordOutcome(name, "validation_error", 0)
			return errorResult(fmt.Sprintf("Validation error: %v", err)), nil
		}
	}

	start := time.Now()
	result, err := r.invoke(ctx, t, args, requestID)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil || (result != nil && result.IsError) {
		outcome = "error"
	}
	r.recordOutcome(name, outcome, elapsed)

	return result, err
}

// invoke calls the handler, recovering from a panic and rendering it as an
// error result instead of letting it cross the registry boundary.
func (r *Registry) invoke(ctx context.Context, t *registeredTool, args map[string]interface{}, requestID string) (result *mcp.CallToolResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("ToolRegistry", fmt.Errorf("%v", rec), "tool %s panicked", t.def.Name)
			result = errorResult(fmt.Sprintf("Tool execution failed: %v", rec))
			err = nil
		}
	}()
	return t.def.Handler(ctx, args, Extra{RequestID: requestID})
}

func (r *Registry) recordOutcome(name, outcome string, elapsed time.Duration) {
	r.calls.WithLabelValues(name, outcome).Inc()
	if elapsed > 0 {
		r.latency.WithLabelValues(name).Observe(elapsed.Seconds())
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.CallCount++
	t.stats.LastCalled = time.Now()
	execMs := float64(elapsed.Microseconds()) / 1000.0
	if t.stats.CallCount == 1 {
		t.stats.AvgExecMs = execMs
	} else {
		n := float64(t.stats.CallCount)
		t.stats.AvgExecMs = t.stats.AvgExecMs + (execMs-t.stats.AvgExecMs)/n
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(message)},
		IsError: true,
	}
}

// toMCPInputSchema adapts a raw JSON Schema document into mcp.ToolInputSchema,
// the shape the teacher's convertToMCPSchema (internal/aggregator/tool_factory.go)
// produces from its own parameter metadata.
func toMCPInputSchema(doc map[string]interface{}) mcp.ToolInputSchema {
	schema := mcp.ToolInputSchema{Type: "object"}
	if doc == nil {
		return schema
	}
	if t, ok := doc["type"].(string); ok && t != "" {
		schema.Type = t
	}
	if props, ok := doc["properties"].(map[string]interface{}); ok {
		schema.Properties = props
	}
	if req, ok := doc["required"].([]string); ok {
		schema.Required = req
	} else if reqAny, ok := doc["required"].([]interface{}); ok {
		for _, v := range reqAny {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}
