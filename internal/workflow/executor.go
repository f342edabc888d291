package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// ToolCaller is what the executor needs from a tool dispatcher - satisfied
// directly by *internal/toolregistry.Registry, rather than the teacher's
// narrower aggregator-coupled ToolCaller (CallToolInternal(ctx, name, args)),
// since the step error-classification and per-call request IDs this package
// needs come from the registry's richer InvokeTool signature.
type ToolCaller interface {
	InvokeTool(ctx context.Context, name string, args map[string]interface{}, requestID string) (*mcp.CallToolResult, error)
}

// Executor runs Workflow definitions against a ToolCaller, per spec section
// 4.10's executeWithValidation operation.
//
// Adapted from the teacher's WorkflowExecutor (internal/workflow/executor.go):
// same step-by-step resolve-call-store loop and partial-result-on-failure
// behavior, generalized to this package's Workflow/Step/Context/Result types
// and extended with classifyError-based failure typing and the Hooks
// lifecycle spec section 4.10 calls for.
type Executor struct {
	caller ToolCaller
}

// NewExecutor builds an Executor that dispatches tool calls through caller.
func NewExecutor(caller ToolCaller) *Executor {
	return &Executor{caller: caller}
}

// Execute runs workflow with the given input, per spec section 4.10.
// Input is validated against workflow.ParameterSchema before any step runs.
// A step failure stops execution and returns a Result with Status "failed"
// and the steps completed so far, rather than only an error - callers that
// need partial progress (e.g. for display) can inspect Result even when err
// is non-nil.
func (e *Executor) Execute(ctx context.Context, wf *Workflow, input map[string]interface{}, requestID string) (*Result, error) {
	start := time.Now()

	if err := validateInputs(wf.ParameterSchema, input); err != nil {
		return nil, fmt.Errorf("workflow %s: invalid input: %w", wf.Name, err)
	}

	execCtx := &Context{
		Workflow:     wf.Name,
		Input:        input,
		Results:      make(map[string]interface{}),
		TemplateVars: make([]string, 0),
	}

	if wf.Hooks.OnBeforeExecute != nil {
		if err := wf.Hooks.OnBeforeExecute(execCtx); err != nil {
			logging.Warn("Workflow", "workflow %s OnBeforeExecute hook returned error: %v", wf.Name, err)
		}
	}

	result := &Result{
		Workflow: wf.Name,
		Results:  execCtx.Results,
	}

	for _, step := range wf.Steps {
		resolvedArgs, err := resolveArguments(step.Args, execCtx)
		if err != nil {
			return e.fail(wf, execCtx, result, start, step, err)
		}

		stepResult, err := e.caller.InvokeTool(ctx, step.Tool, resolvedArgs, requestID)
		if err != nil {
			return e.fail(wf, execCtx, result, start, step, err)
		}
		if stepResult.IsError {
			return e.fail(wf, execCtx, result, start, step, fmt.Errorf("%s", stepText(stepResult)))
		}

		if step.Store != "" {
			execCtx.Results[step.Store] = parseStepResult(stepResult)
		}

		result.Steps = append(result.Steps, StepResult{
			ID:    step.ID,
			Tool:  step.Tool,
			Store: step.Store,
		})
	}

	result.Status = "completed"
	result.Duration = time.Since(start)

	if wf.Hooks.OnAfterExecute != nil {
		if err := wf.Hooks.OnAfterExecute(execCtx, result); err != nil {
			logging.Warn("Workflow", "workflow %s OnAfterExecute hook returned error: %v", wf.Name, err)
		}
	}

	return result, nil
}

func (e *Executor) fail(wf *Workflow, execCtx *Context, result *Result, start time.Time, step Step, stepErr error) (*Result, error) {
	errType, recoverable := classifyError(stepErr)

	result.Status = "failed"
	result.Error = stepErr.Error()
	result.Duration = time.Since(start)
	result.FailedSteps = append(result.FailedSteps, FailedStep{
		ID:          step.ID,
		Tool:        step.Tool,
		ErrorType:   errType,
		Error:       stepErr.Error(),
		Recoverable: recoverable,
	})

	wrapped := fmt.Errorf("step %s failed: %w", step.ID, stepErr)

	if wf.Hooks.OnError != nil {
		wf.Hooks.OnError(execCtx, wrapped)
	}

	logging.Error("Workflow", stepErr, "workflow %s step %s failed (type=%s recoverable=%v)", wf.Name, step.ID, errType, recoverable)

	return result, wrapped
}

func stepText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return "tool returned an error result"
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return "tool returned an error result"
}

// parseStepResult extracts a step's stored value: JSON-decoded when the
// tool's text content is JSON, the raw text otherwise - mirroring the
// teacher's result-storage behavior in ExecuteWorkflow.
func parseStepResult(result *mcp.CallToolResult) interface{} {
	if result == nil || len(result.Content) == 0 {
		return nil
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return nil
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(tc.Text), &parsed); err == nil {
		return parsed
	}
	return tc.Text
}

// validateInputs checks required fields and basic types against schema,
// and applies property defaults for missing optional fields - adapted from
// the teacher's WorkflowExecutor.validateInputs/validateType.
func validateInputs(schema ParameterSchema, args map[string]interface{}) error {
	for _, required := range schema.Required {
		if _, exists := args[required]; !exists {
			return fmt.Errorf("required field %q is missing", required)
		}
	}

	for key, value := range args {
		prop, exists := schema.Properties[key]
		if !exists {
			continue
		}
		if !validateType(value, prop.Type) {
			return fmt.Errorf("field %q has wrong type, expected %s", key, prop.Type)
		}
	}

	for key, prop := range schema.Properties {
		if _, exists := args[key]; !exists && prop.Default != nil {
			args[key] = prop.Default
		}
	}

	return nil
}

func validateType(value interface{}, expectedType string) bool {
	if expectedType == "" {
		return true
	}
	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}
