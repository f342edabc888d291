package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller is a ToolCaller double recording every InvokeTool call,
// returning canned results/errors keyed by tool name.
type fakeCaller struct {
	results map[string]*mcp.CallToolResult
	errs    map[string]error
	calls   []map[string]interface{}
}

func (f *fakeCaller) InvokeTool(_ context.Context, name string, args map[string]interface{}, _ string) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, args)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("{}")}}, nil
}

func jsonResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func TestExecute_ValidatesRequiredInput(t *testing.T) {
	wf := &Workflow{
		Name: "greet",
		ParameterSchema: ParameterSchema{
			Required: []string{"name"},
		},
	}
	caller := &fakeCaller{}
	exec := NewExecutor(caller)

	_, err := exec.Execute(context.Background(), wf, map[string]interface{}{}, "req-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Empty(t, caller.calls)
}

func TestExecute_ResolvesTemplatesAndStoresResults(t *testing.T) {
	wf := &Workflow{
		Name: "lookup_and_greet",
		Steps: []Step{
			{
				ID:    "lookup",
				Tool:  "user.lookup",
				Args:  map[string]interface{}{"id": "{{ .input.userId }}"},
				Store: "user",
			},
			{
				ID:   "greet",
				Tool: "message.send",
				Args: map[string]interface{}{"text": "hello {{ .results.user.name }}"},
			},
		},
	}

	caller := &fakeCaller{
		results: map[string]*mcp.CallToolResult{
			"user.lookup":  jsonResult(`{"name":"Ada"}`),
			"message.send": jsonResult(`{"sent":true}`),
		},
	}
	exec := NewExecutor(caller)

	result, err := exec.Execute(context.Background(), wf, map[string]interface{}{"userId": "42"}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	require.Len(t, caller.calls, 2)
	assert.Equal(t, float64(42), caller.calls[0]["id"])
	assert.Equal(t, "hello Ada", caller.calls[1]["text"])
	assert.Len(t, result.Steps, 2)
}

func TestExecute_StepErrorProducesPartialFailedResult(t *testing.T) {
	wf := &Workflow{
		Name: "two_step",
		Steps: []Step{
			{ID: "a", Tool: "ok.tool", Store: "a"},
			{ID: "b", Tool: "bad.tool"},
		},
	}
	caller := &fakeCaller{
		results: map[string]*mcp.CallToolResult{
			"ok.tool": jsonResult(`{"v":1}`),
		},
		errs: map[string]error{
			"bad.tool": fmt.Errorf("upstream request timed out"),
		},
	}
	exec := NewExecutor(caller)

	result, err := exec.Execute(context.Background(), wf, map[string]interface{}{}, "req-1")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "failed", result.Status)
	require.Len(t, result.FailedSteps, 1)
	assert.Equal(t, "b", result.FailedSteps[0].ID)
	assert.Equal(t, "timeout", result.FailedSteps[0].ErrorType)
	assert.True(t, result.FailedSteps[0].Recoverable)
	assert.Len(t, result.Steps, 1, "the successful first step should still be recorded")
}

func TestExecute_ToolErrorResultFailsWorkflow(t *testing.T) {
	wf := &Workflow{
		Name:  "single",
		Steps: []Step{{ID: "a", Tool: "rejecting.tool"}},
	}
	caller := &fakeCaller{
		results: map[string]*mcp.CallToolResult{
			"rejecting.tool": {
				Content: []mcp.Content{mcp.NewTextContent("validation error: missing field")},
				IsError: true,
			},
		},
	}
	exec := NewExecutor(caller)

	result, err := exec.Execute(context.Background(), wf, map[string]interface{}{}, "req-1")
	require.Error(t, err)
	assert.Equal(t, "failed", result.Status)
	assert.Equal(t, "validation", result.FailedSteps[0].ErrorType)
}

func TestExecute_HooksAreInvoked(t *testing.T) {
	var before, after bool
	wf := &Workflow{
		Name:  "hooked",
		Steps: []Step{{ID: "a", Tool: "ok.tool"}},
		Hooks: Hooks{
			OnBeforeExecute: func(_ *Context) error { before = true; return nil },
			OnAfterExecute:  func(_ *Context, _ *Result) error { after = true; return nil },
		},
	}
	caller := &fakeCaller{results: map[string]*mcp.CallToolResult{"ok.tool": jsonResult(`{}`)}}
	exec := NewExecutor(caller)

	_, err := exec.Execute(context.Background(), wf, map[string]interface{}{}, "req-1")
	require.NoError(t, err)
	assert.True(t, before)
	assert.True(t, after)
}

func TestExecute_OnErrorHookInvokedOnFailure(t *testing.T) {
	var hookErr error
	wf := &Workflow{
		Name:  "hooked_fail",
		Steps: []Step{{ID: "a", Tool: "bad.tool"}},
		Hooks: Hooks{
			OnError: func(_ *Context, err error) { hookErr = err },
		},
	}
	caller := &fakeCaller{errs: map[string]error{"bad.tool": fmt.Errorf("unauthorized: invalid_token")}}
	exec := NewExecutor(caller)

	_, err := exec.Execute(context.Background(), wf, map[string]interface{}{}, "req-1")
	require.Error(t, err)
	require.Error(t, hookErr)
	assert.Contains(t, hookErr.Error(), "unauthorized")
}

func TestValidateInputs_AppliesDefaults(t *testing.T) {
	schema := ParameterSchema{
		Properties: map[string]ParameterProperty{
			"limit": {Type: "number", Default: float64(10)},
		},
	}
	args := map[string]interface{}{}
	require.NoError(t, validateInputs(schema, args))
	assert.Equal(t, float64(10), args["limit"])
}

func TestValidateInputs_RejectsWrongType(t *testing.T) {
	schema := ParameterSchema{
		Properties: map[string]ParameterProperty{
			"count": {Type: "integer"},
		},
	}
	err := validateInputs(schema, map[string]interface{}{"count": "not a number"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
}
