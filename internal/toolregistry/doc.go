// Package toolregistry implements the Tool Registry of spec section 4.9:
// registerTool/invokeTool over compiled JSON Schemas, managed vs. native
// handler modes, and per-tool call statistics.
//
// Grounded on the teacher's internal/aggregator/tool_factory.go
// (createToolHandler's raw-args-in/mcp.CallToolResult-out handler shape,
// convertToMCPSchema's parameter-to-mcp.ToolInputSchema conversion) and
// internal/workflow/manager.go's workflowToTool (definition-to-mcp.Tool
// conversion). The teacher's handlers always validate on the far side of a
// generic api.ToolProvider interface with no schema compilation step; this
// package adds the managed/native split and santhosh-tekuri/jsonschema/v6
// compilation spec section 4.9 and 9 call for, since the teacher never
// needed machine-checked schemas (its tool definitions are produced from
// Go structs, not free-form user-supplied schemas).
package toolregistry
