// Package workflow implements the Workflow Engine of spec section 4.10: a
// workflow is (name, version, parameterSchema, steps); executeWithValidation
// validates parameters, runs each step against a ToolCaller (this repo's
// internal/toolregistry.Registry), classifies step failures into the spec
// section 7 error taxonomy, and invokes optional lifecycle hooks.
//
// Grounded on the teacher's internal/workflow/executor.go (the
// executionContext/stepMetadata shape, template-based argument resolution,
// partial-result-on-failure behavior) and internal/workflow/manager.go
// (YAML-backed definition storage), narrowed from the teacher's
// Kubernetes-CRD-or-filesystem "unified client" storage down to this
// repo's own internal/kvstore, and from the teacher's api.Workflow type
// (tied to its CRD API layer) to a package-local Workflow type. The
// teacher's api_adapter.go (CRD/filesystem backend selection,
// api.WorkflowHandler registration, event-bus subscription) and
// execution_tracker.go/execution_storage.go (persisted execution history
// tied to that same CRD/filesystem client) are not carried forward: spec
// section 4.10 defines execution as synchronous request/response with no
// execution-history query surface, so that machinery has nothing in
// SPEC_FULL.md to serve.
package workflow
