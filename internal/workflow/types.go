package workflow

import "time"

// ParameterProperty describes one property of a workflow's parameter
// schema: type, description, default, and whether it is required.
type ParameterProperty struct {
	Type        string
	Description string
	Default     interface{}
}

// ParameterSchema is a workflow's input schema: properties plus which of
// them are required. Deliberately simpler than a full JSON Schema (spec
// section 4.10 does not ask for nested combinators here - those live in
// internal/toolregistry's compiled schemas) to match the teacher's
// api.WorkflowInputSchema shape.
type ParameterSchema struct {
	Properties map[string]ParameterProperty
	Required   []string
}

// Step is one unit of work in a workflow: call Tool with Args (which may
// contain {{ }} template references to input params or prior steps'
// results), optionally storing its parsed result under Store for later
// steps to reference.
type Step struct {
	ID    string
	Tool  string
	Args  map[string]interface{}
	Store string
}

// Hooks are optional lifecycle callbacks a workflow definition may set,
// per spec section 4.10 step 2/4. Each is best-effort: a hook error is
// logged, never fails the workflow.
type Hooks struct {
	OnBeforeExecute func(ctx *Context) error
	OnAfterExecute  func(ctx *Context, result *Result) error
	OnError         func(ctx *Context, err error)
}

// Workflow is (name, version, parameterSchema, executeWorkflow) from spec
// section 4.10, expressed as a declarative step list rather than an
// arbitrary executeWorkflow closure - the teacher's own workflows are
// always step lists (loaded from YAML), never free-form Go functions.
type Workflow struct {
	Name            string
	Version         string
	Description     string
	ParameterSchema ParameterSchema
	Steps           []Step
	Hooks           Hooks
}

// StepResult records one successfully executed step.
type StepResult struct {
	ID       string
	Tool     string
	Store    string
	DurationMs int64
}

// FailedStep records one step that failed, classified per spec section 7's
// error taxonomy.
type FailedStep struct {
	ID          string
	Tool        string
	ErrorType   string
	Error       string
	Recoverable bool
}

// Result is the WorkflowResult spec section 4.10 asks executeWithValidation
// to return.
type Result struct {
	Workflow    string
	Status      string // "completed" | "failed"
	Steps       []StepResult
	FailedSteps []FailedStep
	Results     map[string]interface{}
	Duration    time.Duration
	Error       string
}

// Context carries per-execution state across steps and into lifecycle
// hooks: resolved input, accumulated step results, and the template
// variables referenced along the way.
type Context struct {
	Workflow     string
	Input        map[string]interface{}
	Results      map[string]interface{}
	TemplateVars []string
}
