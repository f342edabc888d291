package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	tmplctx "github.com/mcpkit/mcpserver/internal/template"
)

// resolveArguments resolves every {{ }} template reference in args against
// ctx, returning a new map - adapted from the teacher's
// WorkflowExecutor.resolveArguments/resolveValue/resolveTemplate
// (internal/workflow/executor.go), with sprig's function set added
// (internal/template/engine.go's own justification for adopting it:
// richer string/list helpers than bare text/template offers) and a
// shallow-copy passthrough of the prior step's results into the next
// step's template context, per this repo's decision on workflow parameter
// passthrough (DESIGN.md's Open Questions).
func resolveArguments(args map[string]interface{}, ctx *Context) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(args))
	for key, value := range args {
		rv, err := resolveValue(value, ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve argument %q: %w", key, err)
		}
		resolved[key] = rv
	}
	return resolved, nil
}

func resolveValue(value interface{}, ctx *Context) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, "{{") && strings.Contains(v, "}}") {
			return resolveTemplateString(v, ctx)
		}
		return v, nil
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for k, val := range v {
			rv, err := resolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			resolved[k] = rv
		}
		return resolved, nil
	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, val := range v {
			rv, err := resolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			resolved[i] = rv
		}
		return resolved, nil
	default:
		return value, nil
	}
}

func resolveTemplateString(templateStr string, ctx *Context) (interface{}, error) {
	trackTemplateVars(templateStr, ctx)

	// shallow copy: each step's template context is built fresh from the
	// shared input/results maps rather than mutating them in place, so a
	// template evaluation can never corrupt state another step depends on.
	templateCtx := tmplctx.MergeContexts(map[string]interface{}{
		"input":   ctx.Input,
		"results": ctx.Results,
		"context": ctx.Results,
	})

	tmpl, err := template.New("arg").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateCtx); err != nil {
		if strings.Contains(err.Error(), "no such key") {
			return nil, fmt.Errorf("template variable not found: %w", err)
		}
		return nil, fmt.Errorf("render template: %w", err)
	}

	result := buf.String()
	var jsonResult interface{}
	if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
		return jsonResult, nil
	}
	return result, nil
}

// trackTemplateVars records which .input.<name> references templateStr
// makes, for introspection/debugging (mirrors the teacher's
// ctx.templateVars bookkeeping).
func trackTemplateVars(templateStr string, ctx *Context) {
	if !strings.Contains(templateStr, ".input.") {
		return
	}
	for _, word := range strings.Fields(templateStr) {
		idx := strings.Index(word, ".input.")
		if idx == -1 {
			continue
		}
		remaining := word[idx+1:]
		end := strings.IndexAny(remaining, " }")
		varName := remaining
		if end != -1 {
			varName = remaining[:end]
		}
		varName = strings.TrimSuffix(strings.TrimSuffix(varName, "}}"), "}")
		if varName == "" || containsStr(ctx.TemplateVars, varName) {
			continue
		}
		ctx.TemplateVars = append(ctx.TemplateVars, varName)
	}
}

func containsStr(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
