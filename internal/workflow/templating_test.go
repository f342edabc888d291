package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveArguments_PlainValuesPassThrough(t *testing.T) {
	ctx := &Context{Input: map[string]interface{}{}, Results: map[string]interface{}{}}
	resolved, err := resolveArguments(map[string]interface{}{"count": 5, "name": "static"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, resolved["count"])
	assert.Equal(t, "static", resolved["name"])
}

func TestResolveArguments_InputReference(t *testing.T) {
	ctx := &Context{Input: map[string]interface{}{"userId": "abc"}, Results: map[string]interface{}{}}
	resolved, err := resolveArguments(map[string]interface{}{"id": "{{ .input.userId }}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", resolved["id"])
	assert.Contains(t, ctx.TemplateVars, "userId")
}

func TestResolveArguments_ResultsReference(t *testing.T) {
	ctx := &Context{
		Input:   map[string]interface{}{},
		Results: map[string]interface{}{"user": map[string]interface{}{"name": "Ada"}},
	}
	resolved, err := resolveArguments(map[string]interface{}{"greeting": "hi {{ .results.user.name }}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi Ada", resolved["greeting"])
}

func TestResolveArguments_NestedMapsAndSlices(t *testing.T) {
	ctx := &Context{Input: map[string]interface{}{"x": "1"}, Results: map[string]interface{}{}}
	args := map[string]interface{}{
		"nested": map[string]interface{}{"v": "{{ .input.x }}"},
		"list":   []interface{}{"{{ .input.x }}", "literal"},
	}
	resolved, err := resolveArguments(args, ctx)
	require.NoError(t, err)
	nested := resolved["nested"].(map[string]interface{})
	assert.Equal(t, float64(1), nested["v"])
	list := resolved["list"].([]interface{})
	assert.Equal(t, float64(1), list[0])
	assert.Equal(t, "literal", list[1])
}

func TestResolveArguments_MissingKeyErrors(t *testing.T) {
	ctx := &Context{Input: map[string]interface{}{}, Results: map[string]interface{}{}}
	_, err := resolveArguments(map[string]interface{}{"id": "{{ .input.missing }}"}, ctx)
	require.Error(t, err)
}

func TestResolveArguments_SprigFunctionAvailable(t *testing.T) {
	ctx := &Context{Input: map[string]interface{}{"name": "ada"}, Results: map[string]interface{}{}}
	resolved, err := resolveArguments(map[string]interface{}{"name": "{{ .input.name | upper }}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "ADA", resolved["name"])
}

func TestResolveArguments_JSONResultIsDecoded(t *testing.T) {
	ctx := &Context{
		Input:   map[string]interface{}{},
		Results: map[string]interface{}{"obj": map[string]interface{}{"a": float64(1)}},
	}
	resolved, err := resolveArguments(map[string]interface{}{"passthrough": "{{ .results.obj.a }}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), resolved["passthrough"])
}
