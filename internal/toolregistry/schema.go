package toolregistry

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compileSchema compiles a tool's raw InputSchema document, addressed by a
// synthetic per-tool resource URL so distinct tools' schemas never collide
// in the compiler's resource cache.
func compileSchema(toolName string, doc map[string]interface{}) (*jsonschema.Schema, error) {
	if doc == nil {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	url := "mem://toolregistry/" + toolName
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for tool %s: %w", toolName, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %s: %w", toolName, err)
	}
	return schema, nil
}
