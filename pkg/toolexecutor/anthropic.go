package toolexecutor

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// schemaMap renders the tool's parameters as a JSON Schema object
func (def ToolDefinition) schemaMap() map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return schemaMap
}

// AnthropicTools converts the registered tools, in registration order, to
// the Messages API tool format
func (te *ToolExecutor) AnthropicTools() []anthropic.ToolUnionParam {
	defs := te.Definitions()

	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schemaMap := def.schemaMap()

		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schemaMap["properties"],
				// The catalog must be as strict as the validator, which
				// rejects unknown parameters.
				ExtraFields: map[string]interface{}{"additionalProperties": false},
			},
		}
		if required, ok := schemaMap["required"].([]string); ok {
			toolParam.InputSchema.Required = required
		}

		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return tools
}
