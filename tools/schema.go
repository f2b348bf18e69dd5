package tools

// Schema is a JSON Schema fragment, ready to be marshalled into a tool
// definition.
type Schema = map[string]any

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]Schema, required ...string) Schema {
	schema := Schema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property.
func StringProperty(description string) Schema {
	return Schema{
		"type":        "string",
		"description": description,
	}
}

// StringEnumProperty creates a string property restricted to values.
func StringEnumProperty(description string, values ...string) Schema {
	return Schema{
		"type":        "string",
		"description": description,
		"enum":        values,
	}
}

// withReason adds a "reason" property the model fills in to explain the
// call. Writes require it so every stored memory traces back to something
// the user said.
func withReason(properties map[string]Schema, required bool, fields ...string) Schema {
	props := make(map[string]Schema, len(properties)+1)
	for k, v := range properties {
		props[k] = v
	}
	props["reason"] = StringProperty("Why you are calling this tool. For writes, quote what the user said that asked for it.")
	if required {
		fields = append(fields, "reason")
	}
	return ObjectSchema(props, fields...)
}
