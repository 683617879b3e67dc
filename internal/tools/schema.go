package tools

// Schema declares a tool's argument shape: named fields with primitive
// types and a required set. The model emits untyped key/value blobs;
// validation maps them onto this declared shape before any handler runs.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// Property describes one argument field.
type Property struct {
	Type        string // "string", "integer", "number", "boolean", "object"
	Description string
	Enum        []string // optional, string-typed fields only
}

// Parameters renders the schema as a JSON Schema object for the model API.
func (s Schema) Parameters() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{
			"type": p.Type,
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// Validate checks args against the schema: every required field must be
// present, and every present declared field must match its primitive
// type. Undeclared extra fields are ignored — models pad arguments and
// rejecting the padding helps nobody. Returns [*InvalidArgumentsError]
// naming the first offending field.
func (s Schema) Validate(tool string, args map[string]any) error {
	for _, name := range s.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return &InvalidArgumentsError{Tool: tool, Field: name, Reason: "required field is missing"}
		}
	}

	for name, p := range s.Properties {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		if !matchesType(v, p.Type) {
			return &InvalidArgumentsError{
				Tool:   tool,
				Field:  name,
				Reason: "expected " + p.Type,
			}
		}
		if len(p.Enum) > 0 {
			sv, _ := v.(string)
			if !contains(p.Enum, sv) {
				return &InvalidArgumentsError{
					Tool:   tool,
					Field:  name,
					Reason: "value not in allowed set",
				}
			}
		}
	}

	return nil
}

// matchesType checks a decoded JSON value against a schema type name.
// JSON numbers decode as float64; integer fields additionally require a
// whole value.
func matchesType(v any, typ string) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		// Unknown schema types pass through; the handler owns them.
		return true
	}
}

func contains(set []string, s string) bool {
	for _, e := range set {
		if e == s {
			return true
		}
	}
	return false
}
