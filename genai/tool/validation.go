package tool

import (
	"encoding/json"
	"strings"

	"github.com/rin1809/fwexec/genai/llm"
)

// FieldError captures one missing or invalid parameter detected during
// validation against the tool's JSON schema.
type FieldError struct {
	Name   string // parameter name, e.g. "command"
	Reason string // free-text explanation
}

// ValidateArgs checks the provided args against the required fields of the
// tool definition.
//
// It returns:
//  1. a shallow copy of args with any default values from the schema filled in;
//  2. a slice describing the remaining problems (empty slice ⇒ valid).
func ValidateArgs(def llm.ToolDefinition, args map[string]interface{}) (map[string]interface{}, []FieldError) {
	fixed := map[string]interface{}{}
	for k, v := range args {
		fixed[k] = v
	}

	var properties map[string]interface{}
	if propRaw, ok := def.Parameters["properties"]; ok {
		if p, err := json.Marshal(propRaw); err == nil {
			_ = json.Unmarshal(p, &properties)
		}
	}

	var problems []FieldError
	for _, field := range requiredFields(def) {
		if value, found := fixed[field]; found && !isBlank(value) {
			continue
		}
		if defVal := defaultValue(properties, field); defVal != nil {
			fixed[field] = defVal
			continue
		}
		problems = append(problems, FieldError{Name: field, Reason: "required but missing"})
	}
	return fixed, problems
}

// FormatProblems renders validation problems as one line.
func FormatProblems(problems []FieldError) string {
	parts := make([]string, 0, len(problems))
	for _, p := range problems {
		parts = append(parts, p.Name+" "+p.Reason)
	}
	return strings.Join(parts, "; ")
}

func requiredFields(def llm.ToolDefinition) []string {
	fields := append([]string(nil), def.Required...)
	switch actual := def.Parameters["required"].(type) {
	case []string:
		fields = append(fields, actual...)
	case []interface{}:
		for _, r := range actual {
			if field, ok := r.(string); ok {
				fields = append(fields, field)
			}
		}
	}
	var result []string
	seen := map[string]bool{}
	for _, field := range fields {
		if field = strings.TrimSpace(field); field == "" || seen[field] {
			continue
		}
		seen[field] = true
		result = append(result, field)
	}
	return result
}

func isBlank(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func defaultValue(props map[string]interface{}, field string) interface{} {
	if props == nil {
		return nil
	}
	raw, ok := props[field]
	if !ok {
		return nil
	}
	if pm, ok := raw.(map[string]interface{}); ok {
		if defVal, ok2 := pm["default"]; ok2 {
			return defVal
		}
	}
	return nil
}
