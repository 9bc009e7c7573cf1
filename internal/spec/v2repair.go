package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// mergeV2BodyParameters rewrites Swagger v2 operations that kin-openapi
// refuses to convert: several "body" parameters, or "body" mixed with
// "formData". Those parameters are folded into one JSON body parameter named
// "body" whose schema has a property per original parameter. Operations
// using formData alone are left for openapi2conv.
//
// The original bytes are returned unchanged when nothing needed rewriting or
// the document could not be round-tripped.
func mergeV2BodyParameters(data []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		return data, false, nil
	}

	modified := false
	for _, item := range paths {
		pathItem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for method, raw := range pathItem {
			if !isV2Method(method) {
				continue
			}
			op, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if mergeOperationBody(op) {
				modified = true
			}
		}
	}
	if !modified {
		return data, false, nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func isV2Method(m string) bool {
	switch strings.ToLower(m) {
	case "get", "put", "post", "delete", "options", "head", "patch":
		return true
	}
	return false
}

func mergeOperationBody(op map[string]any) bool {
	params, ok := op["parameters"].([]any)
	if !ok || len(params) == 0 {
		return false
	}

	var bodies, forms int
	for _, p := range params {
		switch paramIn(p) {
		case "body":
			bodies++
		case "formdata":
			forms++
		}
	}
	if bodies == 0 || (bodies == 1 && forms == 0) {
		return false
	}

	props := map[string]any{}
	var required []any
	kept := make([]any, 0, len(params))
	for _, p := range params {
		in := paramIn(p)
		if in != "body" && in != "formdata" {
			kept = append(kept, p)
			continue
		}
		pm := p.(map[string]any)
		name := stringField(pm, "name")
		if name == "" {
			name = "field"
		}
		props[name] = parameterSchema(pm)
		if req, _ := pm["required"].(bool); req {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	merged := map[string]any{"in": "body", "name": "body", "schema": schema}
	if len(required) > 0 {
		merged["required"] = true
	}
	op["parameters"] = append([]any{merged}, kept...)
	op["consumes"] = []any{"application/json"}
	return true
}

func paramIn(p any) string {
	pm, ok := p.(map[string]any)
	if !ok {
		return ""
	}
	return strings.ToLower(stringField(pm, "in"))
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// parameterSchema returns the body schema or one synthesized from the
// parameter's type, items and format. Files degrade to strings.
func parameterSchema(pm map[string]any) map[string]any {
	if sch, ok := pm["schema"].(map[string]any); ok {
		return sch
	}
	typ := stringField(pm, "type")
	if typ == "" || typ == "file" {
		typ = "string"
	}
	out := map[string]any{"type": typ}
	if items, ok := pm["items"].(map[string]any); ok {
		out["items"] = items
	}
	if f := stringField(pm, "format"); f != "" {
		out["format"] = f
	}
	if d := stringField(pm, "description"); d != "" {
		out["description"] = d
	}
	return out
}
