package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Table maps operation IDs to operations. It is built once by BuildTable and
// never modified afterwards.
type Table struct {
	ops map[string]Operation
	ids []string
}

// Lookup returns the operation registered under id.
func (t *Table) Lookup(id string) (Operation, bool) {
	if t == nil {
		return Operation{}, false
	}
	op, ok := t.ops[id]
	return op, ok
}

// IDs returns every operation ID in sorted order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

// Operations returns every operation ordered by ID.
func (t *Table) Operations() []Operation {
	if t == nil {
		return nil
	}
	out := make([]Operation, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.ops[id])
	}
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

// RequiredParameters returns the parameters of op marked required, in declaration order.
func RequiredParameters(op Operation) []Parameter {
	var out []Parameter
	for _, p := range op.Parameters {
		if p.Required {
			out = append(out, p)
		}
	}
	return out
}

// BuildTable walks every path and method of the document and produces the
// operation table. Paths are visited in sorted order and methods in a fixed
// order so that synthesized IDs and duplicate detection are deterministic.
func BuildTable(s *Spec) (*Table, error) {
	if s == nil || s.Doc == nil {
		return nil, fmt.Errorf("nil spec")
	}
	t := &Table{ops: make(map[string]Operation)}

	pathKeys := make([]string, 0, len(s.Doc.Paths))
	for p := range s.Doc.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, p := range pathKeys {
		item := s.Doc.Paths[p]
		if item == nil {
			continue
		}

		ops := []struct {
			m HttpMethod
			o *openapi3.Operation
		}{
			{GET, item.Get},
			{PUT, item.Put},
			{POST, item.Post},
			{DELETE, item.Delete},
			{OPTIONS, item.Options},
			{HEAD, item.Head},
			{PATCH, item.Patch},
			{TRACE, item.Trace},
		}

		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			op := Operation{
				ID:          safeStr(pair.o.OperationID),
				Method:      pair.m,
				Path:        p,
				Summary:     safeStr(pair.o.Summary),
				Description: safeStr(pair.o.Description),
				Tags:        cleanTags(pair.o.Tags),
				Parameters:  mergeParameters(item.Parameters, pair.o.Parameters),
			}
			if op.ID == "" {
				op.ID = SynthesizeID(pair.m, p)
				op.Synthesized = true
			}
			if rb := pair.o.RequestBody; rb != nil && rb.Value != nil {
				op.Parameters = append(op.Parameters, Parameter{
					Name:        "body",
					In:          InBody,
					Required:    rb.Value.Required,
					Type:        "object",
					Description: safeStr(rb.Value.Description),
				})
			}

			if err := checkPathPlaceholders(op); err != nil {
				return nil, err
			}
			if prev, dup := t.ops[op.ID]; dup {
				return nil, &SpecError{
					Code:     ValidationError,
					Message:  fmt.Sprintf("spec: duplicate operation ID %q (%s %s and %s %s)", op.ID, strings.ToUpper(string(prev.Method)), prev.Path, strings.ToUpper(string(op.Method)), op.Path),
					Location: s.Name,
				}
			}
			t.ops[op.ID] = op
			t.ids = append(t.ids, op.ID)
		}
	}

	sort.Strings(t.ids)
	return t, nil
}

var nonAlnumRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SynthesizeID derives an operation ID for operations without one:
// the lower-case method, an underscore, then the path with braces dropped and
// every run of non-alphanumeric characters collapsed to one underscore.
// "GET /items/{itemId}" becomes "get_items_itemId"; "GET /" becomes "get_root".
func SynthesizeID(method HttpMethod, path string) string {
	p := strings.NewReplacer("{", "", "}", "").Replace(path)
	p = strings.Trim(nonAlnumRe.ReplaceAllString(p, "_"), "_")
	if p == "" {
		p = "root"
	}
	return strings.ToLower(string(method)) + "_" + p
}

// mergeParameters combines path-level and operation-level parameters.
// Operation-level entries replace path-level ones with the same in+name
// in place; new ones are appended. Cookie parameters are not dispatched.
func mergeParameters(pathLevel, opLevel openapi3.Parameters) []Parameter {
	var out []Parameter
	index := make(map[string]int)
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			pm, ok := toParameter(ref)
			if !ok {
				continue
			}
			k := paramKey(pm.In, pm.Name)
			if i, exists := index[k]; exists {
				out[i] = pm
				continue
			}
			index[k] = len(out)
			out = append(out, pm)
		}
	}
	add(pathLevel)
	add(opLevel)
	return out
}

func toParameter(ref *openapi3.ParameterRef) (Parameter, bool) {
	if ref == nil || ref.Value == nil {
		return Parameter{}, false
	}
	v := ref.Value
	var loc Location
	switch strings.ToLower(v.In) {
	case openapi3.ParameterInPath:
		loc = InPath
	case openapi3.ParameterInQuery:
		loc = InQuery
	case openapi3.ParameterInHeader:
		loc = InHeader
	default:
		return Parameter{}, false
	}
	pm := Parameter{
		Name:        v.Name,
		In:          loc,
		Required:    v.Required || loc == InPath,
		Description: safeStr(v.Description),
	}
	if v.Schema != nil && v.Schema.Value != nil {
		pm.Type = v.Schema.Value.Type
	}
	return pm, true
}

func checkPathPlaceholders(op Operation) error {
	for _, p := range op.ParametersIn(InPath) {
		if !strings.Contains(op.Path, "{"+p.Name+"}") {
			return &SpecError{
				Code:    ValidationError,
				Message: fmt.Sprintf("spec: operation %q declares path parameter %q missing from %s", op.ID, p.Name, op.Path),
			}
		}
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func paramKey(in Location, name string) string { return string(in) + ":" + name }
