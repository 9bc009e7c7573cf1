package spec

import "github.com/getkin/kin-openapi/openapi3"

// Dispatch model derived from an OpenAPI document. Everything here is built
// once per client and treated as read-only afterwards.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// Location is where a parameter travels in the request.
type Location string

const (
	InPath   Location = "path"
	InQuery  Location = "query"
	InHeader Location = "header"
	InBody   Location = "body"
)

// Spec is a loaded API description keyed by API name.
type Spec struct {
	Name        string
	Title       string
	Version     string
	Description string
	Servers     []Server
	Doc         *openapi3.T
}

// DefaultServerURL returns the first server URL, or "" when none is declared.
func (s *Spec) DefaultServerURL() string {
	if s == nil || len(s.Servers) == 0 {
		return ""
	}
	return s.Servers[0].URL
}

type Server struct {
	URL         string
	Description string
}

// Operation is one method+path entry addressable by ID.
type Operation struct {
	ID          string
	Method      HttpMethod
	Path        string
	Summary     string
	Description string
	Tags        []string
	Parameters  []Parameter
	// Synthesized is set when the document had no operationId and ID was derived.
	Synthesized bool
}

// ParametersIn returns the parameters declared at loc, in declaration order.
func (o Operation) ParametersIn(loc Location) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == loc {
			out = append(out, p)
		}
	}
	return out
}

// HasBody reports whether the operation declares a request body.
func (o Operation) HasBody() bool {
	return len(o.ParametersIn(InBody)) > 0
}

type Parameter struct {
	Name     string
	In       Location
	Required bool
	// Type is the schema type hint (string, integer, ...). Documentation only.
	Type        string
	Description string
}
