package api

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
)

// Request carries caller-supplied values for a single operation call.
type Request struct {
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string
	// Body is JSON-encoded as is. nil means no body.
	Body any
	// Domain is the call-time host or base URL override.
	Domain string
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// BuildURL joins base and the path template, substituting every {name}
// placeholder with the path-escaped value from pathParams.
func BuildURL(base, template string, pathParams map[string]string) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		name := template[m[2]:m[3]]
		val, ok := pathParams[name]
		if !ok {
			return "", &MissingPathParameterError{Name: name, Template: template}
		}
		b.WriteString(template[last:m[0]])
		b.WriteString(url.PathEscape(val))
		last = m[1]
	}
	b.WriteString(template[last:])

	path := b.String()
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

// Validate checks that every required parameter of op has a value. It runs
// before any network activity. Path parameters are checked by BuildURL.
func (r Request) Validate(op spec.Operation) error {
	for _, p := range spec.RequiredParameters(op) {
		var present bool
		switch p.In {
		case spec.InPath:
			continue
		case spec.InQuery:
			present = hasValue(r.QueryParams, p.Name)
		case spec.InHeader:
			present = hasValue(r.Headers, p.Name)
		case spec.InBody:
			present = r.Body != nil
		}
		if !present {
			return &MissingParameterError{Operation: op.ID, Name: p.Name, In: string(p.In)}
		}
	}
	return nil
}

func hasValue(m map[string]string, key string) bool {
	v, ok := m[key]
	return ok && v != ""
}

// queryString encodes params, omitting empty values. Keys are sorted by url.Values.Encode.
func queryString(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	return values.Encode()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
