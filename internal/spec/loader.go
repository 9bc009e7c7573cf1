package spec

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	invopopyaml "github.com/invopop/yaml"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NotFoundError   ErrorCode = "NotFoundError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

var (
	// ErrSpecNotFound matches any SpecError raised because no document exists for an API name.
	ErrSpecNotFound = errors.New("spec not found")
	// ErrSpecParse matches any SpecError raised because a document could not be parsed or converted.
	ErrSpecParse = errors.New("spec parse error")
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // API name or file name inside the source
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

func (e *SpecError) Is(target error) bool {
	switch target {
	case ErrSpecNotFound:
		return e.Code == NotFoundError
	case ErrSpecParse:
		return e.Code == ParseError || e.Code == ConversionError
	}
	return false
}

// Settings configures loader behavior.
type Settings struct {
	// SpecDir is searched before the bundled documents when set.
	SpecDir string
	// Sources overrides the search path entirely. Mostly for tests.
	Sources []fs.FS
	// StrictValidation fails loading when the document does not validate.
	// By default validation problems are logged and loading continues.
	StrictValidation bool
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{}
}

// Option mutates Settings.
type Option func(*Settings)

func WithSpecDir(dir string) Option          { return func(s *Settings) { s.SpecDir = strings.TrimSpace(dir) } }
func WithSources(sources ...fs.FS) Option    { return func(s *Settings) { s.Sources = sources } }
func WithStrictValidation(strict bool) Option { return func(s *Settings) { s.StrictValidation = strict } }

func (s Settings) sources() []fs.FS {
	if len(s.Sources) > 0 {
		return s.Sources
	}
	var out []fs.FS
	if s.SpecDir != "" {
		out = append(out, os.DirFS(s.SpecDir))
	}
	return append(out, Bundled())
}

var (
	apiNameRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	extensions = []string{".yaml", ".yml", ".json"}
)

// Load finds the document for the named API, parses it and returns the Spec.
// Swagger v2.0 documents are converted to OpenAPI v3 via kin-openapi openapi2conv.
func Load(ctx context.Context, name string, opts ...Option) (*Spec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: API name is empty"}
	}
	if !apiNameRe.MatchString(name) {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: invalid API name %q", name), Location: name}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	raw, file, err := readDocument(settings.sources(), name)
	if err != nil {
		return nil, err
	}

	version, derr := detectSpecVersion(raw)
	if derr != nil {
		return nil, &SpecError{Code: ParseError, Message: derr.Error(), Location: file, Cause: derr}
	}

	var doc *openapi3.T
	switch version {
	case 3:
		loader := openapi3.NewLoader()
		loader.IsExternalRefsAllowed = false
		doc, err = loader.LoadFromData(raw)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse %s: %v", file, err), Location: file, JSONPointer: extractJSONPointer(err), Cause: err}
		}
	case 2:
		if fixed, changed, ferr := mergeV2BodyParameters(raw); ferr == nil && changed {
			slog.Debug("merged swagger v2 body parameters", "api", name, "file", file)
			raw = fixed
		}
		doc, err = convertV2ToV3(raw)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3 %s: %v", file, err), Location: file, Cause: err}
		}
	default:
		return nil, &SpecError{Code: ParseError, Message: "spec: unknown or unsupported OpenAPI/Swagger version", Location: file}
	}

	if err := doc.Validate(ctx); err != nil {
		if settings.StrictValidation && !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, file)
		}
		slog.Warn("spec validation failed, continuing", "api", name, "file", file, "error", err)
	}

	return newSpec(name, doc), nil
}

// Available lists API names that have a document in any source.
func Available(opts ...Option) []string {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	seen := make(map[string]struct{})
	for _, src := range settings.sources() {
		entries, err := fs.ReadDir(src, ".")
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			for _, ext := range extensions {
				if base, ok := strings.CutSuffix(e.Name(), ext); ok && apiNameRe.MatchString(base) {
					seen[base] = struct{}{}
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func readDocument(sources []fs.FS, name string) ([]byte, string, error) {
	for _, src := range sources {
		for _, ext := range extensions {
			file := name + ext
			raw, err := fs.ReadFile(src, file)
			if err == nil {
				return raw, file, nil
			}
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", &SpecError{Code: InputError, Message: fmt.Sprintf("read %s: %v", file, err), Location: file, Cause: err}
		}
	}
	return nil, "", &SpecError{Code: NotFoundError, Message: fmt.Sprintf("spec: no API description found for %q", name), Location: name}
}

func newSpec(name string, doc *openapi3.T) *Spec {
	s := &Spec{Name: name, Doc: doc}
	if doc.Info != nil {
		s.Title = safeStr(doc.Info.Title)
		s.Version = safeStr(doc.Info.Version)
		s.Description = safeStr(doc.Info.Description)
	}
	for _, srv := range doc.Servers {
		if srv == nil || strings.TrimSpace(srv.URL) == "" {
			continue
		}
		s.Servers = append(s.Servers, Server{URL: expandServerURL(srv), Description: safeStr(srv.Description)})
	}
	return s
}

// expandServerURL substitutes server variables with their declared defaults.
func expandServerURL(srv *openapi3.Server) string {
	u := strings.TrimSpace(srv.URL)
	for name, v := range srv.Variables {
		if v == nil {
			continue
		}
		u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
	}
	return strings.TrimSuffix(u, "/")
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// convertV2ToV3 decodes through invopop/yaml so openapi2.T's JSON field names apply.
func convertV2ToV3(data []byte) (*openapi3.T, error) {
	var v2 openapi2.T
	if err := invopopyaml.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors that do not
// affect dispatch, such as unresolved $ref entries.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}

func safeStr(s string) string { return strings.TrimSpace(s) }
