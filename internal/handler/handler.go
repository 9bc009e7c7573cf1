// Package handler selects per-API post-processing of operation results.
package handler

import (
	"sort"
	"strings"
)

// Handler post-processes the decoded result of an operation before it is shown.
type Handler interface {
	PostProcess(operationID string, result any) (any, error)
}

// Func adapts a function to Handler.
type Func func(operationID string, result any) (any, error)

func (f Func) PostProcess(operationID string, result any) (any, error) { return f(operationID, result) }

// Default returns results unchanged.
type Default struct{}

func (Default) PostProcess(_ string, result any) (any, error) { return result, nil }

// Registry maps API names to handlers. Populate it at startup; lookups do not
// lock, so Register must not race with Get.
type Registry struct {
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry returns a registry with the built-in handlers registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		fallback: Default{},
	}
	r.Register("resolver", Resolver{})
	r.Register("archives", Archives{})
	return r
}

// Register installs h for apiName, replacing any previous handler.
func (r *Registry) Register(apiName string, h Handler) {
	if h == nil {
		return
	}
	r.handlers[normalizeName(apiName)] = h
}

// Get returns the handler for apiName, or Default when none is registered.
func (r *Registry) Get(apiName string) Handler {
	if r == nil {
		return Default{}
	}
	if h, ok := r.handlers[normalizeName(apiName)]; ok {
		return h
	}
	return r.fallback
}

// Names lists API names with a dedicated handler.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalizeName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
