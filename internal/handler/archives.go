package handler

import (
	"encoding/base64"
	"sort"
	"strings"
)

// Archives tidies archive payloads: file listings come back sorted and
// base64-encoded file contents are decoded.
type Archives struct{}

func (Archives) PostProcess(_ string, result any) (any, error) {
	switch v := result.(type) {
	case []any:
		return sortedListing(v), nil
	case map[string]any:
		return decodeContents(v), nil
	}
	return result, nil
}

func sortedListing(items []any) []any {
	names := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return items
		}
		names = append(names, s)
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func decodeContents(m map[string]any) map[string]any {
	enc, _ := m["encoding"].(string)
	raw, ok := m["contents"].(string)
	if !ok || !strings.EqualFold(enc, "base64") {
		return m
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	out["contents"] = string(decoded)
	out["encoding"] = "utf-8"
	return out
}
