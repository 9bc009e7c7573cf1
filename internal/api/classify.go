package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Classify maps a non-2xx response to an *APIError. It never fails: when the
// body is missing or not a JSON object the message falls back to a
// description of the endpoint and status.
func Classify(method, url string, status int, body []byte) *APIError {
	e := &APIError{
		Kind:       kindFor(status),
		StatusCode: status,
		Method:     strings.ToUpper(method),
		URL:        url,
	}
	e.Message = extractMessage(body)
	if e.Message == "" {
		e.Message = fmt.Sprintf("%s %s returned status %d", e.Method, url, status)
	}
	return e
}

func kindFor(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindHTTP
	}
}

// extractMessage looks for "error" then "message" in a JSON object body.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case map[string]any, []any:
			b, err := json.Marshal(val)
			if err != nil {
				s = fmt.Sprint(val)
			} else {
				s = string(b)
			}
		default:
			s = fmt.Sprint(val)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
