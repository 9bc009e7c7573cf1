package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clientTestSpec = `openapi: 3.0.0
info:
  title: Test API
  version: "1.0.0"
servers:
  - url: https://test.example.com/api/v1
paths:
  /test:
    get:
      operationId: getTest
      summary: Get test data
      parameters:
        - name: id
          in: query
          required: true
          schema:
            type: string
        - name: page
          in: query
          schema:
            type: integer
  /items/{itemId}:
    get:
      operationId: getItem
      summary: Get item by ID
      parameters:
        - name: itemId
          in: path
          required: true
          schema:
            type: string
    post:
      operationId: updateItem
      parameters:
        - name: itemId
          in: path
          required: true
          schema:
            type: string
        - name: X-Request-Id
          in: header
          schema:
            type: string
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
`

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) EnvLookup {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func loadTestSpec(t *testing.T) *spec.Spec {
	t.Helper()
	src := fstest.MapFS{"test_api.yaml": &fstest.MapFile{Data: []byte(clientTestSpec)}}
	s, err := spec.Load(context.Background(), "test_api", spec.WithSources(src))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	all := append([]Option{WithEnvLookup(noEnv)}, opts...)
	if baseURL != "" {
		all = append(all, WithBaseURL(baseURL))
	}
	c, err := NewFromSpec(loadTestSpec(t), all...)
	require.NoError(t, err)
	return c
}

// countingServer responds with status/body and counts requests.
func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNewFromSpec_Defaults(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, "")

	assert.Equal(t, "test_api", c.API)
	assert.Equal(t, "https://test.example.com/api/v1", c.BaseURL)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, 20*time.Second, c.HTTP.Timeout)
	assert.Equal(t, "ecosystems-cli (1.0.0)", c.UserAgent)
	assert.Equal(t, []string{"getItem", "getTest", "updateItem"}, c.Table.IDs())
	assert.Len(t, c.Operations(), 3)
}

func TestNewFromSpec_Overrides(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, "https://custom.example.com", WithTimeout(5*time.Second))

	assert.Equal(t, "https://custom.example.com", c.BaseURL)
	assert.Equal(t, 5*time.Second, c.HTTP.Timeout)
}

func TestNew_LoadsBundledSpec(t *testing.T) {
	t.Parallel()
	c, err := New(context.Background(), "packages", WithEnvLookup(noEnv))
	require.NoError(t, err)
	assert.Equal(t, "https://packages.ecosyste.ms/api/v1", c.BaseURL)

	_, ok := c.Table.Lookup("getRegistries")
	assert.True(t, ok)

	_, err = New(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, spec.ErrSpecNotFound)
}

func TestCall_Success(t *testing.T) {
	t.Parallel()
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		_, _ = io.WriteString(w, `{"data": "test"}`)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL+"/api/v1")
	result, err := c.Call(context.Background(), "getTest", Request{QueryParams: map[string]string{"id": "123", "page": ""}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"data": "test"}, result)
	got := <-reqs
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/v1/test", got.URL.Path)
	assert.Equal(t, "id=123", got.URL.RawQuery)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "ecosystems-cli (1.0.0)", got.Header.Get("User-Agent"))
}

func TestCall_PathParameterEscaped(t *testing.T) {
	t.Parallel()
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		_, _ = io.WriteString(w, `[1, 2]`)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	result, err := c.Call(context.Background(), "getItem", Request{PathParams: map[string]string{"itemId": "a b/c"}})
	require.NoError(t, err)

	assert.Equal(t, "/items/a%20b%2Fc", <-paths)
	assert.Equal(t, []any{float64(1), float64(2)}, result)
}

func TestCall_BodyAndHeaders(t *testing.T) {
	t.Parallel()
	type seen struct {
		method string
		reqID  string
		body   map[string]any
	}
	reqs := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		reqs <- seen{method: r.Method, reqID: r.Header.Get("X-Request-Id"), body: body}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ok": true}`)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	resp, err := c.Do(context.Background(), "updateItem", Request{
		PathParams: map[string]string{"itemId": "7"},
		Headers:    map[string]string{"X-Request-Id": "abc"},
		Body:       map[string]any{"name": "widget"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]any{"ok": true}, resp.Data)
	got := <-reqs
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "abc", got.reqID)
	assert.Equal(t, map[string]any{"name": "widget"}, got.body)
}

func TestCall_InvalidOperationMakesNoRequest(t *testing.T) {
	t.Parallel()
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Call(context.Background(), "invalidOp", Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Contains(t, err.Error(), "Invalid operation: invalidOp")
	assert.Zero(t, atomic.LoadInt32(hits))

	_, err = c.Call(context.Background(), "getItm", Request{})
	var invalid *InvalidOperationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Suggestions, "getItem")
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestCall_MissingParametersMakeNoRequest(t *testing.T) {
	t.Parallel()
	srv, hits := countingServer(t, http.StatusOK, `{}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Call(context.Background(), "getItem", Request{})
	assert.ErrorIs(t, err, ErrMissingPathParameter)
	var missingPath *MissingPathParameterError
	require.ErrorAs(t, err, &missingPath)
	assert.Equal(t, "itemId", missingPath.Name)

	_, err = c.Call(context.Background(), "getTest", Request{})
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "id", missing.Name)
	assert.Equal(t, "query", missing.In)

	_, err = c.Call(context.Background(), "updateItem", Request{PathParams: map[string]string{"itemId": "1"}})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "body", missing.In)

	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestCall_ErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains []string
	}{
		{"authentication", 401, `{"error": "Invalid API key"}`, ErrAuthentication, []string{"Invalid API key"}},
		{"not found", 404, `{"message": "Resource not found"}`, ErrNotFound, []string{"Resource not found"}},
		{"server with message", 500, `{"error": "internal server error"}`, ErrServer, []string{"Server error at", "internal server error"}},
		{"server unparsable", 500, `<html>oops</html>`, ErrServer, []string{"Server error at", "returned status 500"}},
		{"server invalid json", 503, `not json`, ErrServer, []string{"Server error at"}},
		{"other", 400, `{"error": "Bad request"}`, ErrHTTP, []string{"Bad request", "HTTP error 400"}},
		{"forbidden empty", 403, ``, ErrHTTP, []string{"returned status 403"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := countingServer(t, tt.status, tt.body)
			c := newTestClient(t, srv.URL)

			_, err := c.Call(context.Background(), "getTest", Request{QueryParams: map[string]string{"id": "1"}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.status, StatusCode(err))
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestCall_UnparsableSuccessBodyReturnedRaw(t *testing.T) {
	t.Parallel()
	srv, _ := countingServer(t, http.StatusOK, "plain text payload")
	c := newTestClient(t, srv.URL)

	result, err := c.Call(context.Background(), "getTest", Request{QueryParams: map[string]string{"id": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "plain text payload", result)
}

func TestCall_EmptySuccessBody(t *testing.T) {
	t.Parallel()
	srv, _ := countingServer(t, http.StatusNoContent, "")
	c := newTestClient(t, srv.URL)

	result, err := c.Call(context.Background(), "getTest", Request{QueryParams: map[string]string{"id": "1"}})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCall_NetworkErrors(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := newTestClient(t, url)
		_, err := c.Call(context.Background(), "getTest", Request{QueryParams: map[string]string{"id": "1"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNetwork)
		assert.Zero(t, StatusCode(err))
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		c := newTestClient(t, srv.URL, WithTimeout(50*time.Millisecond))
		_, err := c.Call(context.Background(), "getTest", Request{QueryParams: map[string]string{"id": "1"}})
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, http.MethodGet, netErr.Method)
	})
}

func TestCall_DomainPrecedence(t *testing.T) {
	t.Parallel()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, `{"path": "`+r.URL.Path+`"}`)
	}))
	t.Cleanup(srv.Close)

	// Call-time domain with a scheme is used verbatim.
	c := newTestClient(t, "https://unused.invalid")
	result, err := c.Call(context.Background(), "getItem", Request{
		PathParams: map[string]string{"itemId": "9"},
		Domain:     srv.URL + "/custom/path",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/custom/path/items/9"}, result)

	// The general environment override beats the call-time domain.
	c = newTestClient(t, "", WithEnvLookup(envMap(map[string]string{EnvDomain: srv.URL + "/env"})))
	result, err = c.Call(context.Background(), "getItem", Request{
		PathParams: map[string]string{"itemId": "9"},
		Domain:     "param.invalid",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/env/items/9"}, result)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRequiredParameters_Client(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, "")

	params, err := c.RequiredParameters("getTest")
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "id", params[0].Name)

	_, err = c.RequiredParameters("missing")
	assert.True(t, errors.Is(err, ErrInvalidOperation))
}

func TestDo_NoBaseURL(t *testing.T) {
	t.Parallel()
	src := fstest.MapFS{"bare.yaml": &fstest.MapFile{Data: []byte("openapi: 3.0.0\ninfo: {title: Bare, version: '1'}\npaths:\n  /x:\n    get:\n      operationId: x\n      responses: {'200': {description: ok}}\n")}}
	s, err := spec.Load(context.Background(), "bare", spec.WithSources(src))
	require.NoError(t, err)
	c, err := NewFromSpec(s, WithEnvLookup(noEnv))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "x", Request{})
	assert.ErrorIs(t, err, ErrNoBaseURL)
}
