package cli

import (
	"bytes"
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/ecosyste-ms/ecosystems-cli/internal/api"
	"github.com/ecosyste-ms/ecosystems-cli/internal/handler"
	"github.com/ecosyste-ms/ecosystems-cli/internal/spec"
)

const itemsSpec = `openapi: 3.0.0
info:
  title: Items API
  version: "1.0.0"
  description: Manage items.
servers:
  - url: https://items.example.com/api/v1
paths:
  /items:
    get:
      operationId: searchItems
      summary: Search items
      parameters:
        - name: q
          in: query
          required: true
          schema:
            type: string
        - name: domain
          in: query
          schema:
            type: string
        - name: X-Trace
          in: header
          schema:
            type: string
    post:
      operationId: createItem
      summary: Create an item
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
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
  /meta/operations:
    get:
      operationId: operations
      summary: Collides with the listing subcommand
`

func noEnv(string) (string, bool) { return "", false }

func testOptions(files map[string]string) Options {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return Options{
		SpecOptions:   []spec.Option{spec.WithSources(fsys)},
		ClientOptions: []api.Option{api.WithEnvLookup(noEnv)},
		Registry:      handler.NewRegistry(),
	}
}

func itemsOptions() Options {
	return testOptions(map[string]string{"items.yaml": itemsSpec})
}

// execute runs the command tree with opts and returns stdout and the error.
// Logs are discarded: the slog default is process-wide and tests run in parallel.
func execute(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := NewRootCmdWith(opts)
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}
