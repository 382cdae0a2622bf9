package main

import (
	"os"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerPath(t *testing.T) {
	assert.Equal(t, "/post/{id}", swaggerPath("/post/:id", "key"))
	assert.Equal(t, "/static/uploads/{key}", swaggerPath("/static/uploads/*", "key"))
	assert.Equal(t, "/about", swaggerPath("/about", "key"))
}

func TestCheckRoutes(t *testing.T) {
	spec, err := parseSpec([]byte(`
paths:
  /post/{id}:
    get:
      responses:
        "200": {}
  /gone:
    post:
      responses:
        "200": {}
`))
	require.NoError(t, err)

	issues := checkRoutes(spec, []server.Route{
		{Method: "GET", Path: "/post/:id"},
		{Method: "POST", Path: "/like/:id"},
		{Method: "GET", Path: "/health"},
	}, "key")

	assert.Equal(t, []string{
		"documented but not routed: POST /gone",
		"undocumented route: POST /like/{id}",
	}, issues)
}

func TestCompare(t *testing.T) {
	base, err := parseSpec([]byte(`
paths:
  /login:
    post:
      responses:
        "302": {}
        "401": {}
  /about:
    get:
      responses:
        "200": {}
`))
	require.NoError(t, err)
	revision, err := parseSpec([]byte(`
paths:
  /login:
    post:
      responses:
        "302": {}
`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"removed path: /about",
		"removed response code: POST /login -> 401",
	}, compare(base, revision))
	assert.Empty(t, compare(base, base))
}

func TestParseSpec_MissingPaths(t *testing.T) {
	_, err := parseSpec([]byte("swagger: \"2.0\"\n"))
	assert.Error(t, err)
}

func TestCommittedDocsMatchRouter(t *testing.T) {
	raw, err := os.ReadFile("../../docs/swagger.yaml")
	require.NoError(t, err)
	spec, err := parseSpec(raw)
	require.NoError(t, err)

	issues := checkRoutes(spec, server.RouteTable(&config.Config{Env: "test"}), "key")
	assert.Empty(t, issues)
}
