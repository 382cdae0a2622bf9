// Command routecheck keeps docs/swagger.yaml honest. By default it compares the
// documented operations with the routes the server registers. With -base and
// -revision it checks that a revised document does not drop anything the base had.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/server"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// Operational endpoints that are deliberately left out of the API document.
var undocumented = map[string]struct{}{
	"/health":    {},
	"/metrics":   {},
	"/swagger/*": {},
}

type operation struct {
	Responses map[string]struct{}
}

type parsedSpec struct {
	Paths map[string]map[string]operation
}

func main() {
	specPath := flag.String("spec", "docs/swagger.yaml", "swagger document to check against the router")
	basePath := flag.String("base", "", "base swagger document for a compatibility check")
	revisionPath := flag.String("revision", "", "revised swagger document for a compatibility check")
	wildcard := flag.String("wildcard", "key", "parameter name documenting a trailing /* route segment")
	flag.Parse()

	var (
		issues []string
		ok     string
	)
	switch {
	case *basePath != "" || *revisionPath != "":
		if strings.TrimSpace(*basePath) == "" || strings.TrimSpace(*revisionPath) == "" {
			fmt.Fprintln(os.Stderr, "usage: routecheck -base <path> -revision <path>")
			os.Exit(2)
		}
		baseSpec, err := loadSpec(*basePath)
		if err != nil {
			fatalf("failed to load base document: %v", err)
		}
		revisionSpec, err := loadSpec(*revisionPath)
		if err != nil {
			fatalf("failed to load revision document: %v", err)
		}
		issues = compare(baseSpec, revisionSpec)
		ok = "backward compatibility check passed"
	default:
		spec, err := loadSpec(*specPath)
		if err != nil {
			fatalf("failed to load %s: %v", *specPath, err)
		}
		issues = checkRoutes(spec, server.RouteTable(&config.Config{Env: "test"}), *wildcard)
		ok = "route table matches " + *specPath
	}

	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "route check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}
	fmt.Println(ok)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func loadSpec(path string) (parsedSpec, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return parsedSpec{}, err
	}
	return parseSpec(raw)
}

func parseSpec(raw []byte) (parsedSpec, error) {
	var doc struct {
		Paths map[string]map[string]struct {
			Responses map[string]any `yaml:"responses"`
		} `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return parsedSpec{}, err
	}
	if doc.Paths == nil {
		return parsedSpec{}, errors.New("missing top-level paths field")
	}

	spec := parsedSpec{Paths: make(map[string]map[string]operation)}
	for pathKey, methods := range doc.Paths {
		ops := make(map[string]operation)
		for methodKey, op := range methods {
			method := strings.ToLower(strings.TrimSpace(methodKey))
			if _, supported := supportedMethods[method]; !supported {
				continue
			}
			responses := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
					responses[code] = struct{}{}
				}
			}
			ops[method] = operation{Responses: responses}
		}
		if len(ops) > 0 {
			spec.Paths[pathKey] = ops
		}
	}
	return spec, nil
}

var fiberParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// swaggerPath rewrites "/post/:id" as "/post/{id}" and "/static/uploads/*" as "/static/uploads/{key}".
func swaggerPath(path, wildcard string) string {
	path = fiberParam.ReplaceAllString(path, "{$1}")
	if strings.HasSuffix(path, "/*") {
		path = strings.TrimSuffix(path, "*") + "{" + wildcard + "}"
	}
	return path
}

func checkRoutes(spec parsedSpec, routes []server.Route, wildcard string) []string {
	var issues []string
	registered := make(map[string]map[string]struct{})

	for _, r := range routes {
		if _, skip := undocumented[r.Path]; skip {
			continue
		}
		path := swaggerPath(r.Path, wildcard)
		method := strings.ToLower(r.Method)
		if registered[path] == nil {
			registered[path] = make(map[string]struct{})
		}
		registered[path][method] = struct{}{}

		if _, ok := spec.Paths[path][method]; !ok {
			issues = append(issues, fmt.Sprintf("undocumented route: %s %s", r.Method, path))
		}
	}

	for path, ops := range spec.Paths {
		for method := range ops {
			if _, ok := registered[path][method]; !ok {
				issues = append(issues, fmt.Sprintf("documented but not routed: %s %s", strings.ToUpper(method), path))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func compare(base, revision parsedSpec) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}

			for responseCode := range baseOp.Responses {
				if _, ok := revOp.Responses[responseCode]; !ok {
					issues = append(issues, fmt.Sprintf(
						"removed response code: %s %s -> %s",
						strings.ToUpper(method), path, strings.ToUpper(responseCode),
					))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}
