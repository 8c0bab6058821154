// Package swagger serves the OpenAPI document and a ReDoc page rendering it.
package swagger

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"go.yaml.in/yaml/v3"
)

// redocScript is the pinned ReDoc bundle loaded by the docs page.
const redocScript = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

//go:embed openapi.yaml
var openAPI []byte

// Info is the info block of the OpenAPI document.
type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// Document returns the raw OpenAPI YAML.
func Document() []byte { return openAPI }

// ParseInfo reads the info block of an OpenAPI document.
func ParseInfo(doc []byte) (Info, error) {
	var head struct {
		Info Info `yaml:"info"`
	}
	if err := yaml.Unmarshal(doc, &head); err != nil {
		return Info{}, fmt.Errorf("parse openapi: %w", err)
	}
	if head.Info.Title == "" {
		return Info{}, fmt.Errorf("parse openapi: info.title is empty")
	}
	return head.Info, nil
}

var page = template.Must(template.New("docs").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}} {{.Version}}</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="{{.Script}}"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`))

// Register attaches the documentation routes to mux:
//
//	GET /api-docs      ReDoc page
//	GET /openapi.yaml  embedded OpenAPI document
//
// It panics when the embedded document has no usable info block.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	info, err := ParseInfo(openAPI)
	if err != nil {
		panic(err)
	}

	var html bytes.Buffer
	if err := page.Execute(&html, struct {
		Info
		Script string
	}{info, redocScript}); err != nil {
		panic(err)
	}

	mux.Handle("GET /api-docs", static("text/html; charset=utf-8", html.Bytes()))
	mux.Handle("GET /openapi.yaml", static("application/yaml; charset=utf-8", openAPI))
}

func static(contentType string, body []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	})
}
