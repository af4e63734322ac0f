package rest

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gamma-omg/expense-go/internal/pkg/httpx"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiYAML []byte

var referencePage = template.Must(template.New("reference").Parse(`<!doctype html>
<html>
  <head>
    <title>Expense Tracker API</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
  </head>
  <body>
    <script id="api-reference" data-url="{{.}}"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>
`))

// DocsAPI serves the OpenAPI document and a rendered reference page
type DocsAPI struct {
	doc     map[string]any
	specURL string
	mux     *http.ServeMux
}

// NewDocsAPI parses the embedded document. specURL is where the page loads it from.
func NewDocsAPI(specURL string) (*DocsAPI, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openapiYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}

	api := &DocsAPI{
		doc:     doc,
		specURL: specURL,
		mux:     http.NewServeMux(),
	}
	api.mount()
	return api, nil
}

func (api *DocsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mux.ServeHTTP(w, r)
}

func (api *DocsAPI) mount() {
	api.mux.HandleFunc("GET /openapi", api.handleOpenAPI)
	api.mux.HandleFunc("GET /doc", api.handleReference)
}

func (api *DocsAPI) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := make(map[string]any, len(api.doc)+1)
	for k, v := range api.doc {
		doc[k] = v
	}
	doc["servers"] = []map[string]string{{"url": origin(r)}}

	if err := httpx.WriteJSON(w, http.StatusOK, doc); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
		return
	}
}

func (api *DocsAPI) handleReference(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := referencePage.Execute(w, api.specURL); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("render reference page: %w", err))
		return
	}
}

// origin is the scheme and host the client used to reach us
func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}

	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}

	return scheme + "://" + host
}
