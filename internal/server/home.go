package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"

	"github.com/morezero/mcp-servers/pkg/registry"
)

// homePageTemplate is the HTML status page served to browsers on GET /.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Service}}</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Service}}</h1>
  <p class="meta">Version {{.Version}} &middot; <a href="/docs">API docs</a> &middot; <a href="/metrics">metrics</a></p>

  <section>
    <h2>Status</h2>
    <p>Status: <span class="stat">running</span></p>
    <p>Live SSE sessions: <span class="stat">{{.Sessions}}</span></p>
    <p>Heartbeat interval: {{.Interval}}</p>
  </section>

  <section>
    <h2>Capabilities</h2>
    {{if not .Capabilities}}
    <p>No capabilities registered.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Action</th><th>Endpoint</th><th>Mode</th><th>Required</th><th>Description</th></tr>
      </thead>
      <tbody>
        {{range .Capabilities}}
        <tr>
          <td>{{.Name}}</td>
          <td>POST {{.Path}}</td>
          <td>{{.Mode}}</td>
          <td>{{range .Required}}{{.}} {{end}}</td>
          <td>{{.Description}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// capabilityRow is one capability on the home page.
type capabilityRow struct {
	Name        string
	Path        string
	Mode        string
	Required    []string
	Description string
}

type homeData struct {
	Service      string
	Version      string
	Sessions     int
	Interval     string
	Capabilities []capabilityRow
}

var homeTmpl = template.Must(template.New("home").Parse(homePageTemplate))

func (s *Server) renderHome(w http.ResponseWriter) {
	data := homeData{
		Service:  s.cfg.ServiceName,
		Version:  s.cfg.ServiceVersion,
		Sessions: s.sessions.Active(),
		Interval: s.sessions.Interval().String(),
	}
	paths := s.actionPaths()
	for _, c := range s.disp.Registry().Capabilities() {
		data.Capabilities = append(data.Capabilities, capabilityRow{
			Name:        c.Name,
			Path:        paths[c.Name],
			Mode:        c.Mode.String(),
			Required:    c.Required,
			Description: c.Description,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTmpl.Execute(w, data); err != nil {
		slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// actionPaths maps each action to its service route, falling back to /actions/{action}.
func (s *Server) actionPaths() map[string]string {
	paths := make(map[string]string)
	for _, name := range s.disp.Registry().Names() {
		paths[name] = "/actions/" + name
	}
	for _, r := range s.routes {
		paths[r.Action] = r.Path
	}
	return paths
}

// openAPI3 types for generating a spec from the registry.
type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Post *openAPI3Operation `json:"post,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	Description string                      `json:"description,omitempty"`
	OperationID string                      `json:"operationId"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3RequestBody struct {
	Content map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string                       `json:"description"`
	Content     map[string]openAPI3MediaType `json:"content,omitempty"`
}

type openAPI3MediaType struct {
	Schema map[string]interface{} `json:"schema,omitempty"`
}

var envelopeSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"status", "service", "action"},
	"properties": map[string]interface{}{
		"status":  map[string]interface{}{"type": "string", "enum": []string{"success", "error"}},
		"service": map[string]interface{}{"type": "string"},
		"action":  map[string]interface{}{"type": "string"},
		"data":    map[string]interface{}{},
		"error":   map[string]interface{}{"type": "string"},
		"count":   map[string]interface{}{"type": "integer"},
	},
}

var detailSchema = map[string]interface{}{
	"type":       "object",
	"properties": map[string]interface{}{"detail": map[string]interface{}{"type": "string"}},
}

// buildOpenAPISpec builds an OpenAPI 3.0 spec with one POST path per capability.
func buildOpenAPISpec(title, version string, caps []registry.Capability, paths map[string]string) *openAPI3Spec {
	out := make(map[string]openAPI3PathItem, len(caps))
	for _, c := range caps {
		out[paths[c.Name]] = openAPI3PathItem{
			Post: &openAPI3Operation{
				Summary:     c.Name,
				Description: c.Description,
				OperationID: c.Name,
				RequestBody: &openAPI3RequestBody{
					Content: map[string]openAPI3MediaType{
						"application/json": {Schema: inputSchema(c)},
					},
				},
				Responses: map[string]openAPI3Response{
					"200": {
						Description: "Envelope",
						Content: map[string]openAPI3MediaType{
							"application/json": {Schema: envelopeSchema},
						},
					},
					"400": {
						Description: "Missing required argument",
						Content: map[string]openAPI3MediaType{
							"application/json": {Schema: detailSchema},
						},
					},
				},
			},
		}
	}
	return &openAPI3Spec{
		OpenAPI: "3.0.0",
		Info: openAPI3Info{
			Title:       title,
			Description: fmt.Sprintf("Actions of %s", title),
			Version:     version,
		},
		Paths: out,
	}
}

// inputSchema derives a request schema from required fields and defaults.
func inputSchema(c registry.Capability) map[string]interface{} {
	props := make(map[string]interface{})
	for _, f := range c.Required {
		props[f] = map[string]interface{}{"type": "string"}
	}
	for k, v := range c.Defaults {
		prop := map[string]interface{}{"default": v}
		switch v.(type) {
		case int, int64, float64:
			prop["type"] = "integer"
		case string:
			prop["type"] = "string"
		}
		props[k] = prop
	}
	schema := map[string]interface{}{"type": "object", "properties": props}
	if len(c.Required) > 0 {
		required := append([]string(nil), c.Required...)
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec := buildOpenAPISpec(s.cfg.ServiceName, s.cfg.ServiceVersion, s.disp.Registry().Capabilities(), s.actionPaths())
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, spec)
}

// swaggerUIPage embeds Swagger UI from CDN and loads /openapi.json.
const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>API – {{.Service}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({
        url: "/openapi.json",
        dom_id: "#swagger-ui",
        presets: [
          SwaggerUIBundle.presets.apis,
          SwaggerUIBundle.SwaggerUIStandalonePreset
        ]
      });
    };
  </script>
</body>
</html>
`

var swaggerTmpl = template.Must(template.New("swagger").Parse(swaggerUIPage))

func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := swaggerTmpl.Execute(w, map[string]string{"Service": s.cfg.ServiceName}); err != nil {
		slog.Error(fmt.Sprintf("%s - docs template execute: %v", logPrefix, err))
	}
}
