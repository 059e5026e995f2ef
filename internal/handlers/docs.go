// docs.go serves the API reference.
//
// openapi.yaml is maintained by hand next to the handlers and compiled
// into the binary, so the reference always matches the routes it ships
// with. /api/docs renders it with Swagger UI loaded from jsDelivr.
package handlers

import (
	"bytes"
	_ "embed"
	"html/template"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var openAPIDocument []byte

const openAPIPath = "/api/docs/openapi.yaml"

// swaggerPage is rendered once; only the title and document URL vary.
var swaggerPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>body { margin: 0; } .swagger-ui .topbar { display: none; }</style>
</head>
<body>
  <div id="docs"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: '#docs',
      filter: true,
      tryItOutEnabled: true,
      docExpansion: 'list',
    });
  </script>
</body>
</html>`))

var renderedDocs = func() []byte {
	var buf bytes.Buffer
	err := swaggerPage.Execute(&buf, struct{ Title, SpecURL string }{
		Title:   "Holo Search API " + Version + " reference",
		SpecURL: openAPIPath,
	})
	if err != nil {
		log.Printf("❌ Failed to render docs page: %v", err)
	}
	return buf.Bytes()
}()

// ServeOpenAPISpec returns the embedded OpenAPI document.
// GET /api/docs/openapi.yaml
func (h *Handler) ServeOpenAPISpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPIDocument)
}

// ServeSwaggerUI returns the interactive reference page.
// GET /api/docs
func (h *Handler) ServeSwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", renderedDocs)
}
