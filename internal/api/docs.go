package api

import (
	_ "embed"
	"maps"
	"net/http"
	"strings"
	"sync"

	"github.com/storagekit/storagekit/internal/version"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISource []byte

var openAPIDoc = sync.OnceValues(func() (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPISource, &doc); err != nil {
		return nil, err
	}
	return doc, nil
})

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>StorageKit API - Documentation</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  <style>.swagger-ui .topbar { display: none }</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: "/docs/openapi.json",
      dom_id: "#swagger-ui",
      persistAuthorization: true
    });
  </script>
</body>
</html>
`

func (h *handler) docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsPage))
}

// openAPI serves the embedded document with the running version and the
// server the caller reached listed first, followed by the public URL.
func (h *handler) openAPI(c *gin.Context) {
	doc, err := openAPIDoc()
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	out := maps.Clone(doc)
	info, _ := doc["info"].(map[string]any)
	info = maps.Clone(info)
	if info == nil {
		info = map[string]any{}
	}
	info["version"] = version.Version
	out["info"] = info

	current := requestScheme(c) + "://" + c.Request.Host
	servers := []map[string]string{{"url": current, "description": "Current server"}}
	if pub := strings.TrimRight(h.publicURL, "/"); pub != "" && pub != current {
		servers = append(servers, map[string]string{"url": pub, "description": "Public URL"})
	}
	out["servers"] = servers
	c.JSON(http.StatusOK, out)
}

// requestScheme honours TLS termination at a reverse proxy.
func requestScheme(c *gin.Context) string {
	if c.Request.TLS != nil ||
		strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") ||
		strings.EqualFold(c.GetHeader("X-Forwarded-Ssl"), "on") {
		return "https"
	}
	return "http"
}
