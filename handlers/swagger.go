package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the admin session API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>portfolio-admin - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "portfolio-admin", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "session": { "type": "apiKey", "in": "cookie", "name": "admin-session" } },
    "schemas": {
      "User": { "type": "object", "properties": { "id": {"type":"string"}, "username": {"type":"string"}, "email": {"type":"string"}, "role": {"type":"string"} } },
      "Error": { "type": "object", "properties": { "error": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/auth/login": {
      "post": {
        "summary": "Verify credentials and set the session cookie",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["username","password"],"properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": {
          "200": { "description": "session cookie set; body {success, user, sessionExpiry}" },
          "400": { "description": "username and password are required" },
          "401": { "description": "invalid credentials or account deactivated" },
          "429": { "description": "too many attempts" }
        }
      }
    },
    "/api/auth/logout": {
      "post": { "summary": "Clear the session cookie", "responses": { "200": { "description": "always succeeds" } } }
    },
    "/api/auth/me": {
      "get": {
        "summary": "Current session identity",
        "security": [ { "session": [] } ],
        "responses": {
          "200": { "description": "body {success, user, sessionExpiry, expiresIn}" },
          "401": { "description": "absent, invalid or expired session" }
        }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
