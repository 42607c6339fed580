package handlers

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
	"github.com/ojinta/portfolio/go-services/pkg/middleware"
)

// Page rendering lives in the frontend; these stubs give the gate real
// routes to protect and keep the service usable on its own.

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
  <head><meta charset="utf-8" /><title>{{.Title}}</title></head>
  <body>
    <h1>{{.Title}}</h1>
    {{if .User}}<p>Signed in as <strong>{{.User}}</strong></p>
    <form method="post" action="/api/auth/logout"><button type="submit">Log out</button></form>{{end}}
    {{if .Failed}}<p role="alert">Sign-in failed.</p>{{end}}
    {{if .Login}}<form id="login" method="post" action="/api/auth/login">
      <input name="username" autocomplete="username" />
      <input name="password" type="password" autocomplete="current-password" />
      <button type="submit">Sign in</button>
    </form>{{end}}
  </body>
</html>`))

type pageData struct {
	Title  string
	User   string
	Login  bool
	Failed bool
}

func renderPage(c *gin.Context, d pageData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := pageTmpl.Execute(c.Writer, d); err != nil {
		logger.Debugf("render page %q: %v", d.Title, err)
	}
}

// RegisterPages mounts the public, login and admin page stubs. The engine
// must already run gate.Pages().
func RegisterPages(r *gin.Engine, routes config.RoutesConfig) {
	r.GET(routes.PublicPath, func(c *gin.Context) {
		renderPage(c, pageData{Title: "Portfolio"})
	})
	r.GET(routes.LoginPath, func(c *gin.Context) {
		renderPage(c, pageData{Title: "Admin login", Login: true, Failed: c.Query("failed") != ""})
	})

	admin := func(c *gin.Context) {
		id, _ := middleware.IdentityFrom(c)
		section := strings.Trim(strings.TrimPrefix(c.Request.URL.Path, routes.AdminPrefix), "/")
		if section == "" {
			section = "dashboard"
		}
		renderPage(c, pageData{Title: "Admin · " + section, User: id.Username})
	}
	prefix := strings.TrimSuffix(routes.AdminPrefix, "/")
	r.GET(prefix, admin)
	r.GET(prefix+"/*section", admin)
}
