package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/internal/sessions"
	"github.com/ojinta/portfolio/go-services/internal/tokens"
	"github.com/ojinta/portfolio/go-services/pkg/metrics"
)

var testRoutes = config.RoutesConfig{
	LoginPath:   "/login",
	AdminPrefix: "/admin",
	LandingPath: "/admin/dashboard",
	PublicPath:  "/",
}

type gateFixture struct {
	now   time.Time
	codec *tokens.Codec
	store *sessions.CookieStore
	gate  *Gate
	r     *gin.Engine
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &gateFixture{now: time.Unix(1_700_000_000, 0)}
	codec, err := tokens.NewCodec([]byte("gate-test-secret-0123456789abcdef"), tokens.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.codec = codec
	f.store = sessions.NewCookieStore("admin-session", time.Hour, false)
	f.gate = NewGate(f.codec, f.store, testRoutes)

	r := gin.New()
	r.Use(f.gate.Pages())
	page := func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"path": c.Request.URL.Path, "user": id.Username})
	}
	r.GET("/", page)
	r.GET("/login", page)
	r.GET("/admin", page)
	r.GET("/admin/*rest", page)
	r.GET("/api/projects", page)
	r.GET("/api/auth/me", f.gate.API(), page)
	f.r = r
	return f
}

func (f *gateFixture) token(t *testing.T) string {
	t.Helper()
	tok, _, err := f.codec.Mint(tokens.Identity{UserID: "u1", Username: "admin", Email: "admin@example.com", Role: "ADMIN"})
	require.NoError(t, err)
	return tok
}

func (f *gateFixture) do(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "admin-session", Value: token})
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func TestGate_ProtectedWithoutCookieRedirectsToLogin(t *testing.T) {
	f := newGateFixture(t)
	before := testutil.ToFloat64(metrics.GateDecisions.WithLabelValues("redirect_login"))

	for _, p := range []string{"/admin", "/admin/dashboard", "/admin/projects/42/edit"} {
		w := f.do(p, "")
		require.Equal(t, http.StatusTemporaryRedirect, w.Code, p)
		require.Equal(t, "/login", w.Header().Get("Location"))
		require.NotContains(t, w.Body.String(), `"path"`, "protected content must not leak")
	}
	require.Equal(t, before+3, testutil.ToFloat64(metrics.GateDecisions.WithLabelValues("redirect_login")))
}

func TestGate_ProtectedWithExpiredTokenRedirectsToLogin(t *testing.T) {
	f := newGateFixture(t)
	tok := f.token(t)
	f.now = f.now.Add(time.Hour + time.Second)

	w := f.do("/admin/dashboard", tok)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}

func TestGate_ProtectedWithTamperedTokenRedirectsToLogin(t *testing.T) {
	f := newGateFixture(t)
	tok := f.token(t)

	for _, bad := range []string{tok[:len(tok)-2], tok + "A", "garbage", "a.b.c"} {
		w := f.do("/admin/dashboard", bad)
		require.Equal(t, http.StatusTemporaryRedirect, w.Code)
		require.Equal(t, "/login", w.Header().Get("Location"))
	}
}

func TestGate_ProtectedWithValidTokenProceeds(t *testing.T) {
	f := newGateFixture(t)
	tok := f.token(t)
	// still valid in its final second
	f.now = f.now.Add(time.Hour)

	w := f.do("/admin/dashboard", tok)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "admin", body["user"])
}

func TestGate_LoginPage(t *testing.T) {
	f := newGateFixture(t)
	tok := f.token(t)

	w := f.do("/login", tok)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	require.Equal(t, "/admin/dashboard", w.Header().Get("Location"))

	w = f.do("/login", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do("/login", "not-a-token")
	require.Equal(t, http.StatusOK, w.Code)

	f.now = f.now.Add(2 * time.Hour)
	w = f.do("/login", tok)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGate_PublicAndAPIPathsAreNeverRedirected(t *testing.T) {
	f := newGateFixture(t)
	for _, p := range []string{"/", "/api/projects"} {
		w := f.do(p, "")
		require.Equal(t, http.StatusOK, w.Code, p)
	}
}

func TestGate_Classify(t *testing.T) {
	g := NewGate(nil, nil, testRoutes)
	cases := map[string]pathClass{
		"/":                 classPublic,
		"/projects/x":       classPublic,
		"/administrator":    classPublic,
		"/api/admin/things": classPublic,
		"/login":            classLogin,
		"/admin":            classProtected,
		"/admin/":           classProtected,
		"/admin/settings":   classProtected,
	}
	for path, want := range cases {
		require.Equal(t, want, g.classify(path), path)
	}
}

func TestGate_APIDeniesWithJSON(t *testing.T) {
	f := newGateFixture(t)
	tok := f.token(t)

	w := f.do("/api/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	w = f.do("/api/auth/me", tok)
	require.Equal(t, http.StatusOK, w.Code)

	f.now = f.now.Add(time.Hour + 10*time.Second)
	w = f.do("/api/auth/me", tok)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestGate_AttachesIdentityToRequestContext(t *testing.T) {
	f := newGateFixture(t)
	r := gin.New()
	r.GET("/admin/whoami", f.gate.Pages(), func(c *gin.Context) {
		id, ok := sessions.IdentityFromContext(c.Request.Context())
		require.True(t, ok)
		c.String(http.StatusOK, id.UserID)
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "admin-session", Value: f.token(t)})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", w.Body.String())
}

type panickyVerifier struct{}

func (panickyVerifier) Decode(string) (tokens.SessionClaims, error) { panic("boom") }
func (panickyVerifier) IsExpired(tokens.SessionClaims) bool { return false }

func TestGate_PanicDuringVerificationIsADenial(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := NewGate(panickyVerifier{}, sessions.NewCookieStore("admin-session", time.Hour, false), testRoutes)
	r := gin.New()
	r.Use(g.Pages())
	r.GET("/admin/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "admin-session", Value: "x"})
	w := httptest.NewRecorder()
	require.NotPanics(t, func() { r.ServeHTTP(w, req) })
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	require.Equal(t, "/login", w.Header().Get("Location"))
}
