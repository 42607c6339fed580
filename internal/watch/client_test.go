package watch

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ojinta/portfolio/go-services/handlers"
	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/internal/models"
	"github.com/ojinta/portfolio/go-services/internal/sessions"
	"github.com/ojinta/portfolio/go-services/internal/tokens"
	"github.com/ojinta/portfolio/go-services/internal/users"
)

func newServer(t *testing.T, lifetime time.Duration) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	codec, err := tokens.NewCodec([]byte("watch-test-secret-0123456789abcdef"), tokens.WithDuration(lifetime))
	require.NoError(t, err)

	repo := users.NewMemoryUserRepository()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), &models.User{Username: "admin", Email: "admin@example.com", PasswordHash: string(hash), Role: models.RoleAdmin, IsActive: true})
	require.NoError(t, err)

	r := handlers.NewRouter(handlers.RouterDeps{
		Routes: config.RoutesConfig{LoginPath: "/login", AdminPrefix: "/admin", LandingPath: "/admin/dashboard", PublicPath: "/"},
		Codec:  codec,
		Store:  sessions.NewCookieStore(config.SessionCookieName, lifetime, false),
		Users:  users.NewService(repo),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_LoginWhoAmILogout(t *testing.T) {
	srv := newServer(t, time.Hour)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	st, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	require.False(t, st.Valid, "no session yet")

	_, err = c.Login(ctx, "admin", "wrong")
	require.True(t, errors.Is(err, ErrRejected))

	u, err := c.Login(ctx, "admin", "correct")
	require.NoError(t, err)
	require.Equal(t, "admin", u.Username)

	st, err = c.WhoAmI(ctx)
	require.NoError(t, err)
	require.True(t, st.Valid)
	require.Equal(t, "admin", st.User.Username)
	require.InDelta(t, time.Hour.Seconds(), st.Remaining.Seconds(), 2)

	require.NoError(t, c.Logout(ctx))
	st, err = c.WhoAmI(ctx)
	require.NoError(t, err)
	require.False(t, st.Valid)
}

func TestClient_ShortSessionDrivesWatcherIntoWarning(t *testing.T) {
	srv := newServer(t, 9*time.Minute)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = c.Login(ctx, "admin", "correct")
	require.NoError(t, err)

	st, err := c.WhoAmI(ctx)
	require.NoError(t, err)

	w := New(c, newRecorder())
	require.Equal(t, Warning, w.Observe(st))
	countdown := FormatCountdown(w.Remaining())
	require.Contains(t, []string{"9:00", "8:59"}, countdown)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost")
	require.Error(t, err)
}
