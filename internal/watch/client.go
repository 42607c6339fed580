package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// ErrRejected is returned by Login when the server refused the credentials.
var ErrRejected = errors.New("watch: login rejected")

// User mirrors the "user" object of the auth API.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Status is one whoami answer. Valid is false when the server denied the session.
type Status struct {
	Valid     bool
	User      User
	Remaining time.Duration
	ExpiresAt time.Time
}

type meResponse struct {
	Success       bool   `json:"success"`
	User          User   `json:"user"`
	SessionExpiry int64  `json:"sessionExpiry"`
	ExpiresIn     *int64 `json:"expiresIn"`
	Error         string `json:"error"`
}

// Client talks to the admin auth API and keeps the session cookie in a jar.
type Client struct {
	base *url.URL
	http *http.Client
	now  func() time.Time
}

func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("watch: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("watch: base url %q needs scheme and host", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: u,
		http: &http.Client{
			Jar: jar,
			// the gate answers with redirects; surface them instead of following
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		now: time.Now,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// Login posts credentials; on success the session cookie is stored in the jar.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password})
	if err != nil {
		return User{}, fmt.Errorf("watch: login: %w", err)
	}
	defer resp.Body.Close()

	var body meResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	switch resp.StatusCode {
	case http.StatusOK:
		return body.User, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return User{}, fmt.Errorf("%w: %s", ErrRejected, body.Error)
	default:
		return User{}, fmt.Errorf("watch: login: unexpected status %d", resp.StatusCode)
	}
}

// WhoAmI asks the server whether the session is still valid. A 401 is a
// normal answer (Valid=false), not an error.
func (c *Client) WhoAmI(ctx context.Context) (Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return Status{}, fmt.Errorf("watch: whoami: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return Status{Valid: false}, nil
	default:
		return Status{}, fmt.Errorf("watch: whoami: unexpected status %d", resp.StatusCode)
	}

	var body meResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Status{}, fmt.Errorf("watch: whoami: decode: %w", err)
	}
	st := Status{Valid: body.Success, User: body.User, ExpiresAt: time.Unix(body.SessionExpiry, 0)}
	if body.ExpiresIn != nil {
		st.Remaining = time.Duration(*body.ExpiresIn) * time.Second
	} else {
		st.Remaining = st.ExpiresAt.Sub(c.now())
	}
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	return st, nil
}

// Logout asks the server to clear the cookie. Only transport failures are errors.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if err != nil {
		return fmt.Errorf("watch: logout: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
