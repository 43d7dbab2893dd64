// Package session is the Go client for the authentication service. It owns
// the access token for one logged-in user and refreshes it transparently
// when the server answers 401.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const refreshFlightKey = "refresh"

// ErrSessionExpired is returned when a refresh attempt fails and the session
// can no longer be recovered without a fresh login.
var ErrSessionExpired = errors.New("session expired")

// ErrNotLoggedIn is returned by requests made before Login succeeds.
var ErrNotLoggedIn = errors.New("not logged in")

// User is the server's public projection of the logged-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session holds one user's authentication state: the in-memory access token
// and, via the cookie jar, the httpOnly refresh cookie. The access token is
// never persisted.
//
// A Session is safe for concurrent use. When several in-flight requests hit
// 401 at once, exactly one refresh runs; the rest wait for its outcome.
type Session struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	accessToken string
	user        *User

	refreshGroup singleflight.Group

	// onExpired is invoked once per refresh failure, after the session
	// state is cleared. The application typically redirects to login.
	onExpired func()
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the underlying HTTP client. A cookie jar is installed
// on it if absent, since the refresh cookie must survive between calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// WithOnSessionExpired registers the callback fired when a refresh fails and
// the session is cleared.
func WithOnSessionExpired(fn func()) Option {
	return func(s *Session) {
		s.onExpired = fn
	}
}

// New constructs a Session for the service at baseURL.
func New(baseURL string, opts ...Option) (*Session, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "invalid base url")
	}

	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create cookie jar")
		}
		s.client.Jar = jar
	}

	return s, nil
}

// Login authenticates with the service and stores the returned access token.
// A 401 here means bad credentials and is never retried through refresh.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "login request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
		User        *User  `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode login response")
	}

	s.mu.Lock()
	s.accessToken = payload.AccessToken
	s.user = payload.User
	s.mu.Unlock()

	return payload.User, nil
}

// Logout ends the current session server-side and clears local state.
func (s *Session) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/logout", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build logout request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "logout request failed")
	}
	resp.Body.Close()

	s.clear()

	return nil
}

// User returns the logged-in user's projection, or nil before login.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.user
}

// AccessToken returns the current access token. Primarily useful in tests.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accessToken
}

// Do performs an authenticated request against the service. The path is
// relative to the base URL. On a 401 the session refreshes its token (one
// flight shared across concurrent callers) and retries the request once.
func (s *Session) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	token := s.AccessToken()
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	newToken, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}

	// Exactly one retry with the refreshed token; a second 401 is the
	// caller's problem, not grounds for another refresh loop.
	return s.send(ctx, method, path, body, newToken)
}

// refresh coalesces concurrent refresh attempts into a single flight and
// hands every waiter the same outcome.
func (s *Session) refresh(ctx context.Context) (string, error) {
	result, err, _ := s.refreshGroup.Do(refreshFlightKey, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/refresh", nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build refresh request")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "refresh request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			s.expire()

			return nil, ErrSessionExpired
		}

		var payload struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, errors.Wrap(err, "failed to decode refresh response")
		}

		s.mu.Lock()
		s.accessToken = payload.AccessToken
		s.mu.Unlock()

		return payload.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (s *Session) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}

	return resp, nil
}

func (s *Session) expire() {
	s.clear()
	if s.onExpired != nil {
		s.onExpired()
	}
}

func (s *Session) clear() {
	s.mu.Lock()
	s.accessToken = ""
	s.user = nil
	s.mu.Unlock()
}

func apiError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Message == "" {
		return errors.Errorf("request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("%s (status %d)", payload.Message, resp.StatusCode)
}
