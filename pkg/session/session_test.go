package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBackend is a minimal stand-in for the auth service. It accepts one
// credential pair, rotates access tokens on refresh, and serves a protected
// endpoint that checks the bearer token.
type testBackend struct {
	mu           sync.Mutex
	currentToken string
	refreshOK    bool
	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
}

func newTestBackend() (*testBackend, *httptest.Server) {
	b := &testBackend{currentToken: "token-1", refreshOK: true}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.loginCalls.Add(1)

		var creds struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})

			return
		}

		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "refresh-1", Path: "/"})
		b.mu.Lock()
		token := b.currentToken
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": token,
			"user":        map[string]string{"id": "u1", "email": creds.Email, "role": "owner"},
		})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)

		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.refreshOK {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid refresh token"})

			return
		}

		b.currentToken = "token-" + strconv.FormatInt(1+b.refreshCalls.Load(), 10)
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "refresh-2", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": b.currentToken})
	})
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := "Bearer " + b.currentToken
		b.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})

			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"value": "ok"})
	})

	return b, httptest.NewServer(mux)
}

func login(t *testing.T, s *Session) {
	t.Helper()

	user, err := s.Login(context.Background(), "owner@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", user.Email)
}

func TestLogin_BadCredentialsNeverRefreshes(t *testing.T) {
	backend, server := newTestBackend()
	defer server.Close()

	s, err := New(server.URL)
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "owner@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	// A 401 from login is a credential failure, not an expired token.
	assert.Zero(t, backend.refreshCalls.Load())
	assert.Nil(t, s.User())
}

func TestDo_BeforeLogin(t *testing.T) {
	_, server := newTestBackend()
	defer server.Close()

	s, err := New(server.URL)
	require.NoError(t, err)

	_, err = s.Do(context.Background(), http.MethodGet, "/api/data", nil)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestDo_RefreshesOn401AndRetriesOnce(t *testing.T) {
	backend, server := newTestBackend()
	defer server.Close()

	s, err := New(server.URL)
	require.NoError(t, err)
	login(t, s)

	// Invalidate the session's token server-side.
	backend.mu.Lock()
	backend.currentToken = "rotated-elsewhere"
	backend.mu.Unlock()

	resp, err := s.Do(context.Background(), http.MethodGet, "/api/data", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), backend.refreshCalls.Load())
	assert.NotEqual(t, "token-1", s.AccessToken())
}

func TestDo_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	backend, server := newTestBackend()
	defer server.Close()

	s, err := New(server.URL)
	require.NoError(t, err)
	login(t, s)

	backend.mu.Lock()
	backend.currentToken = "rotated-elsewhere"
	backend.mu.Unlock()

	const callers = 8

	var wg sync.WaitGroup
	statuses := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.Do(context.Background(), http.MethodGet, "/api/data", nil)
			if err == nil {
				statuses[i] = resp.StatusCode
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
	// Every caller piggybacked on the same refresh flight.
	assert.Equal(t, int64(1), backend.refreshCalls.Load())
}

func TestDo_FailedRefreshExpiresSession(t *testing.T) {
	backend, server := newTestBackend()
	defer server.Close()

	var expiredCalls atomic.Int64
	s, err := New(server.URL, WithOnSessionExpired(func() {
		expiredCalls.Add(1)
	}))
	require.NoError(t, err)
	login(t, s)

	backend.mu.Lock()
	backend.currentToken = "rotated-elsewhere"
	backend.refreshOK = false
	backend.mu.Unlock()

	_, err = s.Do(context.Background(), http.MethodGet, "/api/data", nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int64(1), expiredCalls.Load())

	// The session is cleared; further calls need a fresh login.
	assert.Empty(t, s.AccessToken())
	assert.Nil(t, s.User())
	_, err = s.Do(context.Background(), http.MethodGet, "/api/data", nil)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLogout_ClearsState(t *testing.T) {
	_, server := newTestBackend()
	defer server.Close()

	s, err := New(server.URL)
	require.NoError(t, err)
	login(t, s)
	require.NotEmpty(t, s.AccessToken())

	require.NoError(t, s.Logout(context.Background()))
	assert.Empty(t, s.AccessToken())
	assert.Nil(t, s.User())
}
