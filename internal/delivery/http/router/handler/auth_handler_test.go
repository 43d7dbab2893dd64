package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/config"
	"tally/internal/delivery/http/middleware"
	"tally/internal/delivery/http/router"
	"tally/internal/delivery/http/router/handler"
	"tally/internal/delivery/http/validator"
	"tally/internal/domain/entity"
	domainerrors "tally/internal/domain/errors"
	"tally/internal/domain/service"
	"tally/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stubs ---

type stubAuthUsecase struct {
	registerFn       func(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error)
	loginFn          func(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error)
	refreshFn        func(ctx context.Context, token string) (*usecase.RefreshOutput, error)
	logoutFn         func(ctx context.Context, token string) error
	logoutAllFn      func(ctx context.Context, userID uuid.UUID) error
	meFn             func(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	changePasswordFn func(ctx context.Context, input *usecase.ChangePasswordInput) error
}

func (s *stubAuthUsecase) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	return s.registerFn(ctx, input)
}

func (s *stubAuthUsecase) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	return s.loginFn(ctx, input)
}

func (s *stubAuthUsecase) Refresh(ctx context.Context, token string) (*usecase.RefreshOutput, error) {
	return s.refreshFn(ctx, token)
}

func (s *stubAuthUsecase) Logout(ctx context.Context, token string) error {
	return s.logoutFn(ctx, token)
}

func (s *stubAuthUsecase) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.logoutAllFn(ctx, userID)
}

func (s *stubAuthUsecase) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.meFn(ctx, userID)
}

func (s *stubAuthUsecase) ChangePassword(ctx context.Context, input *usecase.ChangePasswordInput) error {
	return s.changePasswordFn(ctx, input)
}

type stubSessionUsecase struct {
	listFn      func(ctx context.Context, userID uuid.UUID) ([]*entity.SessionInfo, error)
	revokeFn    func(ctx context.Context, userID, sessionID uuid.UUID) error
	revokeAllFn func(ctx context.Context, userID uuid.UUID) error
	cleanupFn   func(ctx context.Context) (int64, error)
}

func (s *stubSessionUsecase) ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.SessionInfo, error) {
	return s.listFn(ctx, userID)
}

func (s *stubSessionUsecase) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.revokeFn(ctx, userID, sessionID)
}

func (s *stubSessionUsecase) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.revokeAllFn(ctx, userID)
}

func (s *stubSessionUsecase) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.cleanupFn(ctx)
}

type stubTokenService struct {
	userID uuid.UUID
}

func (s *stubTokenService) IssueAccessToken(uuid.UUID, entity.Role) (string, error)  { return "", nil }
func (s *stubTokenService) IssueRefreshToken(uuid.UUID, entity.Role) (string, error) { return "", nil }
func (s *stubTokenService) VerifyAccessToken(token string) (*service.Claims, error) {
	if token != "valid-access" {
		return nil, service.ErrSignatureInvalid
	}

	return &service.Claims{UserID: s.userID, Role: entity.RoleOwner, Type: "access"}, nil
}
func (s *stubTokenService) VerifyRefreshToken(string) (*service.Claims, error) {
	return nil, service.ErrSignatureInvalid
}
func (s *stubTokenService) AccessTokenDuration() time.Duration  { return 15 * time.Minute }
func (s *stubTokenService) RefreshTokenDuration() time.Duration { return 360 * time.Hour }

// --- fixture ---

type serverFixture struct {
	e      *echo.Echo
	auth   *stubAuthUsecase
	sess   *stubSessionUsecase
	userID uuid.UUID
}

func newServerFixture() *serverFixture {
	cfg := &config.Config{}
	cfg.Env.Env = "test"
	cfg.Auth = &config.AuthConfig{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 360 * time.Hour,
		CookieName:      "refreshToken",
	}

	userID := uuid.New()
	tokenSvc := &stubTokenService{userID: userID}
	authUC := &stubAuthUsecase{}
	sessUC := &stubSessionUsecase{}
	logger := slog.Default()

	e := echo.New()
	e.Validator = validator.New()
	e.HTTPErrorHandler = middleware.NewErrorMiddleware(logger).HandleHTTPError

	r := router.NewRouter(router.RouterParams{
		AuthHandler:    handler.NewAuthHandler(authUC, tokenSvc, cfg, logger),
		SessionHandler: handler.NewSessionHandler(sessUC, cfg, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(tokenSvc, logger),
		RateLimit:      middleware.NewRateLimitMiddleware(cfg, nil, logger),
	})
	r.RegisterRoutes(e)

	return &serverFixture{e: e, auth: authUC, sess: sessUC, userID: userID}
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "refreshToken" {
			return cookie
		}
	}
	t.Fatal("refreshToken cookie not set")

	return nil
}

// --- tests ---

func TestLogin_SetsRefreshCookie(t *testing.T) {
	f := newServerFixture()
	f.auth.loginFn = func(_ context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
		assert.Equal(t, "owner@example.com", input.Email)

		return &usecase.LoginOutput{
			AccessToken:  "access-jwt",
			RefreshToken: "refresh-jwt",
			User:         &entity.User{ID: f.userID, Email: input.Email, Role: entity.RoleOwner},
		}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@example.com","password":"correct-horse"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken":"access-jwt"`)
	assert.NotContains(t, rec.Body.String(), "refresh-jwt")

	cookie := refreshCookie(t, rec)
	assert.Equal(t, "refresh-jwt", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure) // not production
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((360 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newServerFixture()
	f.auth.loginFn = func(context.Context, *usecase.LoginInput) (*usecase.LoginOutput, error) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"owner@example.com","password":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
}

func TestRefresh_NoCookie(t *testing.T) {
	f := newServerFixture()

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"No refresh token"}`, rec.Body.String())
}

func TestRefresh_RotatesCookie(t *testing.T) {
	f := newServerFixture()
	f.auth.refreshFn = func(_ context.Context, token string) (*usecase.RefreshOutput, error) {
		assert.Equal(t, "old-refresh", token)

		return &usecase.RefreshOutput{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "old-refresh"})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken":"new-access"`)
	assert.Equal(t, "new-refresh", refreshCookie(t, rec).Value)
}

func TestRefresh_ReuseClearsCookie(t *testing.T) {
	f := newServerFixture()
	f.auth.refreshFn = func(context.Context, string) (*usecase.RefreshOutput, error) {
		return nil, domainerrors.ErrTokenReuse
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "stale"})
	rec := f.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"Refresh token reuse detected. All sessions revoked."}`, rec.Body.String())

	cookie := refreshCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	f := newServerFixture()
	f.auth.logoutFn = func(context.Context, string) error { return nil }

	// With a cookie.
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "whatever"})
	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Negative(t, refreshCookie(t, rec).MaxAge)

	// Without one.
	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	f := newServerFixture()

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/auth/logout-all"},
		{http.MethodGet, "/auth/sessions"},
		{http.MethodPost, "/auth/revoke/" + uuid.NewString()},
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/auth/password"},
	} {
		rec := f.do(httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestListSessions(t *testing.T) {
	f := newServerFixture()
	sessionID := uuid.New()
	f.sess.listFn = func(_ context.Context, userID uuid.UUID) ([]*entity.SessionInfo, error) {
		assert.Equal(t, f.userID, userID)

		return []*entity.SessionInfo{{ID: sessionID, Device: "Firefox on Linux"}}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer valid-access")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sessionID.String())
	assert.Contains(t, rec.Body.String(), "Firefox on Linux")
}

func TestRevokeSession_BadID(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodPost, "/auth/revoke/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer valid-access")
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeSession_Idempotent(t *testing.T) {
	f := newServerFixture()
	calls := 0
	f.sess.revokeFn = func(context.Context, uuid.UUID, uuid.UUID) error {
		calls++

		return nil
	}

	target := uuid.NewString()
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/auth/revoke/"+target, nil)
		req.Header.Set("Authorization", "Bearer valid-access")
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, calls)
}

func TestRevokeSession_ClearsRefreshCookie(t *testing.T) {
	f := newServerFixture()
	f.sess.revokeFn = func(context.Context, uuid.UUID, uuid.UUID) error { return nil }

	req := httptest.NewRequest(http.MethodPost, "/auth/revoke/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer valid-access")
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "maybe-the-revoked-one"})
	rec := f.do(req)

	// The revoked session may belong to the calling device, so its cookie
	// goes too.
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := refreshCookie(t, rec)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestMe_NotFound(t *testing.T) {
	f := newServerFixture()
	f.auth.meFn = func(context.Context, uuid.UUID) (*entity.User, error) {
		return nil, domainerrors.ErrUserNotFound
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer valid-access")
	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"User not found"}`, rec.Body.String())
}
