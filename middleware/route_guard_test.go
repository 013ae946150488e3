package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/emergency-console/config"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/services"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testRoutes() config.RoutesConfig {
	return config.RoutesConfig{
		LoginPath:      "/login",
		DefaultPath:    "/dashboard",
		PublicPaths:    []string{"/login", "/healthz", "/readyz", "/api/auth/login"},
		PublicPrefixes: []string{"/static"},
	}
}

func guardRequest(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	return req
}

func TestRouteGuard_PublicPaths(t *testing.T) {
	verifier := new(MockSessionVerifier)
	guard := NewRouteGuard(verifier, nil, testRoutes(), testCookie, zap.NewNop())

	for _, path := range []string{"/login", "/healthz", "/readyz", "/api/auth/login", "/static/app.css"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			guard.Middleware(okHandler(t, nil)).ServeHTTP(w, guardRequest(path, ""))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
	verifier.AssertNotCalled(t, "Session")
}

func TestRouteGuard_RedirectsToLogin(t *testing.T) {
	t.Run("no cookie keeps the original path as callback", func(t *testing.T) {
		guard := NewRouteGuard(new(MockSessionVerifier), nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/dashboard/settings", ""))

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "/dashboard/settings", loc.Query().Get("callbackUrl"))
	})

	t.Run("callback includes the query string", func(t *testing.T) {
		guard := NewRouteGuard(new(MockSessionVerifier), nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/dashboard/incidents?status=open", ""))

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/dashboard/incidents?status=open", loc.Query().Get("callbackUrl"))
	})

	t.Run("invalid token is treated as no token", func(t *testing.T) {
		verifier := new(MockSessionVerifier)
		verifier.On("Session", mock.Anything, "tampered").Return(nil, services.ErrInvalidToken)
		guard := NewRouteGuard(verifier, nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/dashboard", "tampered"))

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "/dashboard", loc.Query().Get("callbackUrl"))
	})

	t.Run("bearer header is not accepted for navigation", func(t *testing.T) {
		verifier := new(MockSessionVerifier)
		guard := NewRouteGuard(verifier, nil, testRoutes(), testCookie, zap.NewNop())

		req := guardRequest("/dashboard", "")
		req.Header.Set("Authorization", "Bearer token")
		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		verifier.AssertNotCalled(t, "Session")
	})
}

func TestRouteGuard_RolePaths(t *testing.T) {
	tests := []struct {
		name     string
		role     rbac.Role
		path     string
		allowed  bool
		redirect string
		audited  string
	}{
		{"admin opens users", rbac.RoleAdmin, "/dashboard/users", true, "", ""},
		{"admin opens settings", rbac.RoleAdmin, "/dashboard/settings/roles", true, "", ""},
		{"resident opens landing", rbac.RoleResident, "/dashboard", true, "", ""},
		{"resident opens own reports", rbac.RoleResident, "/dashboard/my-reports/12", true, "", ""},
		{"resident denied users", rbac.RoleResident, "/dashboard/users", false, "/dashboard", ""},
		{"responder opens incidents", rbac.RoleResponder, "/dashboard/incidents", true, "", ""},
		{"responder denied analytics", rbac.RoleResponder, "/dashboard/analytics", false, "/dashboard", ""},
		{"manager opens analytics", rbac.RoleManager, "/dashboard/analytics", true, "", ""},
		{"manager denied prefix lookalike", rbac.RoleManager, "/dashboard/incidentsx", false, "/dashboard", ""},
		{"manager denied settings", rbac.RoleManager, "/dashboard/settings", false, "/dashboard", ""},
		{"resident dot segments out of own reports", rbac.RoleResident, "/dashboard/my-reports/../users", false, "/dashboard", "/dashboard/users"},
		{"resident encoded dot segments", rbac.RoleResident, "/dashboard/my-reports/%2e%2e/users", false, "/dashboard", "/dashboard/users"},
		{"responder dot segments into analytics", rbac.RoleResponder, "/dashboard/incidents/./../analytics/", false, "/dashboard", "/dashboard/analytics/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockSessionVerifier)
			claims := claimsFor(tt.role)
			verifier.On("Session", mock.Anything, "token").Return(claims, nil)

			audited := tt.path
			if tt.audited != "" {
				audited = tt.audited
			}
			recorder := new(MockAccessRecorder)
			if !tt.allowed {
				recorder.On("RecordAccessDenied", claims, audited, "role_path", mock.Anything).Return()
			}

			guard := NewRouteGuard(verifier, recorder, testRoutes(), testCookie, zap.NewNop())

			called := false
			handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got := GetClaimsFromContext(r.Context())
				require.NotNil(t, got)
				assert.Equal(t, tt.role, got.Role)
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, guardRequest(tt.path, "token"))

			assert.Equal(t, tt.allowed, called)
			if tt.allowed {
				assert.Equal(t, http.StatusOK, w.Code)
			} else {
				assert.Equal(t, http.StatusFound, w.Code)
				assert.Equal(t, tt.redirect, w.Header().Get("Location"))
			}
			recorder.AssertExpectations(t)
		})
	}
}

func TestRouteGuard_CanonicalPaths(t *testing.T) {
	t.Run("allowed path with dot segment redirects to clean form", func(t *testing.T) {
		verifier := new(MockSessionVerifier)
		verifier.On("Session", mock.Anything, "token").Return(claimsFor(rbac.RoleResident), nil)
		guard := NewRouteGuard(verifier, nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/dashboard/my-reports/./12?tab=map", "token"))

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard/my-reports/12?tab=map", w.Header().Get("Location"))
	})

	t.Run("repeated slashes keep the trailing slash", func(t *testing.T) {
		verifier := new(MockSessionVerifier)
		verifier.On("Session", mock.Anything, "token").Return(claimsFor(rbac.RoleResident), nil)
		guard := NewRouteGuard(verifier, nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/dashboard//my-reports/12/", "token"))

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard/my-reports/12/", w.Header().Get("Location"))
	})

	t.Run("public prefix cannot be left with dot segments", func(t *testing.T) {
		verifier := new(MockSessionVerifier)
		guard := NewRouteGuard(verifier, nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/static/../dashboard/users", ""))

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "/dashboard/users", loc.Query().Get("callbackUrl"))
		verifier.AssertNotCalled(t, "Session")
	})

	t.Run("public path is served only in clean form", func(t *testing.T) {
		guard := NewRouteGuard(new(MockSessionVerifier), nil, testRoutes(), testCookie, zap.NewNop())

		w := httptest.NewRecorder()
		guard.Middleware(failHandler(t)).ServeHTTP(w, guardRequest("/static/css/../app.css", ""))

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/static/app.css", w.Header().Get("Location"))
	})
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/dashboard", "/dashboard"},
		{"/dashboard/", "/dashboard/"},
		{"dashboard/incidents", "/dashboard/incidents"},
		{"/dashboard/my-reports/../users", "/dashboard/users"},
		{"/dashboard/./incidents/", "/dashboard/incidents/"},
		{"/dashboard//incidents", "/dashboard/incidents"},
		{"/../../dashboard", "/dashboard"},
		{"/dashboard/..", "/"},
		{"/dashboard/../", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPath(tt.in))
		})
	}
}

func TestSafeCallback(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/dashboard/settings", "/dashboard/settings"},
		{"/dashboard/incidents?status=open", "/dashboard/incidents?status=open"},
		{"", "/dashboard"},
		{"dashboard", "/dashboard"},
		{"//evil.example.com", "/dashboard"},
		{"/\\evil.example.com", "/dashboard"},
		{"https://evil.example.com/x", "/dashboard"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeCallback(tt.raw, "/dashboard"), tt.raw)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(bytes.Repeat([]byte("x"), 4))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-42"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/auth/login", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(4), fields["bytes"])
}
