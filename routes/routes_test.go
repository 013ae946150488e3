package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/emergency-console/app"
	"github.com/upb/emergency-console/config"
	"go.uber.org/zap"
)

const demoPassword = "emergency123"

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Session: config.SessionConfig{
			CookieName:    "ec_session",
			Secret:        "routes-test-secret-with-enough-bytes",
			SigningMethod: config.SigningHS256,
			TTL:           time.Hour,
			Issuer:        "emergency-console-test",
		},
		Routes: config.RoutesConfig{
			LoginPath:      "/login",
			DefaultPath:    "/dashboard",
			PublicPaths:    []string{"/login", "/healthz", "/readyz", "/api/auth/login"},
			PublicPrefixes: []string{"/static"},
		},
		Store: config.StoreConfig{
			Backend:      config.StoreMemory,
			SeedDemo:     true,
			DemoPassword: demoPassword,
		},
		Throttle: config.ThrottleConfig{
			MaxFailures:     3,
			Window:          time.Minute,
			CleanupInterval: time.Minute,
		},
		Audit: config.AuditConfig{BufferSize: 100, Workers: 1},
		CORS:  config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, deps.Start(ctx))
	t.Cleanup(func() { _ = deps.Close(context.Background()) })
	return SetupRoutes(deps)
}

func login(t *testing.T, h http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, h http.Handler, email string) *http.Cookie {
	t.Helper()
	w := login(t, h, email, demoPassword)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == "ec_session" {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func get(h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t)

	t.Run("liveness", func(t *testing.T) {
		w := get(h, "/healthz", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), `"healthy"`)
	})

	t.Run("readiness with memory store", func(t *testing.T) {
		w := get(h, "/readyz", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ready"`)
	})
}

func TestLoginFlow(t *testing.T) {
	h := newTestRouter(t)

	t.Run("success sets a strict http-only cookie", func(t *testing.T) {
		w := login(t, h, "manager@emergency.city.gov", demoPassword)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Data struct {
				User struct {
					Email string `json:"email"`
					Role  string `json:"role"`
				} `json:"user"`
				Permissions []string `json:"permissions"`
				RedirectTo  string   `json:"redirect_to"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "manager", body.Data.User.Role)
		assert.Contains(t, body.Data.Permissions, "view:users")
		assert.Equal(t, "/dashboard", body.Data.RedirectTo)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
		assert.Equal(t, 3600, cookies[0].MaxAge)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong := login(t, h, "responder@emergency.city.gov", "nope")
		unknown := login(t, h, "ghost@emergency.city.gov", "nope")

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, wrong.Code, unknown.Code)
		assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
		assert.Contains(t, wrong.Body.String(), "invalid_credentials")
	})

	t.Run("invalid body is rejected", func(t *testing.T) {
		w := login(t, h, "not-an-email", demoPassword)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("repeated failures are throttled", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			login(t, h, "resident@emergency.city.gov", "wrong")
		}
		w := login(t, h, "resident@emergency.city.gov", demoPassword)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})
}

func TestSessionEndpoints(t *testing.T) {
	h := newTestRouter(t)

	t.Run("session requires a cookie", func(t *testing.T) {
		w := get(h, "/api/auth/session", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("session returns the signed-in user", func(t *testing.T) {
		cookie := sessionCookie(t, h, "responder@emergency.city.gov")
		w := get(h, "/api/auth/session", cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "responder@emergency.city.gov")
		assert.Contains(t, w.Body.String(), "manage:incidents")
	})

	t.Run("bearer token is accepted on the API", func(t *testing.T) {
		cookie := sessionCookie(t, h, "responder@emergency.city.gov")
		req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
		req.Header.Set("Authorization", "Bearer "+cookie.Value)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("profile update", func(t *testing.T) {
		cookie := sessionCookie(t, h, "resident@emergency.city.gov")
		req := httptest.NewRequest(http.MethodPatch, "/api/auth/profile", strings.NewReader(`{"name":"Samira Resident"}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Samira Resident")
	})

	t.Run("logout clears the cookie without a session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})
}

func TestDashboardGuard(t *testing.T) {
	h := newTestRouter(t)

	t.Run("anonymous visitor is sent to login with a callback", func(t *testing.T) {
		w := get(h, "/dashboard/incidents", nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?callbackUrl=%2Fdashboard%2Fincidents", w.Header().Get("Location"))
	})

	t.Run("login page is public", func(t *testing.T) {
		w := get(h, "/login?callbackUrl=%2Fdashboard%2Fincidents", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `value="/dashboard/incidents"`)
	})

	responder := sessionCookie(t, h, "responder@emergency.city.gov")

	t.Run("allowed section renders", func(t *testing.T) {
		w := get(h, "/dashboard/incidents/42", responder)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "<h1>Incidents</h1>")
	})

	t.Run("forbidden section redirects to the default page", func(t *testing.T) {
		w := get(h, "/dashboard/analytics", responder)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	})

	t.Run("dot segments cannot climb out of an allowed section", func(t *testing.T) {
		resident := sessionCookie(t, h, "resident@emergency.city.gov")
		for _, path := range []string{
			"/dashboard/my-reports/../users",
			"/dashboard/my-reports/%2e%2e/users",
			"/dashboard/my-reports/%2E%2E/settings",
		} {
			w := get(h, path, resident)
			assert.Equal(t, http.StatusFound, w.Code, path)
			assert.Equal(t, "/dashboard", w.Header().Get("Location"), path)
		}
	})

	t.Run("default page is always reachable", func(t *testing.T) {
		w := get(h, "/dashboard", responder)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("admin reaches every section", func(t *testing.T) {
		admin := sessionCookie(t, h, "admin@emergency.city.gov")
		w := get(h, "/dashboard/settings", admin)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAdminAPI(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		email  string
		path   string
		status int
	}{
		{"admin lists users", "admin@emergency.city.gov", "/api/v1/users", http.StatusOK},
		{"manager lists users", "manager@emergency.city.gov", "/api/v1/users", http.StatusOK},
		{"responder cannot list users", "responder@emergency.city.gov", "/api/v1/users", http.StatusForbidden},
		{"admin reads roles", "admin@emergency.city.gov", "/api/v1/roles", http.StatusOK},
		{"manager cannot read roles", "manager@emergency.city.gov", "/api/v1/roles", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(h, tt.path, sessionCookie(t, h, tt.email))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	t.Run("anonymous gets 401", func(t *testing.T) {
		w := get(h, "/api/v1/users", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNotFound(t *testing.T) {
	h := newTestRouter(t)

	w := get(h, "/api/v1/unknown", nil)
	// The v1 group authenticates before routing.
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(h, "/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "endpoint not found")
}
