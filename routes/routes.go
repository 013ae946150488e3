package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/emergency-console/app"
	"github.com/upb/emergency-console/middleware"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	// CORS middleware. Credentials are allowed so browser clients on the
	// listed origins can send the session cookie.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Pages
	r.Get(cfg.Routes.LoginPath, deps.DashboardHandler.HandleLoginPage)
	r.Group(func(r chi.Router) {
		r.Use(deps.RouteGuard.Middleware)
		r.Get(cfg.Routes.DefaultPath, deps.DashboardHandler.HandleDashboard)
		r.Get(cfg.Routes.DefaultPath+"/*", deps.DashboardHandler.HandleDashboard)
	})

	// Session endpoints
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", deps.AuthHandler.HandleLogin)

		r.With(deps.AuthMiddleware.LoadSession).Post("/logout", deps.AuthHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/session", deps.AuthHandler.HandleSession)
			r.Get("/profile", deps.AuthHandler.HandleGetProfile)
			r.Patch("/profile", deps.AuthHandler.HandleUpdateProfile)
		})
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.With(deps.AuthMiddleware.RequirePermission(rbac.PermViewUsers)).
			Get("/users", deps.UserHandler.HandleListUsers)
		r.With(deps.AuthMiddleware.RequirePermission(rbac.PermManageUsers)).
			Get("/roles", deps.UserHandler.HandleListRoles)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
