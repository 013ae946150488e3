package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/upb/emergency-console/config"
	"github.com/upb/emergency-console/gate"
	"github.com/upb/emergency-console/middleware"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/session"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// NavItem is one dashboard navigation entry
type NavItem struct {
	Label    string
	Href     string
	Requires gate.Requirement
	Active   bool
}

// Navigation lists every dashboard section in display order
var Navigation = []NavItem{
	{Label: "Overview", Href: "/dashboard", Requires: gate.Require(rbac.PermViewDashboard)},
	{Label: "Incidents", Href: "/dashboard/incidents", Requires: gate.Require(rbac.PermViewIncidents)},
	{Label: "My reports", Href: "/dashboard/my-reports", Requires: gate.Require(rbac.PermReportIncidents)},
	{Label: "Responders", Href: "/dashboard/responders", Requires: gate.Require(rbac.PermViewResponders)},
	{Label: "Reports", Href: "/dashboard/reports", Requires: gate.RequireAny(rbac.PermViewReports, rbac.PermGenerateReports)},
	{Label: "Analytics", Href: "/dashboard/analytics", Requires: gate.Require(rbac.PermViewAnalytics)},
	{Label: "Users", Href: "/dashboard/users", Requires: gate.Require(rbac.PermViewUsers)},
	{Label: "Profile", Href: "/dashboard/profile"},
}

type pageData struct {
	Title       string
	Email       string
	Role        rbac.Role
	Nav         []NavItem
	CallbackURL string
}

// DashboardHandler renders the login page and the dashboard shell
type DashboardHandler struct {
	pages  *template.Template
	routes config.RoutesConfig
	logger *zap.Logger
}

// NewDashboardHandler parses the embedded page templates
func NewDashboardHandler(routes config.RoutesConfig, logger *zap.Logger) (*DashboardHandler, error) {
	pages, err := template.New("pages").Funcs(gate.FuncMap(nil)).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &DashboardHandler{pages: pages, routes: routes, logger: logger}, nil
}

// HandleLoginPage handles GET /login
func (h *DashboardHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", nil, pageData{
		Title:       "Sign in",
		CallbackURL: middleware.SafeCallback(r.URL.Query().Get("callbackUrl"), h.routes.DefaultPath),
	})
}

// HandleDashboard handles GET /dashboard and every page below it. Must run
// behind the route guard.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		http.Redirect(w, r, h.routes.LoginPath, http.StatusFound)
		return
	}

	h.render(w, r, "dashboard", claims, pageData{
		Title: sectionTitle(r.URL.Path, h.routes.DefaultPath),
		Email: claims.Email,
		Role:  claims.Role,
		Nav:   VisibleNav(claims, r.URL.Path),
	})
}

// VisibleNav returns the entries the session may see. An entry needs its
// permission requirement and a path the guard lets the role open.
func VisibleNav(claims *session.Claims, current string) []NavItem {
	visible := make([]NavItem, 0, len(Navigation))
	for _, item := range Navigation {
		if !item.Requires.AllowsClaims(claims) {
			continue
		}
		if item.Href != "/dashboard" && !rbac.PathAllowed(claims.Role, item.Href) {
			continue
		}
		if item.Href == current || (item.Href != "/dashboard" && rbac.MatchPrefix(item.Href, current)) {
			item.Active = true
		}
		visible = append(visible, item)
	}
	return visible
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, name string, claims *session.Claims, data pageData) {
	// html/template refuses Clone after Execute, so the parsed set is only
	// ever executed through clones.
	tmpl, err := h.pages.Clone()
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	tmpl.Funcs(gate.FuncMap(claims))

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *DashboardHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("failed to render page",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func sectionTitle(path, defaultPath string) string {
	rest := strings.Trim(strings.TrimPrefix(path, defaultPath), "/")
	if rest == "" {
		return "Overview"
	}
	first := strings.SplitN(rest, "/", 2)[0]
	words := strings.Split(first, "-")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}
