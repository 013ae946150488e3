package middleware

import (
	"net/http"
	"net/url"
	pathpkg "path"
	"strings"

	"github.com/upb/emergency-console/config"
	"github.com/upb/emergency-console/rbac"
	"go.uber.org/zap"
)

// RouteGuard gates page navigations by cookie session and role path
// prefixes. Failures redirect instead of returning an error status.
type RouteGuard struct {
	verifier SessionVerifier
	recorder AccessRecorder
	routes   config.RoutesConfig
	cookie   string
	logger   *zap.Logger
}

// NewRouteGuard creates a guard reading the session from cookieName
func NewRouteGuard(verifier SessionVerifier, recorder AccessRecorder, routes config.RoutesConfig, cookieName string, logger *zap.Logger) *RouteGuard {
	return &RouteGuard{
		verifier: verifier,
		recorder: recorder,
		routes:   routes,
		cookie:   cookieName,
		logger:   logger,
	}
}

// Middleware applies the guard to next. Decisions are made on the cleaned
// path; a request for a non-canonical path that passes is redirected to the
// canonical form instead of being served.
func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CleanPath(r.URL.Path)
		canonical := path == r.URL.Path

		if g.IsPublic(path) {
			if !canonical {
				g.redirectToCanonical(w, r, path)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		var token string
		if c, err := r.Cookie(g.cookie); err == nil {
			token = c.Value
		}
		if token == "" {
			g.redirectToLogin(w, r, path)
			return
		}

		claims, err := g.verifier.Session(ctx, token)
		if err != nil {
			g.logger.Debug("guard rejected session",
				zap.String("request_id", requestID),
				zap.String("path", path),
				zap.Error(err))
			g.redirectToLogin(w, r, path)
			return
		}

		if !g.Allowed(claims.Role, path) {
			g.logger.Info("guard denied path",
				zap.String("request_id", requestID),
				zap.String("user_id", claims.UserID.String()),
				zap.String("role", string(claims.Role)),
				zap.String("path", path))
			if g.recorder != nil {
				g.recorder.RecordAccessDenied(claims, path, "role_path", RequestInfo(r))
			}
			http.Redirect(w, r, g.routes.DefaultPath, http.StatusFound)
			return
		}

		if !canonical {
			g.redirectToCanonical(w, r, path)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// CleanPath resolves dot segments and repeated slashes in p. A trailing
// slash survives cleaning and an empty path becomes "/".
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	clean := pathpkg.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}

// IsPublic reports whether path skips the guard
func (g *RouteGuard) IsPublic(path string) bool {
	for _, p := range g.routes.PublicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range g.routes.PublicPrefixes {
		if rbac.MatchPrefix(prefix, path) {
			return true
		}
	}
	return false
}

// Allowed reports whether role may open path. The default landing path is
// open to every signed-in role.
func (g *RouteGuard) Allowed(role rbac.Role, path string) bool {
	if role.IsSuperset() {
		return true
	}
	if path == g.routes.DefaultPath || path == strings.TrimSuffix(g.routes.DefaultPath, "/")+"/" {
		return true
	}
	return rbac.PathAllowed(role, path)
}

func (g *RouteGuard) redirectToLogin(w http.ResponseWriter, r *http.Request, path string) {
	callback := (&url.URL{Path: path, RawQuery: r.URL.RawQuery}).RequestURI()
	target := g.routes.LoginPath + "?" + url.Values{"callbackUrl": {callback}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

func (g *RouteGuard) redirectToCanonical(w http.ResponseWriter, r *http.Request, path string) {
	target := (&url.URL{Path: path, RawQuery: r.URL.RawQuery}).RequestURI()
	http.Redirect(w, r, target, http.StatusFound)
}

// SafeCallback returns raw when it is a local absolute path, else fallback.
// Protocol-relative and absolute URLs are rejected.
func SafeCallback(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return raw
}
