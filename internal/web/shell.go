// Package web serves the browser routes of the single-page client and
// applies the session redirect rules in front of them.
package web

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"projectboard/internal/auth"
	"projectboard/internal/middleware"
)

// Access says who may open a browser route.
type Access int

const (
	// Private routes require a session.
	Private Access = iota
	// PublicOnly routes are for visitors without a session.
	PublicOnly
)

// Route is one browser route.
type Route struct {
	Pattern string
	Access  Access
}

// Routes lists every browser route of the client.
var Routes = []Route{
	{"/", PublicOnly},
	{"/login", PublicOnly},
	{"/register", PublicOnly},
	{"/signup", PublicOnly},
	{"/welcome", PublicOnly},
	{"/dashboard", Private},
	{"/projectboard", Private},
	{"/project/:projectId", Private},
	{"/tasks", Private},
	{"/team", Private},
}

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Redirect returns where a request for a route with the given access must
// go instead, or "" when it may be served.
func Redirect(access Access, authenticated bool) string {
	switch {
	case access == Private && !authenticated:
		return LoginPath
	case access == PublicOnly && authenticated:
		return DashboardPath
	}
	return ""
}

// Shell serves the client's routes.
type Shell struct {
	tokens    *auth.Manager
	staticDir string
}

// New builds a shell. staticDir may be empty, in which case allowed routes
// answer with a small JSON description instead of the client's index.html.
func New(tokens *auth.Manager, staticDir string) *Shell {
	return &Shell{tokens: tokens, staticDir: staticDir}
}

func (s *Shell) authenticated(c *gin.Context) bool {
	token := middleware.TokenFromRequest(c)
	if token == "" {
		return false
	}
	_, err := s.tokens.ValidateToken(token)
	return err == nil
}

func (s *Shell) page(route Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		authed := s.authenticated(c)
		if to := Redirect(route.Access, authed); to != "" {
			c.Redirect(http.StatusFound, to)
			return
		}
		if s.staticDir != "" {
			c.File(filepath.Join(s.staticDir, "index.html"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"route": route.Pattern, "authenticated": authed})
	}
}

// Register mounts every browser route and, when a static dir is set, serves
// its files for unmatched non-API paths.
func (s *Shell) Register(r *gin.Engine) {
	for _, route := range Routes {
		r.GET(route.Pattern, s.page(route))
	}
	r.NoRoute(s.asset)
}

func (s *Shell) asset(c *gin.Context) {
	p := c.Request.URL.Path
	if s.staticDir == "" || c.Request.Method != http.MethodGet || strings.HasPrefix(p, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	name := filepath.Join(s.staticDir, filepath.FromSlash(filepath.Clean("/"+p)))
	if fi, err := os.Stat(name); err != nil || fi.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.File(name)
}
