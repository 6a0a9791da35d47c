// Package web serves the mounted dashboard and the analyzer panel over HTTP
// for viewing in a browser.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greg-hellings/omnicognitor/pkg/analyzer"
	"github.com/greg-hellings/omnicognitor/pkg/api"
	"github.com/greg-hellings/omnicognitor/pkg/dashboard"
	"github.com/greg-hellings/omnicognitor/pkg/render"
)

//go:embed templates/*.html
var templateFS embed.FS

const shutdownTimeout = 5 * time.Second

// Server is the local web view.
type Server struct {
	router    *gin.Engine
	view      *dashboard.View
	panel     *analyzer.Panel
	templates *template.Template
}

type analyzeRequest struct {
	Query string `json:"query"`
}

// NewServer creates a server for view and panel. The view is expected to be
// mounted by the caller.
func NewServer(view *dashboard.View, panel *analyzer.Panel) (*Server, error) {
	funcMap := template.FuncMap{
		"statValue": func(s api.Stats, key string) int64 { return s.Value(key) },
		"listItem":  analyzer.ListItem,
		"seconds":   func(d time.Duration) int { return int(d / time.Second) },
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return t.Format(time.DateTime)
		},
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:    gin.New(),
		view:      view,
		panel:     panel,
		templates: tmpl,
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.POST("/workspaces/:id/select", s.handleSelectWorkspaceForm)
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := s.router.Group("/api")
	apiGroup.GET("/snapshot", s.handleSnapshot)
	apiGroup.POST("/workspaces/:id/select", s.handleSelectWorkspace)
	apiGroup.POST("/analyze", s.handleAnalyze)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Web view listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

type indexData struct {
	Title             string
	Subtitle          string
	Snapshot          dashboard.Snapshot
	Platforms         []api.Platform
	Workspaces        []api.Workspace
	StatFields        []api.StatField
	RefreshInterval   time.Duration
	Analysis          analyzer.State
	LoadingText       string
	PlatformsHeading  string
	WorkspacesHeading string
	NoPlatforms       string
	NoWorkspaces      string
	NoDescription     string
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.view.Snapshot()
	data := indexData{
		Title:             render.Title,
		Subtitle:          render.Subtitle,
		Snapshot:          snap,
		Platforms:         snap.VisiblePlatforms(),
		Workspaces:        snap.VisibleWorkspaces(),
		StatFields:        api.StatFields,
		RefreshInterval:   s.view.RefreshInterval(),
		LoadingText:       render.LoadingText,
		PlatformsHeading:  render.PlatformsHeading,
		WorkspacesHeading: render.WorkspacesHeading,
		NoPlatforms:       render.NoPlatformsText,
		NoWorkspaces:      render.NoWorkspacesText,
		NoDescription:     render.NoDescriptionText,
	}
	if s.panel != nil {
		data.Analysis = s.panel.State()
	}
	s.renderTemplate(c, "index.html", data)
}

// renderTemplate executes a template into a buffer before writing so a
// template error never produces a partial page.
func (s *Server) renderTemplate(c *gin.Context, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template rendering failed", "template", name, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "template rendering failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.view.Snapshot())
}

func (s *Server) handleSelectWorkspace(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workspace id is required"})
		return
	}
	s.view.SelectWorkspace(api.ID(id))
	c.JSON(http.StatusOK, s.view.Snapshot())
}

// handleSelectWorkspaceForm serves the page's select buttons and returns the
// browser to the dashboard.
func (s *Server) handleSelectWorkspaceForm(c *gin.Context) {
	if id := strings.TrimSpace(c.Param("id")); id != "" {
		s.view.SelectWorkspace(api.ID(id))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleAnalyze(c *gin.Context) {
	if s.panel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analyzer is not available"})
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := s.panel.Submit(c.Request.Context(), req.Query)
	switch {
	case errors.Is(err, analyzer.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, analyzer.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, analyzer.ErrAnalysisFailed):
		c.JSON(http.StatusBadGateway, s.panel.State())
	default:
		c.JSON(http.StatusOK, s.panel.State())
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
