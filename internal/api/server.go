// Package api exposes the admin surface: trigger report runs, read run
// history, inspect the search registry.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/samdaily/internal/auth"
	"github.com/david/samdaily/internal/db"
	"github.com/david/samdaily/internal/pipeline"
)

type Server struct {
	Echo        *echo.Echo
	Runner      *pipeline.Runner
	Store       *db.Store // nil when run history is disabled
	AuthService *auth.Service

	jobMu sync.Mutex
	jobs  map[string]*backgroundJob
}

type backgroundJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // running, completed, failed
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func NewServer(runner *pipeline.Runner, store *db.Store, authService *auth.Service, corsOrigins string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	for _, o := range strings.Split(corsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowedOrigins = append(allowedOrigins, o)
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Echo:        e,
		Runner:      runner,
		Store:       store,
		AuthService: authService,
		jobs:        make(map[string]*backgroundJob),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/searches", s.handleListSearches)
	api.GET("/runs", s.handleListRuns)
	api.POST("/auth/login", s.handleLogin)

	admin := api.Group("")
	admin.Use(s.AuthService.Middleware)
	admin.POST("/run/:id", s.handleRunSearch)
	admin.POST("/run-all", s.handleRunAll)
	admin.GET("/jobs/:id", s.handleJobStatus)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSearches(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Runner.Registry.Searches)
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.Store == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "run history not configured"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	token, err := s.AuthService.Login(req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRunSearch(c echo.Context) error {
	searchID := c.Param("id")
	if _, err := s.Runner.Registry.Find(searchID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	job := s.startJob(func(ctx context.Context) (any, error) {
		return s.Runner.RunSearch(ctx, searchID)
	})
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleRunAll(c echo.Context) error {
	job := s.startJob(func(ctx context.Context) (any, error) {
		return s.Runner.RunAll(ctx)
	})
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleJobStatus(c echo.Context) error {
	// Serialize a copy taken under the lock; the background goroutine keeps
	// writing to the stored job until it finishes.
	s.jobMu.Lock()
	job, ok := s.jobs[c.Param("id")]
	var snapshot backgroundJob
	if ok {
		snapshot = *job
	}
	s.jobMu.Unlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, snapshot)
}

// startJob runs fn in the background, detached from the request context so
// an impatient client cannot abort a half-sent email. The returned value is
// a snapshot safe to serialize after the goroutine has started.
func (s *Server) startJob(fn func(ctx context.Context) (any, error)) backgroundJob {
	job := &backgroundJob{
		ID:        uuid.New().String(),
		Status:    "running",
		StartedAt: time.Now(),
	}
	s.jobMu.Lock()
	s.jobs[job.ID] = job
	s.jobMu.Unlock()

	snapshot := *job
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		result, err := fn(ctx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		job.Result = result
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
		} else {
			job.Status = "completed"
		}
	}()

	return snapshot
}
