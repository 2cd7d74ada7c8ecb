// Package server exposes the answering policy over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"saferag/internal/interactions"
	"saferag/internal/metrics"
	"saferag/internal/service"
)

// Answerer is the policy as seen by the transport.
type Answerer interface {
	Ask(ctx context.Context, query string) (*service.Answer, error)
}

// ReloadFunc re-reads both snapshots from disk and reports their sizes.
type ReloadFunc func() (chunks, intents int, err error)

// Deps are the collaborators of the HTTP layer. Store, Reload and Metrics may be nil.
type Deps struct {
	Answerer Answerer
	Store    interactions.Store
	Reload   ReloadFunc
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

type Server struct {
	e        *echo.Echo
	answerer Answerer
	store    interactions.Store
	reload   ReloadFunc
	metrics  *metrics.Metrics
	logger   *log.Logger
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[http] ", log.LstdFlags)
	}
	s := &Server{
		e:        echo.New(),
		answerer: d.Answerer,
		store:    d.Store,
		reload:   d.Reload,
		metrics:  d.Metrics,
		logger:   logger,
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.Recover())
	s.e.HTTPErrorHandler = s.handleError

	s.e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.metrics != nil {
		s.e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	s.e.POST("/ask", s.ask)
	s.e.POST("/feedback", s.feedback)
	s.e.POST("/admin/reload", s.reloadSnapshots)
	return s
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "Internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if he.Internal != nil {
			err = he.Internal
		}
	}
	req := c.Request()
	s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	IsUnsafe      bool     `json:"isUnsafe"`
	UnsafeReasons []string `json:"unsafeReasons"`
	QueryID       string   `json:"queryId,omitempty"`
}

func (s *Server) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}
	start := time.Now()
	ans, err := s.answerer.Ask(c.Request().Context(), req.Query)
	if err != nil {
		if s.metrics != nil && !errors.Is(err, service.ErrEmptyQuery) {
			s.metrics.ObserveError(err)
		}
		return askError(err)
	}
	if s.metrics != nil {
		s.metrics.ObserveAnswer(ans, time.Since(start))
	}
	reasons := ans.Verdict.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return c.JSON(http.StatusOK, askResponse{
		Answer:        ans.Text,
		Sources:       ans.Sources,
		IsUnsafe:      ans.Verdict.IsUnsafe,
		UnsafeReasons: reasons,
		QueryID:       ans.ID,
	})
}

func askError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		he = echo.NewHTTPError(http.StatusBadRequest, "Query required")
	case errors.Is(err, service.ErrTimeout):
		he = echo.NewHTTPError(http.StatusGatewayTimeout, "Upstream service timed out")
	case errors.Is(err, service.ErrEmbedding):
		he = echo.NewHTTPError(http.StatusBadGateway, "Embedding service unavailable")
	case errors.Is(err, service.ErrCompletion):
		he = echo.NewHTTPError(http.StatusBadGateway, "Completion service unavailable")
	default:
		he = echo.NewHTTPError(http.StatusInternalServerError, "Internal error")
	}
	return he.SetInternal(err)
}

type feedbackRequest struct {
	QueryID  string `json:"queryId"`
	Feedback string `json:"feedback"`
}

func (s *Server) feedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}
	if req.QueryID == "" || req.Feedback == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "queryId and feedback required")
	}
	fb, err := interactions.ParseFeedback(req.Feedback)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "feedback must be up or down").SetInternal(err)
	}
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Interaction log disabled")
	}
	switch err := s.store.SetFeedback(c.Request().Context(), req.QueryID, fb); {
	case errors.Is(err, interactions.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Unknown queryId").SetInternal(err)
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save feedback").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) reloadSnapshots(c echo.Context) error {
	if s.reload == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Reload not configured")
	}
	chunks, intents, err := s.reload()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Reload failed").SetInternal(err)
	}
	if s.metrics != nil {
		s.metrics.SetSnapshotSizes(chunks, intents)
	}
	s.logger.Printf("reloaded snapshots: %d chunks, %d intents", chunks, intents)
	return c.JSON(http.StatusOK, map[string]int{"chunks": chunks, "intents": intents})
}
