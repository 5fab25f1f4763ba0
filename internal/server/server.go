package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/researchteam/config"
	"github.com/researchteam/internal/app"
	"github.com/researchteam/internal/persistence"
	"github.com/researchteam/internal/workflow"
)

// Researcher is the part of app.Application the HTTP surface needs.
type Researcher interface {
	Research(ctx context.Context, topic string, opts ...workflow.RunOption) (*workflow.Result, error)
	Checkpoint(ctx context.Context, threadID string) (workflow.Checkpoint, error)
}

type Server struct {
	echo       *echo.Echo
	researcher Researcher
	cfg        config.ServerConfig
}

// New wires the web form, the JSON API, health and metrics routes.
func New(r Researcher, gatherer prometheus.Gatherer, cfg config.ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				slog.Warn("server.request.failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("server.request", attrs...)
			return nil
		},
	}))
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	s := &Server{echo: e, researcher: r, cfg: cfg}

	e.GET("/", s.form)
	e.POST("/", s.submit)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.POST("/research", s.research)
	api.GET("/research/:thread_id", s.checkpoint)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  s.cfg.ReadTimeout.Duration,
		WriteTimeout: s.cfg.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server.start", "addr", addr)
		errCh <- s.echo.StartServer(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("server.shutdown", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

type page struct {
	Topic    string
	Report   string
	Error    string
	ThreadID string
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Research Team</title></head>
<body>
<h1>Research Team</h1>
<form method="post" action="/">
  <input type="text" name="topic" value="{{.Topic}}" placeholder="Research topic" size="60">
  <button type="submit">Research</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Report}}<h2>Report</h2>
<p><small>Thread {{.ThreadID}}</small></p>
<pre class="report">{{.Report}}</pre>{{end}}
</body>
</html>
`))

func (s *Server) render(c echo.Context, code int, p page) error {
	var b strings.Builder
	if err := pageTmpl.Execute(&b, p); err != nil {
		return err
	}
	return c.HTML(code, b.String())
}

func (s *Server) form(c echo.Context) error {
	return s.render(c, http.StatusOK, page{})
}

func (s *Server) submit(c echo.Context) error {
	topic := strings.TrimSpace(c.FormValue("topic"))
	p := page{Topic: topic}

	res, err := s.researcher.Research(c.Request().Context(), topic)
	if err != nil {
		p.Error = userMessage(err)
	} else {
		p.Report = res.State.FinalReport
		p.ThreadID = res.ThreadID
	}
	return s.render(c, http.StatusOK, p)
}

// userMessage is the text shown to a user for a failed run.
func userMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrEmptyTopic):
		return "Please enter a research topic."
	case errors.Is(err, app.ErrNoReport):
		return "No report generated."
	default:
		return "Error: " + err.Error()
	}
}

type researchRequest struct {
	Topic    string `json:"topic"`
	ThreadID string `json:"thread_id"`
}

type researchResponse struct {
	persistence.ReportDumpV1
	Error string `json:"error,omitempty"`
}

func (s *Server) research(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var opts []workflow.RunOption
	if id := strings.TrimSpace(req.ThreadID); id != "" {
		opts = append(opts, workflow.WithThreadID(id))
	}

	res, err := s.researcher.Research(c.Request().Context(), req.Topic, opts...)
	switch {
	case errors.Is(err, app.ErrEmptyTopic):
		return echo.NewHTTPError(http.StatusBadRequest, userMessage(err))
	case errors.Is(err, app.ErrNoReport) && res != nil:
		dump, derr := persistence.BuildDumpV1(res)
		if derr != nil {
			return derr
		}
		return c.JSON(http.StatusUnprocessableEntity, researchResponse{ReportDumpV1: dump, Error: userMessage(err)})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, userMessage(err))
	}

	dump, err := persistence.BuildDumpV1(res)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, researchResponse{ReportDumpV1: dump})
}

type checkpointResponse struct {
	persistence.ReportDumpV1
	Node         string    `json:"node"`
	Next         string    `json:"next"`
	CurrentAgent string    `json:"current_agent"`
	Finished     bool      `json:"finished"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Server) checkpoint(c echo.Context) error {
	threadID := c.Param("thread_id")
	cp, err := s.researcher.Checkpoint(c.Request().Context(), threadID)
	if errors.Is(err, workflow.ErrCheckpointNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("thread %s not found", threadID))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	dump, err := persistence.BuildDumpV1(&workflow.Result{
		ThreadID:  cp.ThreadID,
		State:     cp.State,
		Steps:     cp.Step,
		Truncated: !cp.Finished(),
	})
	if err != nil {
		return err
	}
	dump.CreatedAt = cp.UpdatedAt
	return c.JSON(http.StatusOK, checkpointResponse{
		ReportDumpV1: dump,
		Node:         cp.Node,
		Next:         cp.Next,
		CurrentAgent: cp.State.CurrentAgent,
		Finished:     cp.Finished(),
		UpdatedAt:    cp.UpdatedAt,
	})
}
