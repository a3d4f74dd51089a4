// Package bridge exposes an annotation engine to an external host over HTTP
// and pushes every change event over a websocket.
package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/engine"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Controller is the part of the engine the bridge drives
type Controller interface {
	Annotations() []types.Annotation
	Select(id string) error
	UpdateLabelName(id string, info types.LabelInfo) error
	DeleteByID(id string) error
	DeleteSelected() error
	UpdateFillOpacity(v float64) error
	UpdateSelectOpacity(v float64) error
	ResetZoom() error
}

var _ Controller = (*engine.Engine)(nil)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type labelRequest struct {
	Label    string         `json:"label" binding:"required"`
	Metadata types.Metadata `json:"metadata"`
}

type opacityRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// Server is the host bridge
type Server struct {
	ctrl     Controller
	hub      *Hub
	router   *gin.Engine
	upgrader websocket.Upgrader
	logger   *zap.Logger
	version  string
	mode     string
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by /healthz
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMode sets the gin mode: debug, release or test. Empty keeps the current mode.
func WithMode(mode string) Option {
	return func(s *Server) { s.mode = mode }
}

// WithCheckOrigin sets the websocket origin check. All origins are accepted by default.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// New creates a bridge for ctrl. Wire Publish into the engine's change callback.
func New(ctrl Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:   ctrl,
		logger: zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode != "" {
		gin.SetMode(s.mode)
	}
	s.logger = s.logger.Named("bridge")
	s.hub = NewHub(s.logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": s.version,
			"clients": s.hub.Clients(),
		})
	})
	r.GET("/ws", s.serveWS)

	anns := r.Group("/annotations")
	{
		anns.GET("", s.listAnnotations)
		anns.DELETE("/selected", s.deleteSelected)
		anns.PUT("/:id/label", s.updateLabel)
		anns.POST("/:id/select", s.selectAnnotation)
		anns.DELETE("/:id", s.deleteAnnotation)
	}

	r.PUT("/style/fill-opacity", s.opacity(s.ctrl.UpdateFillOpacity))
	r.PUT("/style/select-opacity", s.opacity(s.ctrl.UpdateSelectOpacity))
	r.POST("/zoom/reset", func(c *gin.Context) {
		if err := s.ctrl.ResetZoom(); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish forwards a change event to every connected host
func (s *Server) Publish(ev types.ChangeEvent) {
	s.hub.Publish(ev)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("bridge stopped")
	return nil
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.hub.Serve(conn)
}

func (s *Server) listAnnotations(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Annotations())
}

func (s *Server) updateLabel(c *gin.Context) {
	var req labelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid label request", Error: err.Error()})
		return
	}
	info := types.LabelInfo{Label: req.Label, Metadata: req.Metadata}
	if err := s.ctrl.UpdateLabelName(c.Param("id"), info); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) selectAnnotation(c *gin.Context) {
	if err := s.ctrl.Select(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteAnnotation(c *gin.Context) {
	if err := s.ctrl.DeleteByID(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteSelected(c *gin.Context) {
	if err := s.ctrl.DeleteSelected(); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) opacity(apply func(float64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req opacityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid opacity request", Error: err.Error()})
			return
		}
		if *req.Value < 0 || *req.Value > 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "opacity must be between 0 and 1"})
			return
		}
		if err := apply(*req.Value); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrDestroyed):
		status = http.StatusGone
	case errors.Is(err, engine.ErrNoImage):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("command failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Message: http.StatusText(status), Error: err.Error()})
}
