// Package server exposes an engine over HTTP: JSON snapshot endpoints,
// control endpoints for the settings UI and a websocket change stream.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// Backend is the engine surface the server needs. *combatlog.Engine
// satisfies it.
type Backend interface {
	Snapshot() combatlog.Snapshot
	Damage() map[string]uint64
	Heals() map[string]uint64
	Retribution() map[string]int64
	Debuffs() map[string][]combatlog.ActiveDebuff
	Incoming(name string) []event.Event
	Outgoing(name string) []event.Event
	CurrentTarget() string
	Casting() string

	Paths() []string
	Searching() bool
	SelectedPath() string
	SearchEverywhere() bool
	Cursor() int64
	Running() bool
	Dropped() int64

	Start(path string) error
	Stop()
	Reset()
	Relocate(ctx context.Context) ([]string, error)
	SetSelectedPath(path string)
	SetSearchEverywhere(on bool)
	SetCurrentTarget(name string)

	Subscribe() *combatlog.Subscription
}

var _ Backend = (*combatlog.Engine)(nil)

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Server holds the Gin engine and the backend it serves.
type Server struct {
	router  *gin.Engine
	backend Backend
	log     *slog.Logger
}

// New creates a server for b. A nil logger discards output.
func New(b Backend, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	s := &Server{router: router, backend: b, log: log}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleStatus)

	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/snapshot", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Snapshot())
	})
	api.GET("/damage", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Damage())
	})
	api.GET("/heals", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Heals())
	})
	api.GET("/retribution", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Retribution())
	})
	api.GET("/debuffs", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Debuffs())
	})
	api.GET("/players/:name/incoming", func(c *gin.Context) {
		c.JSON(http.StatusOK, envelopes(s.backend.Incoming(c.Param("name"))))
	})
	api.GET("/players/:name/outgoing", func(c *gin.Context) {
		c.JSON(http.StatusOK, envelopes(s.backend.Outgoing(c.Param("name"))))
	})
	api.GET("/paths", s.handlePaths)

	api.POST("/reset", s.handleReset)
	api.POST("/target", s.handleTarget)
	api.POST("/path", s.handlePath)
	api.POST("/search-everywhere", s.handleSearchEverywhere)
	api.POST("/relocate", s.handleRelocate)
	api.POST("/start", s.handleStart)
	api.POST("/stop", s.handleStop)

	s.router.GET("/ws", s.handleWebSocket)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// If ready is non-nil it receives the bound address once listening.
func (s *Server) Run(ctx context.Context, addr string, ready chan<- net.Addr) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("serving", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func envelopes(events []event.Event) []event.Envelope {
	out := make([]event.Envelope, len(events))
	for i, ev := range events {
		out[i] = event.Wrap(ev)
	}
	return out
}
