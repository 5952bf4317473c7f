// Package api serves the latest telemetry snapshot over HTTP and websocket.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"status-agent/internal/agent"
	"status-agent/internal/config"
	"status-agent/internal/metrics"
	"status-agent/internal/watchdog"
)

// SnapshotReader is the read side of metrics.Store.
type SnapshotReader interface {
	Read() (metrics.Snapshot, error)
}

// UpstreamSource is satisfied by *watchdog.Watchdog.
type UpstreamSource interface {
	Status() watchdog.Status
}

type Options struct {
	State   *agent.State
	Store   SnapshotReader
	Watch   UpstreamSource
	Display config.Display

	// StreamInterval is how often /ws pushes an envelope.
	StreamInterval time.Duration
	CORS           bool
	Limiter        *RateLimiter
	LogOutput      io.Writer
}

type Server struct {
	state    *agent.State
	store    SnapshotReader
	watch    UpstreamSource
	display  config.Display
	interval time.Duration
	now      func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}
	return &Server{
		state:    opts.State,
		store:    opts.Store,
		watch:    opts.Watch,
		display:  opts.Display,
		interval: opts.StreamInterval,
		now:      time.Now,
	}
}

// NewRouter builds the API engine with its middleware chain.
func NewRouter(opts Options) *gin.Engine {
	s := NewServer(opts)

	r := gin.New()
	r.Use(Recovery())
	if opts.LogOutput != nil {
		r.Use(RequestLogger(opts.LogOutput))
	}
	if opts.CORS {
		r.Use(CORS())
	}
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware())
	}

	s.Register(r)
	return r
}

func (s *Server) Register(r gin.IRoutes) {
	r.GET("/", s.handleStatus)
	r.GET("/healthz", s.handleHealth)
	r.GET("/ws", s.handleStream)
}

// handleStatus encodes the envelope before writing. An encode failure is
// answered with the 500 envelope.
func (s *Server) handleStatus(c *gin.Context) {
	code, env := s.envelope(s.now())
	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("api: encode status: %v", err)
		c.JSON(http.StatusInternalServerError, errorEnvelope(http.StatusInternalServerError, msgInternal))
		return
	}
	c.Data(code, "application/json; charset=utf-8", body)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.state.Stopping() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopping"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// envelope renders the response for the current state. Once shutdown has
// been requested the store is not consulted.
func (s *Server) envelope(now time.Time) (int, Envelope) {
	if s.state.Stopping() {
		return http.StatusServiceUnavailable, errorEnvelope(http.StatusServiceUnavailable, s.stoppingMessage())
	}

	snap, err := s.store.Read()
	if err != nil {
		log.Printf("api: read snapshot: %v", err)
		return http.StatusInternalServerError, errorEnvelope(http.StatusInternalServerError, msgInternal)
	}

	env := Envelope{
		Status:       statusSuccess,
		Code:         http.StatusOK,
		SystemStatus: systemStatus(snap, s.state.Uptime(now)),
	}
	if s.watch != nil {
		env.GameServer, env.APIStatus = upstreamSections(s.watch.Status())
	}
	if s.display != (config.Display{}) {
		display := s.display
		env.Config = &display
	}
	return http.StatusOK, env
}

func (s *Server) stoppingMessage() string {
	if cause := s.state.Cause(); cause != nil {
		return fmt.Sprintf("%s: %v", msgStopping, cause)
	}
	return msgStopping
}
