// Package watchdog polls an upstream HTTP endpoint and trips once it has
// been unreachable for longer than the failure timeout.
package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"net/http"
	"sync"
	"time"
)

var ErrDependencyLost = errors.New("upstream dependency lost")

type Phase string

const (
	PhaseHealthy  Phase = "healthy"
	PhaseDegraded Phase = "degraded"
	PhaseDead     Phase = "dead"
)

const (
	UpstreamOnline  = "online"
	UpstreamOffline = "offline"
)

const (
	PolicyShutdown = "shutdown"
	PolicyStale    = "stale"
)

// maxBody bounds how much of an upstream response is decoded.
const maxBody = 1 << 20

// Config is the runtime config the watchdog needs.
type Config struct {
	URL            string
	Interval       time.Duration
	RequestTimeout time.Duration
	FailureTimeout time.Duration
	Policy         string
}

// Status is a copy of the watchdog state at one point in time.
type Status struct {
	LastSuccessAt       time.Time
	LastAttemptAt       time.Time
	ConsecutiveFailures uint
	Alive               bool
	Phase               Phase
	Upstream            map[string]any
	UpstreamStatus      string
}

// Watchdog tracks upstream health. Once DEAD it never recovers.
type Watchdog struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
	onDead func(error)

	mu        sync.Mutex
	status    Status
	deadOnce  sync.Once
	staleLogd bool
}

// New creates a watchdog. onDead is called exactly once, with
// ErrDependencyLost, when the shutdown policy trips.
func New(cfg Config, onDead func(error)) (*Watchdog, error) {
	if cfg.URL == "" {
		return nil, errors.New("watchdog: url required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("watchdog: interval must be > 0")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.New("watchdog: request timeout must be > 0")
	}
	if cfg.FailureTimeout <= 0 {
		return nil, errors.New("watchdog: failure timeout must be > 0")
	}
	switch cfg.Policy {
	case "":
		cfg.Policy = PolicyShutdown
	case PolicyShutdown, PolicyStale:
	default:
		return nil, fmt.Errorf("watchdog: unknown policy %q", cfg.Policy)
	}
	if onDead == nil {
		onDead = func(error) {}
	}

	w := &Watchdog{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		now:    time.Now,
		onDead: onDead,
	}
	w.reset()
	return w, nil
}

// reset starts the outage clock at the current time.
func (w *Watchdog) reset() {
	w.status = Status{
		LastSuccessAt:  w.now(),
		Alive:          true,
		Phase:          PhaseHealthy,
		Upstream:       map[string]any{},
		UpstreamStatus: UpstreamOffline,
	}
}

// Status returns a copy of the current state.
func (w *Watchdog) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.status
	st.Upstream = maps.Clone(w.status.Upstream)
	return st
}

func (w *Watchdog) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.Alive
}

// Poll performs one upstream request and applies the failure threshold.
// It returns ErrDependencyLost once the watchdog is dead.
func (w *Watchdog) Poll(ctx context.Context) error {
	if !w.Alive() {
		return ErrDependencyLost
	}

	attemptAt := w.now()
	payload, err := w.fetch(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := w.now()

	w.mu.Lock()
	w.status.LastAttemptAt = attemptAt
	if err == nil {
		w.status.LastSuccessAt = now
		w.status.ConsecutiveFailures = 0
		w.status.Phase = PhaseHealthy
		w.status.Upstream = payload
		w.status.UpstreamStatus = UpstreamOnline
		w.staleLogd = false
	} else {
		w.status.ConsecutiveFailures++
		w.status.Phase = PhaseDegraded
		w.status.UpstreamStatus = UpstreamOffline
		if w.status.ConsecutiveFailures == 1 {
			log.Printf("watchdog: upstream %s failed: %v", w.cfg.URL, err)
		}
	}

	expired := now.Sub(w.status.LastSuccessAt) > w.cfg.FailureTimeout
	dead := false
	if expired {
		switch w.cfg.Policy {
		case PolicyShutdown:
			w.status.Alive = false
			w.status.Phase = PhaseDead
			dead = true
		case PolicyStale:
			if !w.staleLogd {
				log.Printf("watchdog: upstream %s unreachable for over %s, serving stale data",
					w.cfg.URL, w.cfg.FailureTimeout)
				w.staleLogd = true
			}
		}
	}
	w.mu.Unlock()

	if dead {
		w.deadOnce.Do(func() {
			log.Printf("watchdog: upstream %s unreachable for over %s, shutting down",
				w.cfg.URL, w.cfg.FailureTimeout)
			w.onDead(ErrDependencyLost)
		})
		return ErrDependencyLost
	}
	return err
}

func (w *Watchdog) fetch(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode upstream body: %w", err)
	}
	if payload == nil {
		return nil, errors.New("upstream body is not a JSON object")
	}
	return payload, nil
}

// Run polls every interval until ctx is cancelled or the watchdog dies.
// The outage clock starts when Run is called.
func (w *Watchdog) Run(ctx context.Context) {
	w.mu.Lock()
	w.status.LastSuccessAt = w.now()
	w.mu.Unlock()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); errors.Is(err, ErrDependencyLost) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
