package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"status-agent/internal/agent"
	"status-agent/internal/config"
	"status-agent/internal/hostinfo"
	"status-agent/internal/metrics"
	"status-agent/internal/watchdog"
)

type fakeReader struct {
	snap  metrics.Snapshot
	err   error
	boom  bool
	calls atomic.Int32
}

func (f *fakeReader) Read() (metrics.Snapshot, error) {
	f.calls.Add(1)
	if f.boom {
		panic("boom")
	}
	return f.snap, f.err
}

type fakeUpstream struct {
	st watchdog.Status
}

func (f fakeUpstream) Status() watchdog.Status { return f.st }

func testRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.State == nil {
		opts.State = agent.NewState(context.Background())
	}
	return NewRouter(opts)
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s response %q: %v", path, w.Body.String(), err)
	}
	return w, env
}

func TestStatus_RoundsFields(t *testing.T) {
	store := metrics.NewStore()
	store.Publish(metrics.Snapshot{
		CPUUsagePercent:   12.345,
		MemTotalBytes:     16 * bytesPerGB,
		MemUsedBytes:      bytesPerGB + bytesPerGB/3,
		NetSentRateMbps:   9.999,
		NetTotalSentBytes: bytesPerGB / 7,
		SystemUptimeHours: 5.06,
		CPUCores:          4,
		CPUName:           "Test CPU",
		GPUName:           metrics.GPUDisabled,
	})

	r := testRouter(t, Options{Store: store})
	w, env := get(t, r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env.Status != "success" || env.Code != 200 || env.SystemStatus == nil {
		t.Fatalf("unexpected envelope %+v", env)
	}

	ss := env.SystemStatus
	checks := map[string][2]float64{
		"cpu_usage_percent":    {ss.CPUUsagePercent, 12.3},
		"memory_total_gb":      {ss.MemoryTotalGB, 16},
		"memory_used_gb":       {ss.MemoryUsedGB, 1.33},
		"net_upload_rate_mbps": {ss.NetUploadRateMbps, 10.0},
		"net_total_upload_gb":  {ss.NetTotalUploadGB, 0.143},
		"system_uptime_hours":  {ss.SystemUptimeHours, 5.1},
	}
	for name, c := range checks {
		if math.Abs(c[0]-c[1]) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, c[0], c[1])
		}
	}
	if ss.CPUCores != 4 || ss.CPUName != "Test CPU" || ss.GPUName != metrics.GPUDisabled {
		t.Fatalf("unexpected identity fields %+v", ss)
	}
	if env.GameServer != nil || env.APIStatus != nil || env.Config != nil {
		t.Fatalf("optional sections should be omitted: %+v", env)
	}
}

func TestStatus_ServiceUnavailableAfterShutdown(t *testing.T) {
	state := agent.NewState(context.Background())
	reader := &fakeReader{}
	r := testRouter(t, Options{State: state, Store: reader})

	state.Shutdown(agent.ErrSignaled)

	for i := 0; i < 3; i++ {
		w, env := get(t, r, "/")
		if w.Code != http.StatusServiceUnavailable || env.Code != 503 || env.Status != "error" {
			t.Fatalf("expected 503 envelope, got %d %+v", w.Code, env)
		}
		if env.Message == "" {
			t.Fatalf("expected a shutdown message")
		}
	}
	if reader.calls.Load() != 0 {
		t.Fatalf("store read %d times after shutdown", reader.calls.Load())
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected healthz 503, got %d", w.Code)
	}
}

func TestStatus_InternalErrors(t *testing.T) {
	t.Run("no snapshot", func(t *testing.T) {
		r := testRouter(t, Options{Store: metrics.NewStore()})
		w, env := get(t, r, "/")
		if w.Code != http.StatusInternalServerError || env.Message != msgInternal {
			t.Fatalf("expected 500 envelope, got %d %+v", w.Code, env)
		}
	})

	t.Run("read error", func(t *testing.T) {
		r := testRouter(t, Options{Store: &fakeReader{err: errors.New("broken")}})
		w, _ := get(t, r, "/")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})

	t.Run("unencodable snapshot", func(t *testing.T) {
		reader := &fakeReader{snap: metrics.Snapshot{Tick: 1, CPUUsagePercent: math.NaN()}}
		r := testRouter(t, Options{Store: reader})
		w, env := get(t, r, "/")
		if w.Code != http.StatusInternalServerError || env.Code != 500 || env.Message != msgInternal {
			t.Fatalf("expected 500 envelope, got %d %+v", w.Code, env)
		}
	})

	t.Run("panic", func(t *testing.T) {
		reader := &fakeReader{boom: true}
		r := testRouter(t, Options{Store: reader})
		w, env := get(t, r, "/")
		if w.Code != http.StatusInternalServerError || env.Code != 500 || env.Message != msgInternal {
			t.Fatalf("expected 500 envelope, got %d %+v", w.Code, env)
		}

		reader.boom = false
		w, _ = get(t, r, "/")
		if w.Code != http.StatusOK {
			t.Fatalf("server should keep serving after a panic, got %d", w.Code)
		}
	})
}

func TestStatus_OptionalSections(t *testing.T) {
	store := metrics.NewStore()
	store.Publish(metrics.Snapshot{})

	success := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	up := fakeUpstream{st: watchdog.Status{
		LastSuccessAt:       success,
		LastAttemptAt:       success.Add(3 * time.Second),
		ConsecutiveFailures: 1,
		Alive:               true,
		Upstream:            map[string]any{"players": 3.0},
		UpstreamStatus:      watchdog.UpstreamOffline,
	}}
	display := config.Display{Node: "node-1", BG: "#000", Footer: "hello"}

	r := testRouter(t, Options{Store: store, Watch: up, Display: display})
	w, env := get(t, r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("offline upstream should still return 200, got %d", w.Code)
	}
	if env.GameServer["status"] != "offline" || env.GameServer["players"] != 3.0 {
		t.Fatalf("unexpected game section %v", env.GameServer)
	}
	if env.APIStatus == nil || env.APIStatus.ConsecutiveFailures != 1 || !env.APIStatus.Active {
		t.Fatalf("unexpected api status %+v", env.APIStatus)
	}
	if env.APIStatus.LastSuccess != float64(success.Unix()) {
		t.Fatalf("unexpected last_success %v", env.APIStatus.LastSuccess)
	}
	if env.Config == nil || *env.Config != display {
		t.Fatalf("unexpected config section %+v", env.Config)
	}
}

func TestHealthz(t *testing.T) {
	r := testRouter(t, Options{Store: metrics.NewStore()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

type stepSource struct {
	net metrics.NetCounters
}

func (s *stepSource) CPUPercent(context.Context) (float64, error) { return 0, nil }
func (s *stepSource) Memory(context.Context) (metrics.Usage, error) { return metrics.Usage{}, nil }
func (s *stepSource) Network(context.Context) (metrics.NetCounters, error) { return s.net, nil }
func (s *stepSource) Disk(context.Context) (metrics.DiskCounters, error) {
	return metrics.DiskCounters{}, nil
}
func (s *stepSource) RootDisk(context.Context) (metrics.Usage, error) { return metrics.Usage{}, nil }
func (s *stepSource) BootTime(context.Context) (time.Time, error) { return time.Now(), nil }

type staticHost struct{}

func (staticHost) Static(context.Context) hostinfo.Static { return hostinfo.Static{} }
func (staticHost) GPU(context.Context) (hostinfo.GPU, error) {
	return hostinfo.GPU{}, nil
}

func TestStatus_EndToEndRates(t *testing.T) {
	src := &stepSource{net: metrics.NetCounters{Sent: 1_000_000, Recv: 0}}
	sampler := metrics.NewSampler(src, staticHost{}, metrics.Options{Network: true})
	store := metrics.NewStore()
	r := testRouter(t, Options{Store: store})

	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store.Publish(sampler.Tick(context.Background(), start))

	_, env := get(t, r, "/")
	if env.SystemStatus.NetUploadRateMbps != 0 {
		t.Fatalf("first tick should report 0.0, got %v", env.SystemStatus.NetUploadRateMbps)
	}
	if env.SystemStatus.GPUName != metrics.GPUDisabled || env.SystemStatus.GPUUsagePercent != 0 {
		t.Fatalf("expected disabled GPU sentinel, got %q", env.SystemStatus.GPUName)
	}

	src.net.Sent += 1_250_000
	store.Publish(sampler.Tick(context.Background(), start.Add(time.Second)))

	_, env = get(t, r, "/")
	if env.SystemStatus.NetUploadRateMbps != 10.0 {
		t.Fatalf("second tick should report 10.0, got %v", env.SystemStatus.NetUploadRateMbps)
	}
}
