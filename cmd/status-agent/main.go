package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"status-agent/internal/agent"
	"status-agent/internal/api"
	"status-agent/internal/config"
	"status-agent/internal/hostinfo"
	"status-agent/internal/logging"
	"status-agent/internal/metrics"
	"status-agent/internal/storage"
	"status-agent/internal/watchdog"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "config.yaml", "path to config.yaml")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("status-agent v%s\n", version)
		return 0
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	if !config.Exists(configPath) {
		if err := cfg.Save(configPath); err != nil {
			log.Printf("Failed to write default config: %v", err)
		} else {
			log.Printf("Wrote default config to %s", configPath)
		}
	}

	logOut, logCloser, err := logging.Setup(logging.Options{
		Dir:     cfg.LogDir,
		File:    cfg.LogEnabled,
		Console: cfg.ConsoleLog,
		Debug:   cfg.Debug,
	})
	if err != nil {
		log.Printf("Failed to set up logging: %v", err)
		return 1
	}
	defer logCloser.Close()

	if cfg.LogEnabled {
		rotator := storage.NewRotator(cfg.LogDir, cfg.RetentionDays)
		rotator.Start()
		defer rotator.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = logOut
	gin.DefaultErrorWriter = logOut

	state := agent.NewState(context.Background())
	ctx := state.Context()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received %s, shutting down", sig)
			state.Shutdown(agent.ErrSignaled)
		case <-ctx.Done():
		}
	}()

	log.Printf("status-agent v%s starting", version)

	var wg sync.WaitGroup

	store := metrics.NewStore()
	sampler := metrics.NewSampler(
		metrics.NewCollector("", cfg.NetworkInterface),
		hostinfo.New(cfg.ProbeTimeout()),
		metrics.Options{
			CPU:         cfg.Monitor.CPU,
			Memory:      cfg.Monitor.Memory,
			Network:     cfg.Monitor.Network,
			Disk:        cfg.Monitor.Disk,
			GPU:         cfg.Monitor.GPU,
			GPUInterval: cfg.GPUInterval(),
		},
	)
	store.Publish(sampler.Current())

	wg.Add(1)
	go func() {
		defer wg.Done()
		sampler.Init(ctx)
		if snap := sampler.Tick(ctx, time.Now()); ctx.Err() == nil {
			store.Publish(snap)
		}
		sampler.Run(ctx, cfg.SampleInterval(), store)
	}()

	apiOpts := api.Options{
		State:          state,
		Store:          store,
		Display:        cfg.Display,
		StreamInterval: cfg.SampleInterval(),
		CORS:           cfg.CORS,
		LogOutput:      logOut,
	}

	if cfg.Heartbeat.Enabled {
		wd, err := watchdog.New(watchdog.Config{
			URL:            cfg.Heartbeat.URL,
			Interval:       cfg.Heartbeat.Interval(),
			RequestTimeout: cfg.Heartbeat.RequestTimeout(),
			FailureTimeout: cfg.Heartbeat.FailureTimeout(),
			Policy:         cfg.Heartbeat.OnFailure,
		}, func(cause error) {
			state.Shutdown(cause)
		})
		if err != nil {
			log.Printf("Failed to create watchdog: %v", err)
			return 1
		}
		apiOpts.Watch = wd

		wg.Add(1)
		go func() {
			defer wg.Done()
			wd.Run(ctx)
		}()
		log.Printf("Heartbeat watchdog polling %s every %s", cfg.Heartbeat.URL, cfg.Heartbeat.Interval())
	}

	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		defer limiter.Stop()
		apiOpts.Limiter = limiter
	}

	servers := []*http.Server{
		newServer(cfg.APIAddr(), api.NewRouter(apiOpts)),
	}

	if cfg.Web.Enabled {
		web, err := api.NewWebRouter(cfg.Web.Root, state, logOut)
		if err != nil {
			log.Printf("Failed to set up web server: %v", err)
			return 1
		}
		servers = append(servers, newServer(cfg.WebAddr(), web))
	}

	for _, srv := range servers {
		go serve(srv, state)
	}

	<-state.Done()
	cause := state.Cause()
	log.Printf("Shutting down: %v", cause)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server %s forced to shutdown: %v", srv.Addr, err)
			srv.Close()
		}
	}

	wg.Wait()
	log.Println("Agent exited")

	return exitCode(cause)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// serve runs srv until it is shut down. A listener failure stops the agent.
func serve(srv *http.Server, state *agent.State) {
	log.Printf("Starting server on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Server %s failed: %v", srv.Addr, err)
		state.Shutdown(fmt.Errorf("listen %s: %w", srv.Addr, err))
	}
}

func exitCode(cause error) int {
	switch {
	case errors.Is(cause, watchdog.ErrDependencyLost):
		return 1
	case errors.Is(cause, agent.ErrSignaled), errors.Is(cause, context.Canceled):
		return 0
	case cause != nil:
		return 1
	}
	return 0
}
