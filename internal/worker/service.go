// Package worker provides the asklens HTTP service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/asklens/internal/app"
	"github.com/thebtf/asklens/internal/config"
	"github.com/thebtf/asklens/internal/watcher"
)

const (
	// DefaultHTTPTimeout bounds every request, including embedding calls.
	DefaultHTTPTimeout = 60 * time.Second

	// ReadyPollInterval is how often WaitReady checks initialization status.
	ReadyPollInterval = 50 * time.Millisecond

	// retireDelay is how long replaced components stay open for in-flight requests.
	retireDelay = DefaultHTTPTimeout
)

// BuildFunc constructs the component graph for a configuration.
type BuildFunc func(cfg *config.Config) (*app.Components, error)

func defaultBuild(cfg *config.Config) (*app.Components, error) {
	return app.Build(cfg, app.BuildOptions{WithSource: true})
}

// Service is the worker HTTP service. Health and readiness checks are served
// immediately; everything else waits for the components to be built.
type Service struct {
	startTime time.Time

	version string
	config  *config.Config
	build   BuildFunc

	// Guarded by initMu.
	components *app.Components
	initError  error
	initMu     sync.RWMutex

	auth    *TokenAuth
	limiter *ClientLimiter
	router  *chi.Mux
	server  *http.Server
	addr    net.Addr

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ready atomic.Bool

	configWatcher *watcher.Watcher
}

// NewService creates the service and starts building its components in the
// background.
func NewService(version string, cfg *config.Config) *Service {
	svc := newService(version, cfg, defaultBuild)
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.initializeAsync()
	}()
	return svc
}

func newService(version string, cfg *config.Config, build BuildFunc) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		startTime: time.Now(),
		version:   version,
		config:    cfg,
		build:     build,
		auth:      NewTokenAuth(cfg.AuthToken),
		limiter:   NewClientLimiter(cfg.RateLimit, cfg.RateBurst),
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
	}
	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// initializeAsync builds the components and marks the service ready.
func (s *Service) initializeAsync() {
	log.Info().Msg("Starting async initialization...")

	if err := config.EnsureAll(); err != nil {
		s.setInitError(fmt.Errorf("ensure data dir: %w", err))
		return
	}

	comps, err := s.build(s.getConfig())
	if err != nil {
		s.setInitError(fmt.Errorf("build components: %w", err))
		return
	}
	s.setComponents(comps)
	log.Info().Msg("Async initialization complete - service ready")

	s.startWatchers()
}

// setComponents installs comps and marks the service ready.
func (s *Service) setComponents(comps *app.Components) {
	s.initMu.Lock()
	s.components = comps
	s.initError = nil
	s.initMu.Unlock()
	s.ready.Store(true)
}

func (s *Service) getComponents() *app.Components {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.components
}

func (s *Service) getConfig() *config.Config {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.config
}

func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	log.Error().Err(err).Msg("Async initialization failed")
}

// GetInitError returns any initialization error.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

// WaitReady blocks until the service is ready, initialization fails or ctx ends.
func (s *Service) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(ReadyPollInterval)
	defer ticker.Stop()
	for {
		if s.ready.Load() {
			return nil
		}
		if err := s.GetInitError(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// startWatchers reloads the configuration whenever the settings file changes.
func (s *Service) startWatchers() {
	configPath := config.SettingsPath()
	w, err := watcher.New(configPath, func() {
		log.Info().Str("path", configPath).Msg("Config file changed, reloading...")
		s.reloadConfig()
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
		return
	}
	s.initMu.Lock()
	if s.ctx.Err() != nil {
		s.initMu.Unlock()
		_ = w.Stop()
		return
	}
	s.configWatcher = w
	s.initMu.Unlock()
	log.Info().Str("path", configPath).Msg("Config file watcher started")
}

// reloadConfig rebuilds the components from the new settings and swaps them
// in. On failure the running components stay in place. Listener, auth and
// rate limit settings only change on restart. Reloads after Shutdown are ignored.
func (s *Service) reloadConfig() {
	if s.ctx.Err() != nil {
		return
	}

	cfg, err := config.Reload()
	if err != nil {
		log.Error().Err(err).Msg("Config reload failed, keeping current settings")
		return
	}

	comps, err := s.build(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Rebuilding components failed, keeping current ones")
		return
	}

	// Shutdown cancels s.ctx under initMu, so a swap seen here happens before
	// its wg.Wait and the retire goroutine is accounted for.
	s.initMu.Lock()
	if s.ctx.Err() != nil {
		s.initMu.Unlock()
		if err := comps.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing unused components failed")
		}
		return
	}
	old := s.components
	s.components = comps
	s.config = cfg
	if old != nil {
		s.wg.Add(1)
	}
	s.initMu.Unlock()

	if old != nil {
		go s.retire(old)
	}
	log.Info().Msg("Configuration reloaded")
}

// retire closes replaced components once in-flight requests had time to
// finish. The caller has already added it to s.wg.
func (s *Service) retire(old *app.Components) {
	defer s.wg.Done()
	select {
	case <-time.After(retireDelay):
	case <-s.ctx.Done():
	}
	if err := old.Close(); err != nil {
		log.Warn().Err(err).Msg("Closing replaced components failed")
	}
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(SecurityHeaders(nil))
	s.router.Use(s.auth.Middleware)
	s.router.Use(RateLimit(s.limiter))
	s.router.Use(MaxBodySize(s.config.MaxBodyBytes))
	s.router.Use(RequireJSONContentType)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/ready", s.handleReady)
	s.router.Get("/api/models", s.handleModels)
	s.router.Post("/api/dedupe", s.handleDedupe)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Post("/api/group", s.handleGroup)
		r.Get("/api/analytics/{orgID}", s.handleAnalytics)
		r.Get("/api/stats", s.handleStats)
	})
}

// Handler returns the HTTP handler, for embedding the service in tests or
// another server.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server in the background.
func (s *Service) Start() error {
	addr := net.JoinHostPort(s.config.WorkerHost, strconv.Itoa(s.config.WorkerPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.auth.Enabled()).
		Msg("Worker HTTP server started (initialization in progress)")
	return nil
}

// Addr returns the listening address once Start has succeeded.
func (s *Service) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Shutdown stops the config watcher and the server, waits for background
// work, then closes the components.
func (s *Service) Shutdown(ctx context.Context) error {
	s.initMu.Lock()
	s.cancel()
	w := s.configWatcher
	s.initMu.Unlock()
	if w != nil {
		_ = w.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if comps := s.getComponents(); comps != nil {
		if err := comps.Close(); err != nil {
			log.Error().Err(err).Msg("Closing components failed")
		}
	}

	log.Info().Msg("Worker service shutdown complete")
	return nil
}
