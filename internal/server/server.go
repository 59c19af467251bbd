package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"time"

	"github.com/gorilla/mux"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/ingex/internal/codec"
	"github.com/zsiec/ingex/internal/config"
	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/health"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/matrix"
	"github.com/zsiec/ingex/internal/registry"
)

// Session is the running playback the status API reports on.
type Session interface {
	Session() *registry.Session
	Entries() []matrix.Entry
}

// Deps are the components the status API reads from. Any of them may be nil.
type Deps struct {
	Session  Session
	Pools    *codec.Pools
	Registry registry.Registry
	Checkers []health.Checker
}

// Server is the status HTTP server, with an optional HTTP/3 listener.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	http3Server  *http3.Server
	logger       *logrus.Logger
	deps         Deps
	healthMgr    *health.Manager
	errorHandler *apperrors.ErrorHandler
}

func New(cfg *config.ServerConfig, log *logrus.Logger, deps Deps) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		deps:         deps,
		healthMgr:    health.NewManager(log),
		errorHandler: apperrors.NewErrorHandler(log),
	}
	for _, c := range deps.Checkers {
		s.healthMgr.Register(c)
	}
	s.setupRoutes()
	return s
}

// Health returns the health manager so callers can add checkers.
func (s *Server) Health() *health.Manager { return s.healthMgr }

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.HTTPPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.HTTPPort, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, 30*time.Second)

	errCh := make(chan error, 2)
	go func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("Starting status server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.config.EnableHTTP3 {
		if err := s.startHTTP3(errCh); err != nil {
			s.httpServer.Close()
			return err
		}
	}

	select {
	case err := <-errCh:
		s.Shutdown()
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

func (s *Server) startHTTP3(errCh chan<- error) error {
	cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificates: %w", err)
	}

	s.http3Server = &http3.Server{
		Addr:    fmt.Sprintf(":%d", s.config.HTTP3Port),
		Handler: s.router,
		TLSConfig: &tls.Config{
			MinVersion:   tls.VersionTLS13,
			NextProtos:   []string{"h3"},
			Certificates: []tls.Certificate{cert},
		},
		QUICConfig: &quic.Config{
			MaxIdleTimeout: s.config.MaxIdleTimeout,
		},
	}

	go func() {
		s.logger.WithField("port", s.config.HTTP3Port).Info("Starting HTTP/3 status server")
		if err := s.http3Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return nil
}

// Shutdown stops both listeners.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down status server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	// http3.Server.Close does not drain; the timeout above covers HTTP only
	if s.http3Server != nil {
		if err := s.http3Server.Close(); err != nil {
			errs = append(errs, fmt.Errorf("http3: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/session", s.handleSession).Methods("GET", "OPTIONS")
	api.HandleFunc("/session/connections", s.handleConnections).Methods("GET", "OPTIONS")
	api.HandleFunc("/pools", s.handlePools).Methods("GET", "OPTIONS")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET", "OPTIONS")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET", "OPTIONS")

	if s.config.DebugEndpoints {
		s.setupDebugEndpoints()
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")

	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	s.router.HandleFunc("/debug/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"http3":         s.config.EnableHTTP3,
			"http_port":     s.config.HTTPPort,
			"http3_port":    s.config.HTTP3Port,
			"health_checks": s.healthMgr.Names(),
		})
	}).Methods("GET")
}
