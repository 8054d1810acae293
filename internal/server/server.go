package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pulsecrm/apiserver/config"
	"github.com/pulsecrm/apiserver/internal/auth"
	"github.com/pulsecrm/apiserver/internal/db"
	"github.com/pulsecrm/apiserver/internal/handlers"
	"github.com/pulsecrm/apiserver/internal/services"
	"github.com/pulsecrm/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer  *http.Server
	router      *chi.Mux
	db          *db.DB
	logger      *zap.Logger
	stopSweeper context.CancelFunc
}

// New constructs a Server with its full dependency graph: database,
// repositories, services, token issuer, user cache (with its periodic
// sweeper), revocation registry, and the authentication gate.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)

	userCache := auth.NewUserCache(cfg.Auth.CacheTTL, cfg.Auth.CacheCapacity)
	registry := auth.NewRegistry(cfg.Auth.RevocationLimit)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	recorder := auth.NewZapRecorder(logger.Named("audit"))

	userService := services.NewUserService(userRepo, userCache)
	gate := auth.NewGate(issuer, userCache, registry, userService, recorder).Middleware()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	userCache.StartSweeper(sweepCtx, cfg.Auth.SweepInterval)

	authHandler := handlers.NewAuthHandler(userService, issuer, registry)
	userHandler := handlers.NewUserHandler(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, gate)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, gate)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer:  httpServer,
		router:      router,
		db:          dbConn,
		logger:      logger,
		stopSweeper: stopSweeper,
	}, nil
}

// Router exposes the chi router for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the sweeper, closes the database, and shuts the
// HTTP server down.
func (s *Server) Shutdown() error {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.logger.Sync()
	return s.httpServer.Close()
}

// NewLogger builds the process logger: console output in dev,
// production JSON otherwise.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == "dev" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
