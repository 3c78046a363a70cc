// Package app assembles the transparency server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clearlabel/transparency/internal/config"
	"github.com/clearlabel/transparency/internal/db"
	"github.com/clearlabel/transparency/internal/http/api"
	"github.com/clearlabel/transparency/internal/logging"
	"github.com/clearlabel/transparency/internal/mail"
	"github.com/clearlabel/transparency/internal/questions"
	"github.com/clearlabel/transparency/internal/ratelimit"
	"github.com/clearlabel/transparency/internal/report"
	"github.com/clearlabel/transparency/internal/service"
	"github.com/clearlabel/transparency/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// setupLogging is replaced in tests.
var setupLogging = logging.Setup

// stores bundles the persistence backends selected by the database DSN.
type stores struct {
	users    store.UserStore
	products store.ProductStore
	close    func(ctx context.Context) error
}

// openStores connects to MongoDB or a GORM database depending on the DSN scheme.
func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	backend, err := db.BackendForDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if backend == db.BackendMongo {
		mongoStore, errOpen := store.OpenMongoStore(ctx, cfg.DSN, cfg.Name)
		if errOpen != nil {
			return nil, errOpen
		}
		return &stores{users: mongoStore, products: mongoStore, close: mongoStore.Close}, nil
	}

	conn, err := db.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		_ = db.Close(conn)
		return nil, errMigrate
	}
	gormStore := store.NewGormStore(conn)
	log.Infof("database ready (%s)", db.DialectName(conn))
	return &stores{
		users:    gormStore,
		products: gormStore,
		close:    func(context.Context) error { return db.Close(conn) },
	}, nil
}

// Migrate opens the configured database and applies the schema.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dbCfg, err := config.LoadDatabaseConfig(configPath)
	if err != nil {
		return err
	}
	s, err := openStores(ctx, dbCfg)
	if err != nil {
		return err
	}
	return s.close(ctx)
}

// Server is a fully wired HTTP server.
type Server struct {
	addr    string
	engine  *gin.Engine
	stores  *stores
	limiter *ratelimit.Manager
	logs    io.Closer
}

// NewServer loads every config section and builds the server components.
func NewServer(ctx context.Context, cfg config.AppConfig) (_ *Server, err error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	logCfg, err := config.LoadLoggingConfig(configPath)
	if err != nil {
		return nil, err
	}
	logs, err := setupLogging(logCfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = logs.Close()
		}
	}()

	serverCfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return nil, err
	}
	dbCfg, err := config.LoadDatabaseConfig(configPath)
	if err != nil {
		return nil, err
	}
	jwtCfg, err := config.LoadJWTConfig(configPath)
	if err != nil {
		return nil, err
	}
	geminiCfg, err := config.LoadGeminiConfig(configPath)
	if err != nil {
		return nil, err
	}
	if geminiCfg.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, products will be created with fallback questions")
	}
	mailCfg, err := config.LoadMailConfig(configPath)
	if err != nil {
		return nil, err
	}
	rateCfg, err := config.LoadRateLimitConfig(configPath)
	if err != nil {
		return nil, err
	}
	archiveCfg, err := config.LoadArchiveConfig(configPath)
	if err != nil {
		return nil, err
	}
	authCfg, err := config.LoadAuthConfig(configPath)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.NewSender(ctx, mailCfg)
	if err != nil {
		return nil, err
	}
	archive, err := report.NewArchive(ctx, archiveCfg)
	if err != nil {
		return nil, err
	}

	s, err := openStores(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewManager(rateCfg, nil, nil)
	otp := service.NewOTPService(s.users, mailer)
	deps := api.Dependencies{
		Auth:            service.NewAuthService(s.users, otp, jwtCfg),
		OTP:             otp,
		Products:        service.NewProductService(s.products, questions.NewGeminiGenerator(geminiCfg)),
		Limiter:         limiter,
		Health:          s.products,
		ProtectProducts: authCfg.ProtectProducts,
	}
	if archive != nil {
		deps.Archive = archive
	}

	if !logCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinLogger())
	engine.Use(api.CORSMiddleware())
	api.RegisterRoutes(engine, deps)

	log.WithFields(log.Fields{
		"config":      configPath,
		"mail":        mailCfg.Provider,
		"rate_limit":  rateCfg.Limit,
		"archive":     archiveCfg.Enabled(),
		"protect_api": authCfg.ProtectProducts,
	}).Info("server configured")

	return &Server{
		addr:    serverCfg.Addr(),
		engine:  engine,
		stores:  s,
		limiter: limiter,
		logs:    logs,
	}, nil
}

// Handler exposes the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.release()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s", s.addr)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", errListen)
	}
	log.Info("server stopped")
	return nil
}

func (s *Server) release() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errClose := s.stores.close(ctx); errClose != nil {
		log.WithError(errClose).Warn("close store failed")
	}
	if errClose := s.limiter.Close(); errClose != nil {
		log.WithError(errClose).Warn("close rate limiter failed")
	}
	if errClose := s.logs.Close(); errClose != nil {
		log.WithError(errClose).Warn("close log file failed")
	}
}

// RunServer builds and runs the server.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	srv, err := NewServer(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
