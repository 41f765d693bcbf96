package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abdusco/shortly/internal/auth"
	"github.com/abdusco/shortly/internal/db"
	"github.com/abdusco/shortly/internal/handler"
	"github.com/abdusco/shortly/internal/links"
	"github.com/abdusco/shortly/internal/logger"
	"github.com/abdusco/shortly/internal/repo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type Config struct {
	Host         string
	Port         string
	DBPath       string
	BaseURL      string
	AdminCreds   string `json:"-"`
	JWTSecret    string `json:"-"`
	ClickTimeout time.Duration
	CodeAttempts int
	LogLevel     string
	Debug        bool
}

func newConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:       os.Getenv("HOST"),
		Port:       cmp.Or(os.Getenv("PORT"), "8080"),
		DBPath:     cmp.Or(os.Getenv("DB_PATH"), "shortly.db"),
		AdminCreds: os.Getenv("ADMIN_CREDENTIALS"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		LogLevel:   cmp.Or(os.Getenv("LOG_LEVEL"), "info"),
		Debug:      os.Getenv("DEBUG") == "1",
	}
	cfg.BaseURL = cmp.Or(os.Getenv("BASE_URL"), "http://localhost:"+cfg.Port)

	var err error
	cfg.ClickTimeout, err = time.ParseDuration(cmp.Or(os.Getenv("CLICK_TIMEOUT"), links.DefaultClickTimeout.String()))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CLICK_TIMEOUT: %w", err)
	}

	cfg.CodeAttempts, err = strconv.Atoi(cmp.Or(os.Getenv("CODE_ATTEMPTS"), strconv.Itoa(links.DefaultAttempts)))
	if err != nil || cfg.CodeAttempts < 1 {
		return Config{}, fmt.Errorf("invalid CODE_ATTEMPTS: must be a positive integer")
	}

	if cfg.AdminCreds != "" && cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.AdminCreds
		log.Warn().Msg("using ADMIN_CREDENTIALS as JWT_SECRET - set JWT_SECRET for production")
	}

	return cfg, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := newConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration from environment")
	}

	if err := logger.Setup(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logger")
	}

	log.Info().
		Interface("config", cfg).
		Msg("current configuration")

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	var authenticator *auth.Authenticator
	if cfg.AdminCreds != "" {
		credentials, err := auth.NewCredentials(cfg.AdminCreds)
		if err != nil {
			return fmt.Errorf("failed to parse admin credentials: %w", err)
		}
		authenticator = auth.NewAuthenticator(credentials, cfg.JWTSecret)
	} else {
		log.Warn().Msg("admin API is unauthenticated - set ADMIN_CREDENTIALS to protect it")
	}

	dbInstance, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbInstance.Close()

	service := links.NewService(
		repo.NewLinksRepo(dbInstance),
		links.WithAttempts(cfg.CodeAttempts),
		links.WithClickTimeout(cfg.ClickTimeout),
	)

	e := echo.New()
	defer e.Close()

	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler.RegisterRoutes(e, handler.NewLinkHandler(service, cfg.BaseURL), authenticator)

	address := cfg.Host + ":" + cfg.Port
	log.Info().Str("address", address).Str("base_url", cfg.BaseURL).Msg("server starting")

	return runServer(ctx, e, address)
}

func runServer(ctx context.Context, e *echo.Echo, address string) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(address)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
	return nil
}
