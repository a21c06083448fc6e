package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gravitate-health/user-orchestrator/internal/config"
	"github.com/gravitate-health/user-orchestrator/internal/fhirstore"
	"github.com/gravitate-health/user-orchestrator/internal/keycloak"
	"github.com/gravitate-health/user-orchestrator/internal/platform/middleware"
	"github.com/gravitate-health/user-orchestrator/internal/profile"
	"github.com/gravitate-health/user-orchestrator/internal/registration"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "user-server",
		Short: "User registration orchestration server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the registration API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Backend clients
	kcCfg := keycloak.Config{
		BaseURL:  cfg.KeycloakBaseURL,
		Realm:    cfg.KeycloakRealm,
		ClientID: cfg.KeycloakClientID,
		Username: cfg.ServiceUsername,
		Password: cfg.ServicePassword,
		Timeout:  cfg.UpstreamTimeout(),
	}
	tokens := keycloak.NewTokenProvider(kcCfg, logger)
	identities := keycloak.New(kcCfg, tokens, logger)
	profiles := profile.New(cfg.ProfileBaseURL, cfg.UpstreamTimeout(), tokens, logger)
	records := fhirstore.New(cfg.FHIRPatientURL, cfg.UpstreamTimeout(), tokens, logger)

	metrics := registration.NewMetrics(prometheus.DefaultRegisterer)
	svc := registration.NewService(tokens, identities, profiles, records, logger, metrics)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	registration.NewHandler(svc).RegisterRoutes(e.Group(""))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
