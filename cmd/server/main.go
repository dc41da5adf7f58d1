package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/docsync/internal/api"
	"github.com/example/docsync/internal/app"
	"github.com/example/docsync/internal/config"
	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/logging"
	"github.com/example/docsync/internal/middleware"
)

func main() {
	// In production, environment variables are set directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	zapLogger, err := logging.New(appConfig.IsRelease(), appConfig.LogLevel)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(appConfig, zapLogger); err != nil {
		zapLogger.Fatal("Server exited with error", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}

func run(appConfig *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(ctx, 15*time.Second)
	defer cancelInit()

	clients, err := db.Open(initCtx, appConfig, zapLogger)
	if err != nil {
		return fmt.Errorf("initialize backends: %w", err)
	}
	defer clients.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hooks, err := app.BuildHooks(initCtx, appConfig, reg, zapLogger)
	if err != nil {
		return fmt.Errorf("initialize mutation hooks: %w", err)
	}
	defer hooks.Close()

	descs, err := app.Descriptors(appConfig)
	if err != nil {
		return fmt.Errorf("build model descriptors: %w", err)
	}

	dispatcher := core.NewDispatcher(zapLogger)
	defer dispatcher.Close()

	registry, err := app.BuildRegistry(clients.Backends, dispatcher, descs, hooks, zapLogger)
	if err != nil {
		return fmt.Errorf("build repositories: %w", err)
	}

	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
	if appConfig.ClientURL == "" {
		zapLogger.Warn("CLIENT_URL is not configured, CORS allows any origin")
	}

	var authMW *middleware.AuthMiddleware
	if appConfig.AuthRequired {
		authMW = middleware.NewAuthMiddleware(clients.Auth, zapLogger)
	}
	api.SetupRoutes(router, registry, zapLogger, authMW, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Query streams end with the signal context instead of holding
		// Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Attempting graceful shutdown of HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
