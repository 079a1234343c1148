package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tm-signals/signals_service/docs"
	"github.com/tm-signals/signals_service/internal/api/routes"
	"github.com/tm-signals/signals_service/internal/infrastructure/config"
	"github.com/tm-signals/signals_service/internal/infrastructure/di"
	"github.com/tm-signals/signals_service/pkg/logger"
	"github.com/tm-signals/signals_service/pkg/tracing"
	"github.com/tm-signals/signals_service/pkg/version"
)

// @title Signals Service API
// @version 1.0
// @description Crypto market signals, portfolio analytics and paper trading

// @host localhost:5000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	log.Infow("Starting signals service", "version", version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  version.Service,
		Version:      version.Version,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Insecure:     cfg.Tracing.Insecure,
		SampleRate:   cfg.Tracing.SampleRate,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to set up tracing", "error", err)
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	docs.SwaggerInfo.Version = version.Version

	// Build dependency injection container
	container, err := di.NewContainer(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}
	defer container.Close()

	router := routes.SetupRoutes(container)

	go container.Hub.Run()

	if err := container.Scheduler.Start(); err != nil {
		log.Fatal("Failed to start digest scheduler", "error", err)
	}

	var workers sync.WaitGroup
	if container.Telegram != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := container.Telegram.Run(ctx); err != nil {
				log.Errorw("Telegram transport stopped", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Infow("Starting server", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Info("Stopping digest scheduler...")
	if err := container.Scheduler.Stop(shutdownCtx); err != nil {
		log.Warnw("Error stopping scheduler", "error", err)
	}

	container.Hub.Stop()
	workers.Wait()

	// Last chance to persist anything a failed save left behind
	if err := container.Portfolios.Save(shutdownCtx); err != nil {
		log.Errorw("Failed to save portfolios on shutdown", "error", err)
	}
	if err := container.Subscriptions.Save(shutdownCtx); err != nil {
		log.Errorw("Failed to save subscriptions on shutdown", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warnw("Error flushing traces", "error", err)
	}

	log.Info("Server exited")
}
