package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elearning-chatbot-be/internal/bootstrap"
	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/internal/server"
	"elearning-chatbot-be/internal/tracer"
	"elearning-chatbot-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	if err := cfg.Validate(); err != nil {
		sysLogger.Error("MAIN", "Invalid configuration", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, cfg.App.Name, sysLogger)

	// 3. Database
	gormDB, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		sysLogger.Error("MAIN", "Unable to open database", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		sysLogger.Error("MAIN", "Failed to build container", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	// 5. Background Services
	ctx, cancel := context.WithCancel(context.Background())
	if err := container.ConsumerService.Consume(ctx); err != nil {
		sysLogger.Error("MAIN", "Knowledge consumer failed to start", map[string]interface{}{"error": err})
	}
	if container.CourseSync != nil {
		if err := container.CourseSync.Start(ctx); err != nil {
			sysLogger.Warn("MAIN", "Course sync subscription failed", map[string]interface{}{"error": err})
		}
	}
	container.Janitor.Start(ctx)

	// 6. Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("MAIN", "Server stopped", map[string]interface{}{"error": err})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sysLogger.Info("MAIN", "Shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Warn("MAIN", "Server shutdown incomplete", map[string]interface{}{"error": err})
	}
	container.Janitor.Stop()
	cancel()
	if err := container.Close(); err != nil {
		sysLogger.Warn("MAIN", "Failed to release resources", map[string]interface{}{"error": err})
	}
	if gormDB != nil {
		_ = database.Close(gormDB)
	}
	_ = shutdownTracer(shutdownCtx)
}
