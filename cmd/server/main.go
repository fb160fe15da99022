package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Xean001/tubedrop/internal/adapters/handlers"
	"github.com/Xean001/tubedrop/internal/adapters/metrics"
	"github.com/Xean001/tubedrop/internal/adapters/storage"
	"github.com/Xean001/tubedrop/internal/app"
	"github.com/Xean001/tubedrop/internal/config"
	"github.com/Xean001/tubedrop/internal/core/services"
	"github.com/Xean001/tubedrop/internal/logging"
)

func main() {
	cfg, err := config.Load("tubedrop-server", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal(err)
	}

	// 1. Adapters (Driven)
	provider := app.NewProvider(cfg)
	processor := app.NewProcessor(cfg)
	recorder := metrics.NewRecorder()

	store, err := storage.NewStore(cfg.Workspace.Root, cfg.Workspace.MaxAge.Std())
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Download.OutputDir, storage.DefaultDirPermissions); err != nil {
		log.Fatalf("Could not create output directory: %v", err)
	}

	// 2. Core Service
	dlService := app.NewService(cfg, provider, processor, services.WithObserver(recorder))

	// 3. Adapter (Driving)
	httpHandler := handlers.NewHTTPHandler(dlService, store, handlers.Config{
		Workflow:     cfg.Workflow(),
		OutputDir:    cfg.Download.OutputDir,
		CleanupGrace: cfg.Server.CleanupGrace.Std(),
		AudioMP3:     cfg.Download.AudioMP3,
	}, handlers.WithDeliveryRecorder(recorder), handlers.WithMetricsHandler(recorder.Handler()))

	// 4. Router
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     httpHandler.Router(),
		ReadTimeout: cfg.Server.ReadTimeout.Std(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go store.Janitor(ctx, cfg.Workspace.SweepInterval.Std())

	go func() {
		log.WithFields(log.Fields{
			"addr":     cfg.Server.Addr,
			"provider": cfg.Provider.Backend,
			"workflow": cfg.Download.Workflow,
			"output":   cfg.Download.OutputDir,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
	}
	store.Flush()
	store.Wait()
}
