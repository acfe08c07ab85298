package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	importhandler "github.com/Ghost8002/fynance-18-sub001/internal/domain/import/handler"
	importrepo "github.com/Ghost8002/fynance-18-sub001/internal/domain/import/repository"
	importservice "github.com/Ghost8002/fynance-18-sub001/internal/domain/import/service"
	"github.com/Ghost8002/fynance-18-sub001/internal/server"
	"github.com/Ghost8002/fynance-18-sub001/pkg/config"
	"github.com/Ghost8002/fynance-18-sub001/pkg/db"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	repo := importrepo.NewPostgresRepository(database.Pool)
	svc := importservice.NewImportService(repo, logger, cfg.Import.CurrencyCode)
	handler := importhandler.NewHandler(svc, logger, cfg.Import.MaxUploadBytes)

	srv := server.New(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.String("host", cfg.Server.Host),
			slog.Int("port", cfg.Server.Port),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
