package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	catHnd "pricing-service/internal/catalog/handler"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/config"
	"pricing-service/internal/feed"
	"pricing-service/internal/storage/filestore"
	"pricing-service/internal/storage/pgstore"
	serverhttp "pricing-service/server/http"
)

func main() {
	// .env не обязателен
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, maint, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Store).Msg("open store")
	}
	defer closeStore()

	ws := service.NewWorkspace(service.Options{
		Logger:       logger,
		Store:        store,
		Fetcher:      feed.NewHTTPFetcher(cfg.FeedTimeout, cfg.CRMFeedURLs, cfg.PromFeedURLs, logger),
		SaveDebounce: cfg.SaveDebounce,
		ItemsPerPage: cfg.DefaultPageSize,
	})
	if err := ws.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load state")
	}

	api := catHnd.New(ws, maint, cfg.MaxUploadMB, logger)
	r := serverhttp.NewRouter(cfg, logger, api)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr()).Str("store", cfg.Store).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	// отложенное сохранение не должно потеряться
	if err := ws.Flush(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("final save")
	}
	logger.Info().Msg("bye")
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.Store, catHnd.Maintenance, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		s, err := pgstore.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s.Close, nil
	default:
		s, err := filestore.New(cfg.DataDir, cfg.BackupKeep, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() {}, nil
	}
}
