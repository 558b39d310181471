package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jtcarver/portfolio-ledger/internal/analytics"
	"github.com/jtcarver/portfolio-ledger/internal/api"
	"github.com/jtcarver/portfolio-ledger/internal/config"
	"github.com/jtcarver/portfolio-ledger/internal/events"
	"github.com/jtcarver/portfolio-ledger/internal/jobs"
	"github.com/jtcarver/portfolio-ledger/internal/ledger"
	"github.com/jtcarver/portfolio-ledger/internal/quotes"
	"github.com/jtcarver/portfolio-ledger/internal/storage"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Logging)

	log.Info().Msg("Starting portfolio ledger")

	store, cleanup, err := newStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer cleanup()

	provider := newQuoteProvider(cfg, log)

	var publisher ledger.EventPublisher
	if cfg.Kafka.Enabled {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka producer enabled")
	}

	book, err := ledger.New(store, provider, publisher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load portfolio")
	}

	engine := analytics.New(book, cfg.Analytics.RiskFreeRate, log)

	if cfg.Refresh.Enabled {
		refresher := jobs.NewPriceRefresher(book, log)
		if err := refresher.Start(cfg.Refresh.Schedule); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule price refresh")
		}
		defer refresher.Stop()
	}

	handler := api.NewHandler(book, engine, log)
	router := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func newStore(cfg *config.Config, log zerolog.Logger) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendPostgres:
		pg, err := storage.NewPostgresStore(cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(cfg.Storage.MigrationsPath); err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Info().Str("db", cfg.Database.DBName).Msg("Using PostgreSQL storage")
		return pg, func() { pg.Close() }, nil
	default:
		log.Info().Str("file", cfg.Storage.PortfolioFile).Msg("Using JSON file storage")
		return storage.NewFileStore(cfg.Storage.PortfolioFile), func() {}, nil
	}
}

func newQuoteProvider(cfg *config.Config, log zerolog.Logger) quotes.Provider {
	var provider quotes.Provider = quotes.NewAlphaVantageClient(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL, log)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		provider = quotes.NewCachedProvider(provider, rdb, log)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Quote cache enabled")
	}
	return provider
}
