package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"plantbot/internal/config"
	"plantbot/internal/handlers"
	"plantbot/internal/middleware"
	"plantbot/internal/notify"
	"plantbot/internal/pipeline"
	"plantbot/internal/scheduler"
	"plantbot/internal/sensor"
	"plantbot/internal/store"
)

func main() {
	configPath := flag.String("config", ".", "path to the configuration file directory")
	pretty := flag.Bool("pretty", false, "human-readable console log output")
	flag.Parse()

	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Info().Msg("starting plant telemetry bot")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load reference timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище
	storeClient, err := store.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer storeClient.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	// Детектор поднимает последний токен из хранилища, чтобы рестарт
	// не обрабатывал последний снапшот повторно
	tracker := sensor.NewTracker(storeClient)
	if err := tracker.Hydrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to hydrate change tracker")
	}

	fetcher := sensor.NewFetcher(cfg.Sensor.URL, cfg.Sensor.Timeout, loc)
	notifier := notify.NewClient(cfg.Line.APIBase, cfg.Line.AccessToken, cfg.Line.Timeout)

	driver := pipeline.NewDriver(fetcher, tracker, storeClient, notifier, cfg.Alerts, loc)

	// Планировщик: опрос сенсора + дневная сводка
	sched := scheduler.New(driver, cfg.Sensor.PollInterval, cfg.Summary.Hour, cfg.Summary.Minute, loc)
	go sched.Run(ctx)

	// HTTP surface
	handler := handlers.NewHandler(driver, storeClient, notifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", handler.Callback)
	mux.HandleFunc("/health", handler.HealthCheck)
	mux.HandleFunc("/stats", handler.GetStats)
	mux.Handle("/prometheus", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.RequestLogger(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped gracefully")
}
