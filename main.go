package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-parser/internal/classifier"
	"doc-parser/internal/config"
	"doc-parser/internal/handlers"
	"doc-parser/internal/llamacloud"
	"doc-parser/internal/localparse"
	"doc-parser/internal/logger"
	"doc-parser/internal/metadata"
	"doc-parser/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug("No .env file found")
	}

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	staging, err := services.NewStagingStore(cfg.Storage.UploadDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare upload directory")
	}
	if err := os.MkdirAll(cfg.Storage.ImagesDir, 0755); err != nil {
		logger.WithError(err).Fatal("Failed to prepare images directory")
	}

	var parser services.Parser
	switch cfg.Parser.Provider {
	case config.ParserLocal:
		parser = localparse.New(localparse.Options{TesseractLang: cfg.Parser.TesseractLang})
	default:
		parser = llamacloud.New(llamacloud.Options{
			APIKey:       cfg.Llama.APIKey,
			BaseURL:      cfg.Llama.BaseURL,
			Language:     cfg.Llama.Language,
			NumWorkers:   cfg.Llama.NumWorkers,
			Timeout:      cfg.Llama.Timeout,
			PollInterval: cfg.Llama.PollInterval,
		})
	}

	textSanitizer := services.NewTextSanitizer()
	processHandler := handlers.NewProcessHandler(
		services.NewUploadValidator(cfg.Storage.MaxUploadBytes),
		staging,
		services.NewDispatcher(parser, cfg.Storage.ImagesDir),
		services.NewErrorClassifier(nil),
		textSanitizer,
	)

	zeroShot, err := classifier.New(cfg.Classifier)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create classifier")
	}
	detectHandler := handlers.NewDetectHandler(zeroShot, cfg.Classifier.Labels, textSanitizer)

	var teamsHandler *handlers.TeamsHandler
	var store *metadata.PostgresSource
	if cfg.Database.Enabled {
		store, err = metadata.OpenPostgres(context.Background(), metadata.PostgresConfig{
			URL:         cfg.Database.URL,
			MaxConns:    cfg.Database.MaxConns,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to configure metadata store")
		}
		defer store.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			// Requests report the outage as 500s; startup goes on.
			logger.WithError(err).Warn("Metadata store unreachable")
		} else if cfg.Database.Migrate {
			if err := store.Migrate(pingCtx); err != nil {
				logger.WithError(err).Fatal("Failed to create metadata schema")
			}
		}
		cancel()
		teamsHandler = handlers.NewTeamsHandler(metadata.NewGateway(store))
	} else {
		teamsHandler = handlers.NewTeamsHandler(nil)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Token:     cfg.Token,
		ImagesDir: cfg.Storage.ImagesDir,
		Process:   processHandler,
		Teams:     teamsHandler,
		Detect:    detectHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":       cfg.Port,
			"parser":     cfg.Parser.Provider,
			"classifier": cfg.Classifier.Provider,
			"metadata":   cfg.Database.Enabled,
		}).Info("Service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
}
