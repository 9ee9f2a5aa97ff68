/*
Package main is the entry point for the relay chat server.

It loads configuration, initializes the global logger, opens the database and blob store,
starts the hub and the HTTP server, and shuts everything down in order on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/db"
	"relaychat/internal/app/history"
	"relaychat/internal/app/mail"
	"relaychat/internal/app/storage"
	"relaychat/internal/app/user"
	"relaychat/internal/configs"
	"relaychat/internal/handler"
	"relaychat/internal/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("s3_storage", cfg.UseS3()).
		Bool("smtp", cfg.SMTPHost != "").
		Bool("admin_enabled", cfg.AdminPassphrase != "").
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	defer pool.Close()

	users := user.NewPGStore(pool)

	messages, err := history.Open(ctx, history.NewPGStore(pool), history.DefaultCapacity)
	if err != nil {
		logx.Fatal(err, "Failed to load message history")
	}

	blobs, err := storage.NewStorageService(ctx, storage.ServiceConfig{
		LocalDir:          cfg.UploadDir,
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize upload storage")
	}

	mailer := mail.NewSender(mail.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		PublicURL: cfg.PublicURL,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := chat.NewHub(
		chat.Options{
			JWTSecret:       cfg.JWTSecret,
			AdminPassphrase: cfg.AdminPassphrase,
		},
		chat.Deps{
			Users:   users,
			History: messages,
			Blobs:   blobs,
			Mailer:  mailer,
			Metrics: chat.NewMetrics(registry),
		},
	)

	router := handler.Router(ctx, &handler.AppDeps{
		Hub:            hub,
		Users:          users,
		StorageService: blobs,
		Config:         cfg,
		Metrics:        registry,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info("Relay chat server starting", "addr", serverAddr, "public_url", cfg.PublicURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server did not drain in time")
	}

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Hub shutdown interrupted")
	}

	logx.Info("Server gracefully stopped.")
}
