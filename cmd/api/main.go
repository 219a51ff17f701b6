package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gavel/api/internal/app"
	"gavel/api/internal/config"
	"gavel/api/internal/evidence"
	"gavel/api/internal/judge"
	"gavel/api/internal/notify"
	"gavel/api/internal/search"
	"gavel/api/internal/session"
	"gavel/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	objects, err := evidence.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("object storage connection failed: %v", err)
	}

	var engine *judge.Engine
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := judge.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("model client init failed: %v", err)
		}
		engine = judge.New(client, cfg.JudgeAttempts, cfg.JudgeRetryDelay)
	} else {
		log.Printf("GEMINI_API_KEY not set; judgment requests will return 503")
	}

	pgCases := search.NewPgCases(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgCases)

	// Redis carries refresh sessions and case event fan-out when available;
	// without it sessions live in Postgres and events stay in-process.
	var service *app.Service
	var notifier notify.Notifier
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisSessions, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisSessions.Close()

		redisNotifier, err := notify.NewRedisNotifier(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis notifier failed: %v", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier

		log.Printf("Using Redis for refresh tokens and case events")
		service = app.NewWithSessionStore(cfg, dataStore, redisSessions, objects, engine, notifier, searchService)
	} else {
		log.Printf("Using PostgreSQL for refresh tokens; case events stay in-process")
		notifier = notify.NewLocalNotifier()
		service = app.New(cfg, dataStore, objects, engine, notifier, searchService)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	// No WriteTimeout: the events endpoint holds streaming responses open.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Gavel API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
