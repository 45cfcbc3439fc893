package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"handoff-backend/config"
	"handoff-backend/internal/access"
	"handoff-backend/internal/ack"
	"handoff-backend/internal/api"
	"handoff-backend/internal/audit"
	"handoff-backend/internal/db"
	"handoff-backend/internal/handoff"
	"handoff-backend/internal/mw"
	"handoff-backend/internal/notification"
	"handoff-backend/internal/store"
	"handoff-backend/internal/sweeper"
)

func main() {
	logger := log.New(os.Stdout, "handoffd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if len(cfg.Auth.JWTSecret) < 32 {
		logger.Fatalf("auth.jwt_secret must be at least 32 characters")
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Printf("VAPID keys are not configured; push deliveries will fail and only in-app notifications are recorded")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var directory access.Directory = access.NewTableDirectory(gormDB)
	if cfg.Access.DirectoryURL != "" {
		directory = access.NewHTTPDirectory(cfg.Access.DirectoryURL, cfg.Access.DirectoryProxy)
		logger.Printf("using assignment directory at %s", cfg.Access.DirectoryURL)
	}
	directory = access.NewCachedDirectory(directory, time.Duration(cfg.Access.CacheTTLSeconds)*time.Second)
	policy := access.NewPolicy(directory, cfg.Access.AdminReadOverride)

	ledger := audit.NewGormLedger(gormDB)
	handoffs := store.NewHandoffStore(gormDB, ledger, store.Limits{
		ShiftTypes:          cfg.Handoff.ShiftTypes,
		MaxVoiceNotes:       cfg.Handoff.MaxVoiceNotes,
		MaxVoiceNoteSeconds: cfg.Handoff.MaxVoiceNoteSeconds,
	})
	subs := store.NewSubscriptionStore(gormDB, ledger)
	records := store.NewRecordStore(gormDB)
	logger.Println("data stores initialized")

	dispatcher := notification.NewDispatcher(handoffs, subs, records, &notification.WebPushSender{}, notification.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subject:         cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
		TokenLifetime:   cfg.Push.TokenLifetime,
		Concurrency:     cfg.Push.Concurrency,
		DefaultEnabled:  *cfg.Push.DefaultEnabled,
	})
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, dispatcher)
	poolCtx, stopPool := context.WithCancel(context.Background())
	pool.Start(poolCtx)

	acks := ack.NewService(handoffs, policy, pool)
	svc := handoff.NewService(handoffs, subs, records, policy, acks)

	sweeperSvc := sweeper.NewService(&cfg.Handoff, handoffs)
	go sweeperSvc.Run(ctx)

	tokens := mw.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	router := api.NewRouter(api.NewHandler(svc, cfg.Push.PublicKey), tokens, cfg.Server)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	// Accepted acknowledgments are already committed; drain what is queued
	// so their pushes still go out.
	stopPool()
	pool.Wait()

	logger.Println("Server gracefully stopped")
}
