// Package main is the entry point for the API server.
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

	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/auth"
	"github.com/archpal/coaching-platform/internal/config"
	"github.com/archpal/coaching-platform/internal/handler"
	"github.com/archpal/coaching-platform/internal/llm"
	"github.com/archpal/coaching-platform/internal/middleware"
	natsclient "github.com/archpal/coaching-platform/internal/nats"
	"github.com/archpal/coaching-platform/internal/service"
	"github.com/archpal/coaching-platform/internal/storage"
	"github.com/archpal/coaching-platform/pkg/logger"
	"github.com/archpal/coaching-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.NewForEnv(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server",
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("write_lock", cfg.WriteLock),
		zap.String("llm_provider", cfg.LLMProvider),
	)

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "archpal-coaching-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	checks := map[string]handler.Checker{}

	// Connect to NATS when the KV backend or the event stream needs it
	var natsClient *natsclient.Client
	if cfg.StoreBackend == config.BackendNATS || cfg.NATSEventsEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()
		checks["nats"] = natsClient
	}

	// Object store and write locks
	objects, closeStore, err := newObjectStore(ctx, cfg, natsClient)
	if err != nil {
		log.Fatal("failed to create object store", zap.Error(err))
	}
	defer closeStore()
	if p, ok := objects.(handler.Checker); ok {
		checks["store"] = p
	}

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		log.Fatal("failed to create write lock", zap.Error(err))
	}
	defer closeLocker()
	if p, ok := locker.(handler.Checker); ok {
		checks["lock"] = p
	}

	store := storage.New(objects, storage.Options{
		Locker:     locker,
		MaxRetries: cfg.StoreMaxRetries,
		Logger:     log,
	})

	// Conversation events
	var events service.EventPublisher
	if cfg.NATSEventsEnabled {
		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events = streamManager
	}

	// Initialize LLM client
	llmClient, err := llm.NewClient(ctx, llm.Provider(cfg.LLMProvider), cfg.APIKey())
	if err != nil {
		log.Fatal("failed to create LLM client", zap.Error(err))
	}

	systemPrompt, err := service.LoadSystemPrompt(cfg.SystemPromptFile)
	if err != nil {
		log.Fatal("failed to load system prompt", zap.Error(err))
	}

	// Initialize services
	controller := service.NewController(store, llmClient, events, service.Config{
		SystemPrompt: systemPrompt,
		Model:        cfg.LLMModel,
		MaxTokens:    cfg.LLMMaxTokens,
		Temperature:  cfg.LLMTemperature,
		HistoryLimit: cfg.HistoryLimit,
	}, log)

	identity, err := auth.NewCognitoProvider(auth.Config{
		Domain:         cfg.CognitoDomain,
		ClientID:       cfg.CognitoClientID,
		ClientSecret:   cfg.CognitoClientSecret,
		RedirectURL:    cfg.CognitoRedirectURL,
		LogoutURL:      cfg.AppBaseURL,
		AllowedDomains: cfg.AllowedEmailDomains,
	})
	if err != nil {
		log.Fatal("failed to create identity provider", zap.Error(err))
	}

	// Initialize handlers
	codec := middleware.NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:            log,
		Codec:             codec,
		Health:            handler.NewHealthHandler(checks),
		Auth:              handler.NewAuthHandler(identity, controller, codec, cfg.AppBaseURL, cfg.CookieSecure, log),
		Profile:           handler.NewProfileHandler(controller, codec, log),
		Conversations:     handler.NewConversationHandler(controller, codec, log),
		Chat:              handler.NewChatHandler(controller, codec, log),
		CORSOrigins:       cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout; in-flight chat turns finish their writes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
