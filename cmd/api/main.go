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

	"github.com/capitalize-ai/alpine-chat/internal/auth"
	"github.com/capitalize-ai/alpine-chat/internal/config"
	"github.com/capitalize-ai/alpine-chat/internal/handler"
	"github.com/capitalize-ai/alpine-chat/internal/llm"
	natsclient "github.com/capitalize-ai/alpine-chat/internal/nats"
	"github.com/capitalize-ai/alpine-chat/internal/service"
	"github.com/capitalize-ai/alpine-chat/internal/store"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
	"github.com/capitalize-ai/alpine-chat/pkg/tracing"
)

const serviceName = "alpine-chat"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewFor(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting API server",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreDriver),
		zap.String("llm_provider", cfg.LLMProvider),
	)

	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	repo, err := store.Open(openCtx, store.Options{
		Driver:        cfg.StoreDriver,
		SQLitePath:    cfg.SQLitePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	// Events are optional; without NATS they are dropped.
	var (
		events     service.EventPublisher = service.NopPublisher{}
		natsHealth handler.Pinger
	)
	if cfg.NATSURL != "" {
		natsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err := natsclient.Connect(natsCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			cancel()
			return err
		}
		defer natsClient.Close()

		if err := natsclient.EnsureStream(natsCtx, natsClient.JetStream()); err != nil {
			cancel()
			return err
		}
		cancel()
		events = natsclient.NewPublisher(natsClient.JetStream())
		natsHealth = natsClient
	} else {
		log.Info("NATS_URL not set, conversation events disabled")
	}

	llmClient, err := llm.New(ctx, llmConfig(cfg))
	if errors.Is(err, llm.ErrNotConfigured) {
		log.Warn("LLM provider not configured, chat replies will fail with 503",
			zap.String("provider", cfg.LLMProvider))
	} else if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	guarded := llm.NewGuarded(llmClient, cfg.LLMTimeout)

	authSvc := auth.NewService(repo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration), log)
	conversationSvc := service.NewConversationService(repo, events, log)
	chatSvc := service.NewChatService(repo, guarded, events, service.ChatConfig{
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
	}, log)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:                  handler.NewAuthHandler(authSvc, log),
		Conversations:         handler.NewConversationHandler(conversationSvc, log),
		Chat:                  handler.NewChatHandler(chatSvc, cfg.MaxUploadBytes, log),
		Health:                handler.NewHealthHandler(repo, natsHealth, guarded.Name(), guarded.Configured(), log),
		Verifier:              authSvc,
		Logger:                log,
		CORSOrigins:           cfg.CORSOrigins,
		RateLimitRequests:     cfg.RateLimitRequests,
		AuthRateLimitRequests: cfg.AuthRateLimitRequests,
		RateLimitWindow:       cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Allow in-flight exchanges to finish their model call.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func llmConfig(cfg *config.Config) llm.Config {
	c := llm.Config{
		Provider: llm.Provider(cfg.LLMProvider),
		Model:    cfg.LLMModel,
	}
	switch c.Provider {
	case llm.ProviderGemini:
		c.APIKey = cfg.GeminiAPIKey
	case llm.ProviderAnthropic:
		c.APIKey = cfg.AnthropicAPIKey
	case llm.ProviderOpenAI:
		c.APIKey = cfg.OpenAIAPIKey
		c.BaseURL = cfg.OpenAIBaseURL
	case llm.ProviderOllama:
		c.BaseURL = cfg.OllamaURL
	}
	return c
}
