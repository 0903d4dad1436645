package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"talkify/api"
	"talkify/auth"
	"talkify/delivery"
	"talkify/moderation"
	"talkify/observability"
	"talkify/presence"
	"talkify/repositories"
	"talkify/runtime/workers"
	"talkify/search"
	"talkify/services"
	"talkify/translate"
	"talkify/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer executes before the process
// exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + search index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.SearchIndexPath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() { _ = index.Close() }()

	// 3. Domain components
	users := repositories.NewUserRepository(db)
	convs := repositories.NewConversationRepository(db)
	messages := repositories.NewMessageRepository(db, log)

	blacklist, err := moderation.LoadBlacklist()
	if err != nil {
		return fmt.Errorf("loading moderation blacklist failed: %w", err)
	}
	moderator, err := moderation.NewModerator(blacklist.Words, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("building moderator failed: %w", err)
	}

	translator := translate.NewOpenRouterClient(log, translate.ClientConfig{
		APIKey:           config.OpenRouterAPIKey,
		Model:            config.OpenRouterModel,
		Referer:          config.OpenRouterReferer,
		DetectTimeout:    config.DetectTimeout,
		TranslateTimeout: config.TranslateTimeout,
	})
	if config.OpenRouterAPIKey == "" {
		log.Warn("No OpenRouter API key configured, translation degrades to pass-through")
	}

	monitor := observability.NewMonitor(log)
	registry := presence.NewRegistry()
	gateway := ws.NewGateway(log)

	engine := delivery.NewEngine(delivery.EngineParams{
		Users:      users,
		Convs:      convs,
		Messages:   messages,
		Translator: translator,
		Registry:   registry,
		Gateway:    gateway,
		Moderator:  &moderator,
		Index:      index,
		Monitor:    monitor,
		Log:        log,
	})

	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenTTL)
	wsServer := ws.NewServer(engine, tokens, gateway, log)
	restAPI := api.New(api.Params{
		AuthService: services.NewAuthService(users, tokens),
		Tokens:      tokens,
		Users:       users,
		Convs:       convs,
		Messages:    messages,
		Engine:      engine,
		Index:       index,
		Monitor:     monitor,
		Log:         log,
	})

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers under supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewHeartbeatWorker(log, monitor),
		workers.NewBadgerGCWorker(log, db),
	)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP server: REST routes plus the websocket endpoint
	router := restAPI.Router()
	router.HandleFunc("/ws", wsServer.Handle)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "err", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
