package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/lingo-chat/backend/internal/analysis/transcript"
	"github.com/zhouzirui/lingo-chat/backend/internal/auth"
	"github.com/zhouzirui/lingo-chat/backend/internal/config"
	"github.com/zhouzirui/lingo-chat/backend/internal/handler"
	"github.com/zhouzirui/lingo-chat/backend/internal/logging"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/lesson"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/persona"
	"github.com/zhouzirui/lingo-chat/backend/internal/quota"
	"github.com/zhouzirui/lingo-chat/backend/internal/service/ai"
	"github.com/zhouzirui/lingo-chat/backend/internal/service/conversation"
)

const purgeInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("%v", err)
	}
	zap.ReplaceGlobals(logger)

	code := finish(logger, run(ctx, cfg, logger))
	stop()
	os.Exit(code)
}

// finish reports the server result and flushes the logger before exit.
func finish(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server error", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, closeStore, err := newQuotaStore(ctx, cfg.Quota, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ledger := quota.NewLedger(store, cfg.Quota.LedgerConfig(), logger)

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	var lessons lesson.Store
	if path := cfg.Conversation.LessonCatalogPath; path != "" {
		catalog, err := lesson.LoadCatalog(path)
		if err != nil {
			return err
		}
		logger.Info("lesson catalog loaded", zap.String("path", path), zap.Int("lessons", catalog.Len()))
		lessons = catalog
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return err
	}
	engine, err := ai.NewService(ctx, chatModel, logger)
	if err != nil {
		return err
	}

	charge, _ := conversation.ParseChargePolicy(cfg.Conversation.ChargePolicy)
	conversations, err := conversation.NewService(conversation.Dependencies{
		Resolver: resolver,
		Ledger:   ledger,
		Engine:   engine,
		Lessons:  lessons,
		Cache:    transcript.NewCache(),
	}, conversation.Config{
		GenerationTimeout: cfg.Conversation.GenerationTimeout,
		ContextTarget:     cfg.Conversation.ContextTarget,
		ChargePolicy:      charge,
	}, logger)
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.Options{
		Personas:       persona.NewCatalogStore(),
		Conversations:  conversations,
		Quota:          ledger,
		QuotaBackend:   cfg.Quota.Backend,
		CookieName:     cfg.Auth.CookieName,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("lingo chat gateway listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("env", cfg.Env),
		zap.String("quotaBackend", cfg.Quota.Backend),
		zap.String("chargePolicy", string(charge)))
	return runServer(ctx, srv)
}

func newResolver(cfg *config.Config) (auth.Chain, error) {
	var chain auth.Chain
	if secret := cfg.Auth.DevOverrideSecret; secret != "" && !cfg.IsProduction() {
		override, err := auth.NewOverrideResolver(secret)
		if err != nil {
			return nil, err
		}
		chain = append(chain, override)
	}
	if secret := cfg.Auth.SessionSecret; secret != "" {
		verifier, err := auth.NewSessionVerifier(secret)
		if err != nil {
			return nil, err
		}
		chain = append(chain, verifier)
	}
	if len(chain) == 0 {
		return nil, errors.New("no identity resolver configured: set AUTH_SESSION_SECRET")
	}
	return chain, nil
}

func newQuotaStore(ctx context.Context, cfg config.QuotaConfig, logger *zap.Logger) (quota.Store, func(), error) {
	switch cfg.Backend {
	case config.QuotaBackendRedis:
		client, err := cfg.Redis.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		store := quota.NewRedisStore(client, "lingo:quota")
		return store, func() { _ = store.Close() }, nil

	case config.QuotaBackendSQLite:
		store, err := quota.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		purgeCtx, cancel := context.WithCancel(ctx)
		go purgeExpired(purgeCtx, store, logger)
		return store, func() {
			cancel()
			_ = store.Close()
		}, nil

	default:
		logger.Warn("using in-memory quota ledger; counts are lost on restart")
		return quota.NewMemoryStore(), func() {}, nil
	}
}

func purgeExpired(ctx context.Context, store *quota.SQLiteStore, logger *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Warn("quota purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired quota records", zap.Int64("rows", n))
			}
		}
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
