package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/zcancio/aide-sub002/internal/auth"
	"github.com/zcancio/aide-sub002/internal/config"
	"github.com/zcancio/aide-sub002/internal/httputil"
	"github.com/zcancio/aide-sub002/internal/llm/prompt"
	"github.com/zcancio/aide-sub002/internal/llm/stream"
	"github.com/zcancio/aide-sub002/internal/llm/stream/mock"
	"github.com/zcancio/aide-sub002/internal/middleware"
	"github.com/zcancio/aide-sub002/internal/orchestrator"
	"github.com/zcancio/aide-sub002/internal/session"
	"github.com/zcancio/aide-sub002/internal/store"
	storepg "github.com/zcancio/aide-sub002/internal/store/postgres"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting", "environment", cfg.Environment, "port", cfg.Port, "use_mock_llm", cfg.UseMockLLM)

	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := storepg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer pool.Close()
		tables := storepg.NewTables(envTablePrefix(cfg.Environment))
		st = storepg.New(pool, tables)
		logger.Info("database connected")
	} else {
		st = store.NewMemory()
		logger.Warn("DATABASE_URL not set, using in-process memory store")
	}

	assembler := prompt.NewAssembler(prompt.DefaultPrompts(), cfg.HistoryWindowTurns)

	settings := orchestrator.Settings{
		Fast: orchestrator.TierSetting{
			Model: cfg.ModelFast, Timeout: time.Duration(cfg.TierTimeoutMsFast) * time.Millisecond,
			Pricing: tierPricing(cfg.PriceFast),
		},
		Structural: orchestrator.TierSetting{
			Model: cfg.ModelStructural, Timeout: time.Duration(cfg.TierTimeoutMsStructural) * time.Millisecond,
			Pricing: tierPricing(cfg.PriceStructural),
		},
		Analyst: orchestrator.TierSetting{
			Model: cfg.ModelAnalyst, Timeout: time.Duration(cfg.TierTimeoutMsAnalyst) * time.Millisecond,
			Pricing: tierPricing(cfg.PriceAnalyst),
		},
		BatchFlushTimeout:       time.Duration(cfg.BatchFlushTimeoutMs) * time.Millisecond,
		ParseFailureStreakLimit: cfg.ParseFailureStreakLimit,
	}

	rec := telemetry.NewSlogRecorder(logger, 256)
	defer rec.Close()

	var provider stream.Provider
	if cfg.UseMockLLM {
		provider = mock.New(cfg.MockGoldenDir, mock.Profile(cfg.MockProfile))
		logger.Info("using mock LLM provider", "golden_dir", cfg.MockGoldenDir, "profile", cfg.MockProfile)
	} else {
		p, err := stream.NewAnthropicProvider(cfg.AnthropicAPIKey)
		if err != nil {
			log.Fatalf("llm provider: %v", err)
		}
		provider = p
	}

	orch := orchestrator.New(assembler, provider, st, rec, logger, settings)

	mgr := session.NewManager(orch, st, assembler, rec, settings, session.MockConfig{
		Enabled: cfg.UseMockLLM, GoldenDir: cfg.MockGoldenDir, Default: mock.Profile(cfg.MockProfile),
	}, logger)

	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go mgr.StartCleanup(cleanupCtx)

	handler := session.NewHandler(mgr)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /v1/message", handler.HandleMessage)
	mux.HandleFunc("POST /v1/direct_edit", handler.HandleDirectEdit)
	mux.HandleFunc("POST /v1/turns/{turn_id}/interrupt", handler.HandleInterrupt)
	mux.HandleFunc("GET /v1/turns/{turn_id}/stream", handler.HandleStream)
	mux.HandleFunc("POST /v1/set_profile", handler.HandleSetProfile)

	var authMiddleware func(http.Handler) http.Handler
	if cfg.JWKSURL != "" {
		verifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("auth: %v", err)
		}
		defer verifier.Close()
		authMiddleware = middleware.Auth(verifier)
	} else {
		logger.Warn("JWKS_URL not set, using fixed test identity for every request")
		authMiddleware = middleware.TestAuth("test-user")
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})

	var root http.Handler = mux
	root = authMiddleware(root)
	root = middleware.Recovery(logger)(root)
	root = corsHandler.Handler(root)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: root,
	}

	logger.Info("server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}

func tierPricing(p config.TierPricing) orchestrator.Pricing {
	return orchestrator.Pricing{
		InputPerMTok:      p.InputPerMTok,
		OutputPerMTok:     p.OutputPerMTok,
		CacheReadPerMTok:  p.CacheReadPerMTok,
		CacheWritePerMTok: p.CacheWritePerMTok,
	}
}

func envTablePrefix(environment string) string {
	switch environment {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}
