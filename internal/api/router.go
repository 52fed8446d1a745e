package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/api/handler"
	customMiddleware "github.com/Rrens/hospital-scheduler/internal/api/middleware"
	"github.com/Rrens/hospital-scheduler/internal/config"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/Rrens/hospital-scheduler/internal/llm"
	"github.com/Rrens/hospital-scheduler/internal/llm/anthropic"
	"github.com/Rrens/hospital-scheduler/internal/llm/gemini"
	"github.com/Rrens/hospital-scheduler/internal/llm/ollama"
	"github.com/Rrens/hospital-scheduler/internal/llm/openai"
	"github.com/Rrens/hospital-scheduler/internal/repository/postgres"
	"github.com/Rrens/hospital-scheduler/internal/repository/redis"
	"github.com/Rrens/hospital-scheduler/internal/security"
	"github.com/Rrens/hospital-scheduler/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Dependencies are the wired components behind the HTTP surface.
type Dependencies struct {
	Verifier       *security.TokenVerifier
	Limiter        customMiddleware.Limiter
	Schedules      *service.ScheduleService
	LLM            *llm.Router
	Ready          map[string]handler.Pinger
	Timeout        time.Duration
	AllowedOrigins []string
}

// NewRouter wires every component from configuration and returns the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client) (http.Handler, error) {
	opts := service.OptionsFromConfig(cfg)

	verifier := security.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.Leeway)
	resolver := security.NewContextResolver(cfg.Scheduling.DefaultSpanDays, cfg.Scheduling.MaxSpanDays)

	runRepo := postgres.NewRunRepository(db.Pool)
	resultCache := redis.NewResultCache(redisClient, cfg.Scheduling.ResultTTL)
	if key := cfg.Security.CacheEncryptionKey; key != "" {
		sealer, err := security.NewSealerFromBase64(key)
		if err != nil {
			return nil, fmt.Errorf("security.cache_encryption_key: %w", err)
		}
		resultCache.WithSealer(sealer)
	}
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)

	llmRouter := NewLLMRouter(cfg.LLM)
	aggregator := service.NewAggregator(hospital.NewClient(cfg.HospitalAPI), opts)
	scheduleService := service.NewScheduleService(resolver, aggregator, llmRouter, runRepo, resultCache, opts)

	return Routes(Dependencies{
		Verifier:  verifier,
		Limiter:   rateLimiter,
		Schedules: scheduleService,
		LLM:       llmRouter,
		Ready: map[string]handler.Pinger{
			"postgres": db,
			"redis":    redisClient,
		},
		Timeout:        cfg.Server.MiddlewareTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}), nil
}

// NewLLMRouter registers every provider that has credentials or a host.
func NewLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	if cfg.Ollama.Host != "" {
		router.Register(ollama.NewProvider(cfg.Ollama, cfg.Timeout))
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register(openai.NewProvider(cfg.OpenAI, cfg.Timeout))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register(openai.NewDeepSeek(cfg.DeepSeek, cfg.Timeout))
	}
	if cfg.Anthropic.APIKey != "" {
		router.Register(anthropic.NewProvider(cfg.Anthropic, cfg.Timeout))
	}
	if cfg.Gemini.APIKey != "" {
		router.Register(gemini.NewProvider(cfg.Gemini))
	}

	log.Info().
		Str("default", cfg.DefaultProvider).
		Strs("configured", router.Configured()).
		Msg("llm providers registered")
	return router
}

// Routes builds the chi router over already wired dependencies.
func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Timeout > 0 {
		r.Use(middleware.Timeout(d.Timeout))
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	scheduleHandler := handler.NewScheduleHandler(d.Schedules)
	authMiddleware := customMiddleware.NewAuthMiddleware(d.Verifier)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(d.Ready))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/llm-providers", handler.ListLLMProviders(d.LLM))
			r.Get("/context/validate", scheduleHandler.ValidateContext)

			r.Route("/hospital", func(r chi.Router) {
				r.Get("/hours", scheduleHandler.OperatingHours)
				r.Get("/availability", scheduleHandler.Availability)
			})

			r.Route("/schedule", func(r chi.Router) {
				r.Get("/context", scheduleHandler.Context)
				r.Get("/runs", scheduleHandler.ListRuns)
				r.Get("/runs/{runID}", scheduleHandler.GetRun)

				r.Group(func(r chi.Router) {
					if d.Limiter != nil {
						r.Use(customMiddleware.NewRateLimitMiddleware(d.Limiter).Limit)
					}
					r.Post("/generate", scheduleHandler.Generate)
				})
			})
		})
	})

	return r
}
