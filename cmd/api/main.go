package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/dealfinder/internal/bot"
	"github.com/GTDGit/dealfinder/internal/cache"
	"github.com/GTDGit/dealfinder/internal/collage"
	"github.com/GTDGit/dealfinder/internal/config"
	"github.com/GTDGit/dealfinder/internal/database"
	"github.com/GTDGit/dealfinder/internal/events"
	"github.com/GTDGit/dealfinder/internal/handler"
	"github.com/GTDGit/dealfinder/internal/metrics"
	"github.com/GTDGit/dealfinder/internal/middleware"
	"github.com/GTDGit/dealfinder/internal/repository"
	"github.com/GTDGit/dealfinder/internal/service"
	"github.com/GTDGit/dealfinder/internal/sse"
	"github.com/GTDGit/dealfinder/internal/tracing"
	"github.com/GTDGit/dealfinder/internal/utils"
	"github.com/GTDGit/dealfinder/internal/worker"
	"github.com/GTDGit/dealfinder/pkg/aliexpress"
	"github.com/GTDGit/dealfinder/pkg/llm"
)

// main is the entrypoint: HTTP API plus the Telegram bot when a token is set.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger and tracing
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting dealfinder")

	tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracer initialization failed - tracing disabled")
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	utils.SetJWTSecret(cfg.JWTSecret, cfg.API.JWTTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := map[string]handler.Pinger{}

	// 3. Optional database for search logs
	var logRepo *repository.SearchLogRepository
	if cfg.DB.Enabled() {
		db, err := database.Connect(ctx, &cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()
		if err := database.Migrate(db.DB, "file://migrations"); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migrations completed successfully")
		logRepo = repository.NewSearchLogRepository(db)
		health["database"] = handler.PingFunc(db.PingContext)
	}

	// 4. Optional Redis for translations, results and the taxonomy
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected successfully")
		health["redis"] = redisClient
	}

	// 5. Upstream clients
	aliCfg := aliexpress.Config{
		BaseURL:            cfg.AliExpress.BaseURL,
		DSCredential:       aliexpress.Credential{AppKey: cfg.AliExpress.DSAppKey, AppSecret: cfg.AliExpress.DSAppSecret},
		DSAccessToken:      cfg.AliExpress.DSAccessToken,
		TrackingID:         cfg.AliExpress.TrackingID,
		Currency:           cfg.AliExpress.Currency,
		Language:           cfg.AliExpress.Language,
		DetailLanguage:     cfg.AliExpress.DetailLanguage,
		ShipToCountry:      cfg.AliExpress.ShipToCountry,
		MaxAttempts:        cfg.AliExpress.MaxAttempts,
		MaxRateLimitRounds: cfg.AliExpress.MaxRateLimitRounds,
		RetryDelay:         cfg.AliExpress.RetryDelay,
		RateLimitDelay:     cfg.AliExpress.RateLimitDelay,
		Timeout:            cfg.AliExpress.Timeout,
		Observer:           metrics.UpstreamObserver{},
	}
	for _, c := range cfg.AliExpress.Credentials {
		aliCfg.Credentials = append(aliCfg.Credentials, aliexpress.Credential{AppKey: c.AppKey, AppSecret: c.AppSecret})
	}
	aliClient := aliexpress.NewClient(aliCfg)

	oracle := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	// 6. Category taxonomy
	var taxonomyStore cache.TaxonomyStore = cache.NewFileTaxonomyStore(cfg.Category.Path)
	if cfg.Category.Backend == "redis" {
		taxonomyStore = cache.NewRedisTaxonomyStore(redisClient, 7*24*time.Hour)
	}
	categorySvc := service.NewCategoryService(aliClient, taxonomyStore, cfg.Category.TTL)

	// 7. Search pipeline
	policy, err := service.PolicyByName(cfg.Pipeline.RankingPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ranking policy")
	}
	gate := service.NewRequestGate(cfg.Pipeline.RequestSpacing)

	var translations service.TranslationCache
	if redisClient != nil {
		translations = cache.NewTranslationCache(redisClient, 0)
	}

	hub := sse.NewHub()
	publisher := events.MultiPublisher{sse.NewHubPublisher(hub)}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = append(publisher, events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher enabled")
	}
	defer publisher.Close()

	deps := service.SearchDeps{
		Client:     aliClient,
		Translator: service.NewTranslator(oracle, translations),
		Relevance:  service.NewRelevanceFilter(oracle, cfg.Pipeline.BatchSize, cfg.Pipeline.MaxRelevant),
		Enricher:   service.NewDetailEnricher(aliClient, gate, cfg.Pipeline.Workers),
		Ranker:     service.NewRanker(policy, nil),
		Links:      service.NewLinkResolver(aliClient, gate),
		Categories: categorySvc,
		Events:     publisher,
	}
	if logRepo != nil {
		deps.Logs = logRepo
	}
	if redisClient != nil && cfg.Pipeline.ResultCacheTTL > 0 {
		deps.Results = cache.NewResultCache(redisClient, cfg.Pipeline.ResultCacheTTL)
	}
	searchSvc := service.NewSearchService(deps, service.PipelineOptions{
		Candidates:     cfg.Pipeline.Candidates,
		UseHotProducts: cfg.Pipeline.UseHotProducts,
	})

	sessions := cache.NewSessionRegistry(0, cfg.Pipeline.SessionsPerChat)
	pager := service.NewPager(sessions, cfg.Pipeline.PageSize)

	// 8. Handlers and middleware
	handlers := &Handlers{
		Health: handler.NewHealthHandler(health),
		Search: handler.NewSearchHandler(searchSvc, pager, cfg.Pipeline.SearchTimeout),
		Auth:   handler.NewAuthHandler(service.NewAdminAuthService(cfg.Admin.Email, cfg.Admin.PasswordHash)),
		SSE:    handler.NewSSEHandler(hub),
	}
	if logRepo != nil {
		handlers.SearchLog = handler.NewSearchLogHandler(logRepo)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.API.AllowedHosts))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, cfg)

	// 9. Workers
	go worker.NewCategoryRefreshWorker(categorySvc, cfg.Category.RefreshInterval).Start(ctx)

	// 10. Telegram bot
	if cfg.Telegram.Token != "" {
		if err := startBot(ctx, cfg, searchSvc, pager); err != nil {
			log.Error().Err(err).Msg("telegram bot disabled")
		}
	} else {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set - bot disabled")
	}

	// 11. HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health    *handler.HealthHandler
	Search    *handler.SearchHandler
	Auth      *handler.AuthHandler
	SearchLog *handler.SearchLogHandler
	SSE       *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, cfg *config.Config) {
	router.GET("/v1/health", handlers.Health.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiKeyMw := middleware.NewAPIKeyMiddleware(cfg.API.Keys)
	searchLimit := middleware.SearchRateLimit(middleware.NewKeyedRateLimiter(cfg.API.SearchPerMinute))

	api := router.Group("/v1")
	api.Use(apiKeyMw.Handle())
	{
		api.POST("/search", searchLimit, handlers.Search.Search)
		api.GET("/search/:sessionId/page/:page", handlers.Search.GetPage)
		api.GET("/get-cost", searchLimit, handlers.Search.GetCost)
	}

	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	// token travels in the query string, so the stream sits outside the JWT group
	admin.GET("/search-logs/stream", handlers.SSE.Stream)
	admin.Use(middleware.NewJWTMiddleware().Handle())
	if handlers.SearchLog != nil {
		admin.GET("/search-logs", handlers.SearchLog.ListSearchLogs)
		admin.GET("/search-logs/stats", handlers.SearchLog.GetStats)
	}
}

func startBot(ctx context.Context, cfg *config.Config, searcher bot.Searcher, pager *service.Pager) error {
	msgs, err := bot.LoadMessages(cfg.Telegram.MessagesPath)
	if err != nil {
		return err
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	b := bot.NewBot(api, searcher, pager, collage.NewRenderer(800, 2), msgs, bot.Options{
		ActivationPhrases: cfg.Telegram.ActivationPhrases,
		SearchTimeout:     cfg.Pipeline.SearchTimeout,
		PollTimeout:       cfg.Telegram.PollTimeout,
	})
	go b.Run(ctx, api)
	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
