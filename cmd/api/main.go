package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/config"
	"alfredoptarigan/resume-analyzer/internal/handlers"
	"alfredoptarigan/resume-analyzer/internal/logger"
	"alfredoptarigan/resume-analyzer/internal/middleware"
	"alfredoptarigan/resume-analyzer/internal/repositories"
	"alfredoptarigan/resume-analyzer/internal/services"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// the API still serves documents and history without a model key
	if err := cfg.Validate(); err != nil {
		log.Warn("configuration incomplete, analyses will fail", zap.Error(err))
	}

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	docRepo := repositories.NewDocumentRepository(db)
	analysisRepo := repositories.NewAnalysisRepository(db)

	storage := services.NewStorageService(cfg.Storage.UploadPath)
	if err := storage.EnsureUploadDir(); err != nil {
		log.Fatal("failed to create upload directory", zap.Error(err))
	}

	model := services.NewGeminiClient(services.GeminiClientConfig{
		APIKey: cfg.Gemini.APIKey,
		APIURL: cfg.Gemini.APIURL,
		Generation: services.GenerationConfig{
			Temperature:      cfg.Gemini.Temperature,
			TopK:             cfg.Gemini.TopK,
			TopP:             cfg.Gemini.TopP,
			MaxOutputTokens:  cfg.Gemini.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
		Timeout: cfg.Gemini.RequestTimeout,
	}, log)

	evaluator := services.NewEvaluatorService(
		analysisRepo,
		docRepo,
		model,
		services.NewPromptBuilder(cfg.Gemini.MaxPromptChars),
		log,
	)

	documents := services.NewDocumentService(
		docRepo,
		storage,
		services.NewTextExtractor(log),
		cfg.Storage.MaxFileSize,
		log,
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, job feed will not be cached", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	cancel()

	jobs := services.NewJobFeedService(services.JobFeedConfig{
		URL:      cfg.JobFeed.URL,
		CacheTTL: cfg.JobFeed.CacheTTL,
	}, rdb, log)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	evictCtx, stopEviction := context.WithCancel(context.Background())
	defer stopEviction()
	limiter.StartEviction(evictCtx, time.Minute, cfg.RateLimit.IdleTTL)

	app := fiber.New(fiber.Config{
		AppName:      "Resume Analyzer API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Gemini.RequestTimeout + 30*time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: customErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestMetrics())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.Register(app.Group("/api/v1"), handlers.Handlers{
		Documents: handlers.NewDocumentHandler(docRepo, documents, cfg.Storage.MaxFileSize, log),
		Analyses:  handlers.NewAnalysisHandler(analysisRepo, evaluator, log),
		Jobs:      handlers.NewJobHandler(jobs, log),
	}, limiter.Handler())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Resume Analyzer API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/documents",
				"GET /api/v1/documents",
				"GET /api/v1/documents/:id",
				"DELETE /api/v1/documents/:id",
				"POST /api/v1/documents/:id/analyses",
				"GET /api/v1/documents/:id/analyses",
				"GET /api/v1/analyses/:id",
				"DELETE /api/v1/analyses/:id",
				"GET /api/v1/jobs?skills=go,postgres",
			},
		})
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(cfg.Gemini.RequestTimeout); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Server.Env))

	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

func customErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
			"code":  code,
		})
	}
}
