package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/awacs/annotate/internal/annotate"
	"github.com/awacs/annotate/internal/classifier"
	"github.com/awacs/annotate/internal/client"
	"github.com/awacs/annotate/internal/config"
	"github.com/awacs/annotate/internal/handler"
	"github.com/awacs/annotate/internal/scrape"
	"github.com/awacs/annotate/internal/service"
	"github.com/awacs/annotate/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Classifier.APIKeys) == 0 {
		log.Fatal("CLASSIFIER_API_KEYS is required (comma-separated)")
	}

	// Ensure the working directories exist
	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.AuditDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	// Job store: Redis when enabled, in-memory otherwise
	var jobStore store.JobStore = store.NewMemoryStore()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available, falling back to in-memory store: %v", err)
		} else {
			jobStore = store.NewRedisStore(redisClient)
		}
	}

	// Normalization rules (optional file, empty rules otherwise)
	rules, err := annotate.LoadRules(cfg.Storage.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load normalization rules: %v", err)
	}
	norm := annotate.NewNormalizer(rules)

	// Classification stack: one logical worker per API key
	keys := classifier.NewKeyPool(cfg.Classifier.APIKeys, cfg.Classifier.RateLimitRPM)
	gemini := classifier.NewGeminiClient(&cfg.Classifier)
	pool := annotate.NewPool(gemini, keys, norm,
		cfg.Annotate.MaxAttempts,
		time.Duration(cfg.Annotate.RetryBaseMS)*time.Millisecond)
	verifier := annotate.NewDuallyVerifier(gemini, keys, norm)

	// Ingestion boundaries
	scraper := scrape.NewListingScraper(cfg.Scraper.BaseURL, cfg.Classifier.MaxImages)
	dbClient := client.NewDBAPIClient(&cfg.DBAPI)

	// Initialize validator
	validate := validator.New()

	// Initialize services
	jobService := service.NewJobService(jobStore, scraper, pool, verifier,
		cfg.Storage.OutputDir, cfg.Annotate.DuallyVerification)
	auditService := service.NewAuditService(norm, cfg.Storage.AuditDir)
	dbFetchService := service.NewDBFetchService(dbClient, cfg.Storage.UploadDir)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, cfg.Storage.UploadDir)
	auditHandler := handler.NewAuditHandler(auditService, cfg.Storage.UploadDir)
	dbFetchHandler := handler.NewDBFetchHandler(dbFetchService, jobService, validate)
	configHandler := handler.NewConfigHandler(cfg)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"classifier_keys": keys.Size(),
				"redis":           cfg.Redis.Enabled,
				"db_api":          dbClient.IsConfigured(),
			},
		})
	})

	// API routes
	api := app.Group("/api")

	api.Post("/upload", jobHandler.Upload)
	api.Post("/reannotate", jobHandler.Reannotate)
	api.Post("/jobs/:id/start", jobHandler.Start)
	api.Get("/jobs/:id", jobHandler.Get)
	api.Get("/jobs/:id/progress", jobHandler.Progress)
	api.Get("/jobs/:id/download", jobHandler.Download)

	api.Post("/audit", auditHandler.Run)
	api.Get("/audit/:id", auditHandler.Get)
	api.Get("/audit/:id/download", auditHandler.Download)

	api.Post("/db-fetch", dbFetchHandler.Fetch)
	api.Post("/db-fetch/:id/start-annotation", dbFetchHandler.StartAnnotation)

	api.Get("/config", configHandler.Get)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s (%d classifier keys, model %s)",
		addr, keys.Size(), cfg.Classifier.Model)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
