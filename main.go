package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/insectica-ai/insectica-backend/database"
	"github.com/insectica-ai/insectica-backend/internal/config"
	"github.com/insectica-ai/insectica-backend/internal/jobs"
	"github.com/insectica-ai/insectica-backend/internal/media"
	"github.com/insectica-ai/insectica-backend/internal/models"
	"github.com/insectica-ai/insectica-backend/internal/routes"
	"github.com/insectica-ai/insectica-backend/internal/services"
	"github.com/insectica-ai/insectica-backend/internal/storage"
	"github.com/insectica-ai/insectica-backend/internal/upstream"
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found - checking environment variables")
	}

	cfg := config.Load()

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Conversation{},
			&models.Utterance{},
			&models.Assistant{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Audio blob storage
	blobs, err := media.New(cfg.MediaRoot, cfg.MediaBaseURL)
	if err != nil {
		log.Fatal("Failed to initialize media storage:", err)
	}

	// Upstream clients fail fast on missing credentials
	speechService, err := services.NewSpeechService(upstream.Config{
		BaseURL:        cfg.OpenAIBaseURL,
		APIKey:         cfg.OpenAIAPIKey,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize speech service:", err)
	}
	log.Println("✅ Speech service initialized")

	vapiService, err := services.NewVapiService(upstream.Config{
		BaseURL:        cfg.VapiBaseURL,
		APIKey:         cfg.VapiAPIKey,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	}, cfg.VapiChatStreamPath)
	if err != nil {
		log.Fatal("Failed to initialize Vapi service:", err)
	}
	log.Println("✅ Vapi service initialized")

	bookingPolicy, err := services.NewBookingPolicy(cfg.BookingTimezone, cfg.BookingOpenHour, cfg.BookingCloseHour)
	if err != nil {
		log.Fatal("Failed to initialize booking policy:", err)
	}

	pipeline := services.NewPipelineService(store, speechService, blobs, services.InsecticaSystemPrompt)
	notifyService := services.NewNotifyService(cfg)

	// Background maintenance
	var maintenanceJob *jobs.MaintenanceJob
	if cfg.MaintenanceEnabled {
		maintenanceJob = jobs.NewMaintenanceJob(store, blobs)
		maintenanceJob.Start()
	}

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:   "Insectica Voice Backend v1.0.0",
		BodyLimit: 20 * 1024 * 1024, // room for a long voice clip
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	// Setup routes
	routes.SetupRoutes(app, routes.Deps{
		Store:        store,
		Pipeline:     pipeline,
		Booking:      bookingPolicy,
		Vapi:         vapiService,
		Notify:       notifyService,
		MediaRoot:    cfg.MediaRoot,
		MediaBaseURL: cfg.MediaBaseURL,
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		if maintenanceJob != nil {
			log.Println("⏹️  Stopping maintenance job...")
			maintenanceJob.Stop()
		}
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 Insectica voice backend starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageType())
	log.Printf("🎙️  Speech upstream: %s", cfg.OpenAIBaseURL)
	log.Printf("🤖 Vapi upstream: %s", cfg.VapiBaseURL)
	log.Printf("📅 Booking window: %02d:00-%02d:00 %s", cfg.BookingOpenHour, cfg.BookingCloseHour, cfg.BookingTimezone)
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Port))
}

func storageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
