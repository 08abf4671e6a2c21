package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/fedibridge/skybridge/configs"
	"github.com/fedibridge/skybridge/internal/api/handlers"
	"github.com/fedibridge/skybridge/internal/api/middleware"
	"github.com/fedibridge/skybridge/internal/archive"
	job "github.com/fedibridge/skybridge/internal/jobs"
	"github.com/fedibridge/skybridge/internal/queue"
	"github.com/fedibridge/skybridge/internal/repository"
	"github.com/fedibridge/skybridge/internal/sync"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountRepo := repository.NewAccountRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	syncedPostRepo := repository.NewSyncedPostRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	var archiver sync.Archiver
	if r2 := archive.NewR2Archive(*cfg); r2 != nil {
		archiver = r2
	}

	transformer := sync.NewTransformer(cfg.ProfileBaseURL)
	publisher := sync.NewPublisher(syncedPostRepo, transformer, sync.DefaultRetryConfig(), archiver)
	clientFactory := sync.NewClientFactory(*cfg)
	orchestrator := sync.NewOrchestrator(accountRepo, settingsRepo, syncedPostRepo, syncLogRepo, clientFactory, publisher)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	auth := handlers.NewAuthHandler(*cfg)
	app.Post("/login", auth.Login)

	syncHandler := handlers.NewSyncHandler(orchestrator, syncedPostRepo, syncLogRepo, client)
	app.Post("/webhooks/feed", syncHandler.Webhook)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	settings := handlers.NewSettingsHandler(settingsRepo)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	api.Post("/sync/trigger", syncHandler.TriggerSync)
	api.Get("/sync/status", syncHandler.GetSyncStatus)

	// cron jobs
	syncJob := job.NewSyncJob(orchestrator)

	// queue
	queueW := queue.NewQueue(orchestrator)

	c := cron.New()
	c.AddFunc("@every 00h05m00s", syncJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 1,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSyncRun, queueW.HandleSyncRunTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
