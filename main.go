package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capture-analyze-pipeline/alert"
	"capture-analyze-pipeline/classifier"
	"capture-analyze-pipeline/config"
	"capture-analyze-pipeline/database"
	"capture-analyze-pipeline/diff"
	"capture-analyze-pipeline/gemini"
	"capture-analyze-pipeline/handlers"
	"capture-analyze-pipeline/metrics"
	"capture-analyze-pipeline/middleware"
	"capture-analyze-pipeline/pipeline"
	"capture-analyze-pipeline/rabbitmq"
	"capture-analyze-pipeline/storage"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.SetLevelFromString(cfg.LogLevel)

	// Validate required configuration
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Initialize object storage
	store, err := storage.NewMinioStore(cfg.StorageEndpoint, cfg.StorageAccessKey,
		cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL, cfg.StoragePublicURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if err := store.EnsureBucket(); err != nil {
		// The pipeline tolerates upload failures, so a missing bucket at
		// startup is not fatal.
		log.WithError(err).Warn("Storage bucket not verified")
	}

	// Initialize the vision model client and the classifier
	llmClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AnalysisTimeout)
	log.Infof("Classifier provider=%s model=%s", llmClient.SourceName(), cfg.GeminiModel)
	clf := classifier.New(llmClient)

	// Initialize the alert dispatcher
	sender := alert.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail)
	dispatcher := alert.NewDispatcher(db, sender, cfg.MailTimeout)

	// Initialize the optional capture event publisher
	var publisher pipeline.Publisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.CaptureRoutingKey)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize RabbitMQ publisher, continuing without it")
		} else {
			publisher = p
			defer p.Close()
		}
	}

	// Register metrics
	metrics.Register()

	// Assemble the ingestion pipeline
	differ := diff.NewEngine(store, cfg.StorageTimeout)
	pipe := pipeline.NewService(cfg, db, store, differ, clf, dispatcher, publisher)

	// Initialize handlers
	h := handlers.NewHandlers(db, pipe)

	// Setup HTTP server
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/upload", h.Upload)

	admin := router.Group("/", middleware.AdminAuth(cfg.AdminUsername, cfg.AdminPassword))
	{
		admin.POST("/auth/login", h.Login)
		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.UpdateSettings)
		admin.GET("/email-list", h.GetEmailList)
		admin.POST("/email-list", h.AddEmail)
		admin.DELETE("/email-list/:id", h.DeleteEmail)
		admin.GET("/logs", h.GetLogs)
		admin.GET("/logs/:id", h.GetLog)
		admin.GET("/stats", h.GetStats)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
