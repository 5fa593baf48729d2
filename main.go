package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Vargock/Mahaon-Parser/internal/api"
	"github.com/Vargock/Mahaon-Parser/internal/catalog"
	"github.com/Vargock/Mahaon-Parser/internal/db"
	"github.com/Vargock/Mahaon-Parser/internal/middleware"
	"github.com/Vargock/Mahaon-Parser/internal/parser"
	"github.com/Vargock/Mahaon-Parser/internal/store"
)

// Config holds application configuration
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig creates a new configuration from environment variables
func NewConfig() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:            port,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

func main() {
	// Load .env if present; real environment wins
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	config := NewConfig()

	// Initialize database
	log.Println("Initializing database...")
	dbConn, err := db.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully")

	// Initialize collaborators and the parse orchestrator
	extractor, err := catalog.NewExtractor(catalog.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to initialize catalog extractor: %v", err)
	}
	catalogStore := store.New(dbConn)
	parseService := parser.NewService(extractor, catalogStore, parser.ConfigFromEnv())
	log.Println("Parse service initialized")

	// Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Add middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "mahaon-parser",
		})
	})

	// Authentication endpoint
	r.POST("/auth/login", api.LoginHandler(catalogStore))

	// Protected routes
	authorized := r.Group("/")
	authorized.Use(middleware.JWTRequired())
	{
		authorized.POST("/parse", api.StartParseHandler(parseService))
		authorized.POST("/parse/confirm", api.ConfirmParseHandler(parseService))
		authorized.POST("/parse/cancel", api.CancelParseHandler(parseService))
		authorized.GET("/parse/status", api.ParseStatusHandler(parseService))
		authorized.GET("/parse/logs", api.ParseLogsHandler(parseService))
		authorized.GET("/categories", api.CategoriesHandler(catalogStore, extractor))
		authorized.GET("/products", api.ListProductsHandler(catalogStore))
		authorized.GET("/variants", api.ListVariantsHandler(catalogStore))
		authorized.GET("/export", api.ExportHandler(catalogStore))
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", config.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create shutdown context
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	// Shutdown server gracefully
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop any live parse job gracefully
	if err := parseService.Stop(); err != nil {
		log.Printf("Failed to stop parse service: %v", err)
	}

	log.Println("Server exited")
}
