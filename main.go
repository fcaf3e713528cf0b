package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"warrantytracker/internal/handlers"
	"warrantytracker/internal/middleware"
	"warrantytracker/internal/models"
	"warrantytracker/internal/repositories"
	"warrantytracker/internal/services"
	"warrantytracker/internal/storage"
	"warrantytracker/pkg/rabbitmq"
)

// newConfig sets up Viper with defaults overridable from the environment.
func newConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=warrantytracker port=5432 sslmode=disable")
	v.SetDefault("RABBITMQ_URL", "") // empty disables event publishing
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("SESSION_COOKIE_NAME", "warranty_session")
	v.SetDefault("ITEMS_PER_PAGE", 10)
	v.AutomaticEnv()
	return v
}

// NewApp assembles the Fiber application: repositories, services,
// handlers, session store and routes. events may be nil when no broker is
// configured.
func NewApp(v *viper.Viper, db *gorm.DB, events services.EventPublisher) (*fiber.App, error) {
	if err := db.AutoMigrate(&models.User{}, &models.Warranty{}); err != nil {
		return nil, err
	}

	receiptStore, err := storage.NewLocalStore(v.GetString("UPLOAD_DIR"))
	if err != nil {
		return nil, err
	}

	userRepo := repositories.NewGORMUserRepository(db)
	warrantyRepo := repositories.NewGORMWarrantyRepository(db)

	authService := services.NewAuthService(userRepo)
	warrantyService := services.NewWarrantyService(warrantyRepo, receiptStore, events, v.GetInt("ITEMS_PER_PAGE"))

	sessionStore := session.New(session.Config{
		KeyLookup:  "cookie:" + v.GetString("SESSION_COOKIE_NAME"),
		CookiePath: "/",
	})

	authHandler := handlers.NewAuthHandler(authService, sessionStore)
	warrantyHandler := handlers.NewWarrantyHandler(warrantyService, sessionStore)

	app := fiber.New(fiber.Config{
		BodyLimit: storage.MaxReceiptSize + 1024*1024, // receipt cap plus form overhead
	})

	app.Use(logger.New()) // Request logger

	// Public auth routes.
	authHandler.RegisterRoutes(app)

	// Everything below requires an authenticated session.
	sessionGuard := middleware.AuthRequired(sessionStore)
	app.Use("/dashboard", sessionGuard)
	app.Use("/profile", sessionGuard)
	app.Use("/warranties", sessionGuard)

	authHandler.RegisterProtectedRoutes(app)
	warrantyHandler.RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
		})
	})

	return app, nil
}

func main() {
	v := newConfig()

	db, err := gorm.Open(postgres.Open(v.GetString("DATABASE_DSN")), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Event publishing is optional; the tracker works without a broker.
	var events services.EventPublisher
	if url := v.GetString("RABBITMQ_URL"); url != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		events = mqClient
	}

	app, err := NewApp(v, db, events)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	appPort := v.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}
