package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pvuminhtri-cloud/kiemcoinnao/handlers"
	"github.com/pvuminhtri-cloud/kiemcoinnao/middleware"
	"github.com/pvuminhtri-cloud/kiemcoinnao/models"
	"github.com/pvuminhtri-cloud/kiemcoinnao/services"
	"github.com/pvuminhtri-cloud/kiemcoinnao/shortlink"
	"github.com/pvuminhtri-cloud/kiemcoinnao/tasks"
	"github.com/pvuminhtri-cloud/kiemcoinnao/utils"
)

func rateLimit(max int, window time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false, "message": message,
			})
		},
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		log.Fatal("APP_URL environment variable not set")
	}
	tasksFile := os.Getenv("TASKS_FILE")
	if tasksFile == "" {
		tasksFile = "tasks.yaml"
	}

	catalog, err := tasks.LoadCatalog(tasksFile)
	if err != nil {
		log.Fatal("failed to load task catalog: ", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client: ", err)
	}

	// TranslateError makes unique violations visible as gorm.ErrDuplicatedKey,
	// which settlement relies on for replay detection.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.PendingTask{},
		&models.TaskHistory{},
		&models.Withdrawal{},
	); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, avatars only
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(rateLimit(100, 1*time.Minute, "too many requests, please wait a moment"))
	app.Use("/api/auth/login", rateLimit(5, 15*time.Minute, "too many failed logins, try again in 15 minutes"))
	app.Use("/api/auth/register", rateLimit(3, 1*time.Hour, "too many registrations, try again in an hour"))

	shortener := shortlink.FromEnv()
	taskService := services.NewTaskService(db, catalog, shortener, appURL)
	userService := services.NewUserService(db, jwtSecret)
	referralService := services.NewReferralService(db)
	withdrawService := services.NewWithdrawService(db)
	adminService := services.NewAdminService(db)

	auth := middleware.AuthRequired(jwtSecret)
	handlers.SetupAccountRoutes(app, userService, referralService, withdrawService, auth)
	handlers.SetupTaskRoutes(app, taskService, auth)
	handlers.SetupAdminRoutes(app, adminService, auth)

	services.NewSweepService(db).StartSweeps()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Task catalog loaded: %d task(s)", len(catalog.All()))
	log.Printf("✅ Sweeps running (expired pending + anomaly checks)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
