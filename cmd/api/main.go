package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"goodspeech_backend/internal/controller"
	"goodspeech_backend/internal/middleware"
	"goodspeech_backend/internal/model"
	"goodspeech_backend/pkg/config"
	"goodspeech_backend/pkg/cron"
	"goodspeech_backend/pkg/database"
	"goodspeech_backend/pkg/email"
	"goodspeech_backend/pkg/seed"
)

func setupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Billing provider webhook (raw body, signature verified in handler)
	api.Post("/webhook/lemon", controller.HandleLemonWebhook)

	// Public plan catalog
	api.Get("/subscriptions/plans", controller.ListPlans)

	// Account routes
	me := api.Group("/me", middleware.AuthMiddleware())
	me.Get("/", controller.GetMe)
	me.Put("/", controller.UpdateProfile)
	me.Post("/avatar", controller.UploadAvatar)

	// Subscription routes
	subscriptions := api.Group("/subscriptions", middleware.AuthMiddleware())
	subscriptions.Get("/my", controller.GetMySubscription)
	subscriptions.Post("/change", controller.ChangeSubscription)
	subscriptions.Post("/cancel", controller.CancelSubscription)

	// Workspace routes with entitlement checks
	workspaces := api.Group("/workspaces", middleware.AuthMiddleware())
	workspaces.Get("/", controller.ListMyWorkspaces)
	workspaces.Post("/", middleware.CheckWorkspaceLimit(), controller.CreateWorkspace)
	workspaces.Put("/:id", middleware.CheckWorkspaceOwnership(), controller.UpdateWorkspace)
	workspaces.Post("/:id/default", middleware.CheckWorkspaceOwnership(), controller.SetDefaultWorkspace)
	workspaces.Delete("/:id", middleware.CheckWorkspaceOwnership(), controller.DeleteWorkspace)

	// Translation usage routes
	translations := api.Group("/translations", middleware.AuthMiddleware())
	translations.Post("/", middleware.CheckTranslationQuota(), controller.RecordTranslation)
	translations.Get("/usage", controller.GetUsage)
}

func main() {
	cfg := config.Load()

	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		if err := email.InitEmailService(key); err != nil {
			log.Fatal("Could not initialize email service:", err)
		}
	} else {
		log.Println("RESEND_API_KEY not set, email notifications disabled")
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.Account{},
		&model.Workspace{},
		&model.Plan{},
		&model.WebhookEvent{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	seed.SeedPlans(database.DB)

	controller.InitAccountController()
	controller.InitSubscriptionController(cfg)
	controller.InitWebhookController(cfg)
	cron.InitSubscriptionExpiryCron()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
