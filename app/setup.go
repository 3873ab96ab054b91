package app

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sahilchouksey/face-gallery-api/api"
	"github.com/sahilchouksey/face-gallery-api/config"
	"github.com/sahilchouksey/face-gallery-api/database"
	"github.com/sahilchouksey/face-gallery-api/router"
	"github.com/sahilchouksey/face-gallery-api/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err

	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	// Seed batch years and departments
	if err := database.NewSeeder(store.DB()).SeedAll(); err != nil {
		print("Warning: Failed to seed reference data\n")
		print("Error: ", err.Error(), "\n")
	}

	// Build the service graph shared by routes and cron jobs
	deps, err := router.BuildDeps(store)
	if err != nil {
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.DB(), deps.Paths, deps.Sweep, deps.Galleries, deps.Batches)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	// Custom Logger
	app.Use(logger.New())

	app.Use(recover.New())

	// Setup Routes
	router.SetupRoutes(app, store, deps)

	// Get the PORT & Start the Server
	return server.Run()

}
