package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"veriflow-backend/internal/auth"
	"veriflow-backend/internal/config"
	"veriflow-backend/internal/database"
	"veriflow-backend/internal/evidence"
	"veriflow-backend/internal/health"
	"veriflow-backend/internal/identity"
	"veriflow-backend/internal/middleware"
	"veriflow-backend/internal/projects"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. DB and Redis are returned for startup pings; either may
// be nil when the corresponding URL is not configured (tests).
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
		BodyLimit:             25 * 1024 * 1024, // field photos from mobile cameras
	})

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	// Evidence originals and thumbnails, served statically.
	app.Static("/uploads", cfg.UploadsDir)

	healthHandlers := &health.Handlers{Rdb: rdb, HealthAdminKey: cfg.HealthAdminKey}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			healthHandlers.DB = sqlDB
		}
	}
	app.Get("/health/json", healthHandlers.JSON)
	app.Get("/health/reset", healthHandlers.Reset)

	if db == nil {
		return app, db, rdb, nil
	}

	tokens := &auth.TokenIssuer{Secret: []byte(cfg.JWTSecret), Rdb: rdb}
	authService := &auth.Service{DB: db, Tokens: tokens}
	authHandlers := &auth.Handlers{Service: authService}
	requireAuth := middleware.RequireAuth(authService)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", authHandlers.Register)
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Post("/logout", requireAuth, authHandlers.Logout)

	identityService := &identity.Service{DB: db}
	identityHandlers := &identity.Handlers{Service: identityService}
	app.Get("/api/farmers", requireAuth, middleware.RequireAdmin(), identityHandlers.GetFarmers)

	projectService := &projects.Service{
		DB:        db,
		Processor: &evidence.Processor{Root: cfg.UploadsDir},
		Identity:  identityService,
	}
	projectHandlers := &projects.Handlers{Service: projectService}

	projectGroup := app.Group("/api/projects")
	projectGroup.Get("/", projectHandlers.GetProjects)
	projectGroup.Get("/:id", projectHandlers.GetProjectByID)
	projectGroup.Post("/", requireAuth, projectHandlers.CreateProject)
	projectGroup.Patch("/:id", requireAuth, projectHandlers.UpdateProject)
	projectGroup.Delete("/:id", requireAuth, projectHandlers.DeleteProject)
	projectGroup.Post("/:id/images", requireAuth, projectHandlers.UploadProjectImage)

	return app, db, rdb, nil
}
