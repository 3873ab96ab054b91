package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/face-gallery-api/config"
	"github.com/sahilchouksey/face-gallery-api/database"
	"github.com/sahilchouksey/face-gallery-api/handlers"
	batch_handlers "github.com/sahilchouksey/face-gallery-api/handlers/batch"
	gallery_handlers "github.com/sahilchouksey/face-gallery-api/handlers/gallery"
	quality_handlers "github.com/sahilchouksey/face-gallery-api/handlers/quality"
	recognition_handlers "github.com/sahilchouksey/face-gallery-api/handlers/recognition"
	session_handlers "github.com/sahilchouksey/face-gallery-api/handlers/session"
	"github.com/sahilchouksey/face-gallery-api/services"
	"github.com/sahilchouksey/face-gallery-api/services/spaces"
	"github.com/sahilchouksey/face-gallery-api/services/vision"
	"github.com/sahilchouksey/face-gallery-api/utils/cache"
	"github.com/sahilchouksey/face-gallery-api/utils/middleware"
)

// Deps bundles the services the router wires into handlers. Build one
// with BuildDeps; the cron manager reuses the same instances.
type Deps struct {
	Paths       *services.Paths
	Sessions    *services.SessionStore
	Students    *services.StudentService
	Videos      *services.VideoService
	Quality     *services.QualityService
	Sweep       *services.QualitySweep
	Reports     *services.ReportService
	Extraction  *services.ExtractionService
	Embeddings  *services.EmbeddingService
	Galleries   *services.GalleryService
	Recognition *services.RecognitionService
	Batches     *services.BatchService
	Archive     *services.ArchiveService
	Encoder     *vision.EncoderClient
}

// BuildDeps constructs the full service graph from the environment.
// The pigo cascades are required; Redis and Spaces are optional and
// their absence only disables caching and archiving.
func BuildDeps(store *database.GORMStore) (*Deps, error) {
	env, err := config.Get()
	if err != nil {
		return nil, err
	}
	qualityCfg := config.GetQuality()
	db := store.DB()

	detector, err := vision.NewPigoDetector(env.FACE_CASCADE_PATH)
	if err != nil {
		return nil, err
	}

	// Pose estimation degrades to a skipped check when the puploc
	// cascade is missing.
	var poser vision.PoseEstimator
	if p, err := vision.NewPigoPoseEstimator(env.PUPLOC_CASCADE_PATH); err != nil {
		log.Printf("Warning: puploc cascade unavailable, pose check disabled: %v", err)
	} else {
		poser = p
	}

	var redisCache *cache.RedisCache
	if env.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(env.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Report caching will be disabled.", err)
			redisCache = nil
		}
	}

	var spacesClient *spaces.Client
	if env.DO_SPACES_BUCKET != "" {
		spacesClient, err = spaces.NewClient(spaces.Config{
			AccessKey: env.DO_SPACES_KEY,
			SecretKey: env.DO_SPACES_SECRET,
			Bucket:    env.DO_SPACES_BUCKET,
			Region:    env.DO_SPACES_REGION,
			Endpoint:  env.DO_SPACES_ENDPOINT,
		})
		if err != nil {
			log.Printf("Warning: Spaces unavailable, archiving disabled: %v", err)
			spacesClient = nil
		}
	}

	paths := services.NewPaths(env)
	sessions := services.NewSessionStore()
	transcoder := vision.NewFFmpegTranscoder(env.FFMPEG_PATH)
	frames := vision.NewFFmpegFrameSource(env.FFMPEG_PATH, env.FFPROBE_PATH)
	encoder := vision.NewEncoderClient(env.ENCODER_URL)

	students := services.NewStudentService(db, paths, sessions)
	videos := services.NewVideoService(paths, sessions, transcoder)
	quality := services.NewQualityService(qualityCfg, paths, sessions, frames, detector, poser)
	reports := services.NewReportService(db, redisCache)
	sweep := services.NewQualitySweep(quality, students, reports)
	extraction := services.NewExtractionService(qualityCfg, paths, sessions, frames, detector)
	embeddings := services.NewEmbeddingService(encoder)
	galleries := services.NewGalleryService(db, paths, embeddings)
	recognition := services.NewRecognitionService(galleries, detector, encoder)
	batches := services.NewBatchService(db, paths)
	archive := services.NewArchiveService(spacesClient, paths)

	return &Deps{
		Paths:       paths,
		Sessions:    sessions,
		Students:    students,
		Videos:      videos,
		Quality:     quality,
		Sweep:       sweep,
		Reports:     reports,
		Extraction:  extraction,
		Embeddings:  embeddings,
		Galleries:   galleries,
		Recognition: recognition,
		Batches:     batches,
		Archive:     archive,
		Encoder:     encoder,
	}, nil
}

func SetupRoutes(app *fiber.App, store *database.GORMStore, deps *Deps) {
	db := store.DB()

	sessionHandler := session_handlers.NewSessionHandler(db, deps.Paths, deps.Sessions,
		deps.Students, deps.Videos, deps.Extraction)
	qualityHandler := quality_handlers.NewQualityHandler(deps.Quality, deps.Sweep,
		deps.Reports, deps.Students)
	galleryHandler := gallery_handlers.NewGalleryHandler(deps.Galleries, deps.Archive)
	recognitionHandler := recognition_handlers.NewRecognitionHandler(deps.Recognition)
	batchHandler := batch_handlers.NewBatchHandler(deps.Batches, deps.Students, deps.Extraction)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store, deps.Encoder)
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Enrollment sessions
	sessions := api.Group("/sessions")
	sessions.Post("/start", sessionHandler.StartSession)
	sessions.Get("/lookup/:regNo", sessionHandler.Lookup)
	sessions.Get("/:regNo", sessionHandler.GetStatus)
	sessions.Post("/:regNo/video", sessionHandler.UploadVideo)
	sessions.Post("/:regNo/extract", sessionHandler.ExtractFaces)
	sessions.Post("/:regNo/reset-faces", sessionHandler.ResetFaces)

	// Quality gate
	quality := api.Group("/quality")
	quality.Post("/sweep", qualityHandler.RunSweep)
	quality.Post("/students/:regNo", qualityHandler.CheckStudent)
	quality.Post("/students/:regNo/promote", qualityHandler.PromoteBorderline)
	quality.Delete("/students", qualityHandler.DeleteByQuality)
	quality.Get("/reports/:batch", qualityHandler.GetReport)
	quality.Get("/reports/:batch/summary", qualityHandler.GetSummary)
	quality.Get("/reports/:batch/results", qualityHandler.GetResultsByStatus)

	// Galleries
	galleries := api.Group("/galleries")
	galleries.Get("/", galleryHandler.List)
	galleries.Post("/", galleryHandler.Create)
	galleries.Post("/sync", galleryHandler.Sync)
	galleries.Get("/archived", galleryHandler.ListArchived)
	galleries.Get("/:batch", galleryHandler.Info)
	galleries.Put("/:batch", galleryHandler.Update)
	galleries.Delete("/:batch", galleryHandler.Delete)
	galleries.Post("/:batch/archive", galleryHandler.Archive)

	// Recognition
	api.Post("/recognize", recognitionHandler.Recognize)

	// Batches, departments and stats
	batches := api.Group("/batches")
	batches.Get("/", batchHandler.ListDataBatches)
	batches.Get("/stats", batchHandler.DatabaseStats)
	batches.Get("/years", batchHandler.ListYears)
	batches.Post("/years", batchHandler.AddYear)
	batches.Get("/departments", batchHandler.ListDepartments)
	batches.Post("/departments", batchHandler.AddDepartment)
	batches.Get("/:batch/students", batchHandler.ListStudents)
	batches.Get("/:batch/summary", batchHandler.Summary)
	batches.Post("/:batch/extract", batchHandler.ExtractFaces)
}
