package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Redis Configuration
	REDIS_URL string
	// Storage roots
	PROJECT_ROOT     string
	STUDENT_DATA_DIR string
	GALLERY_DATA_DIR string
	GALLERY_DIR      string
	// External tools and models
	FFMPEG_PATH         string
	FFPROBE_PATH        string
	FACE_CASCADE_PATH   string
	PUPLOC_CASCADE_PATH string
	ENCODER_URL         string
	// DigitalOcean Spaces (optional off-site artifact copies)
	DO_SPACES_BUCKET   string
	DO_SPACES_REGION   string
	DO_SPACES_ENDPOINT string
	DO_SPACES_KEY      string
	DO_SPACES_SECRET   string
}

// QualityConfig holds the tunable thresholds of the video quality gate.
// Two historical variants of the checker coexisted (15 vs 50 samples,
// min blur 50 vs 15, pose step on or off); both are reachable through
// environment variables so neither is silently picked.
type QualityConfig struct {
	SampleCount      int
	DetectorConf     float64
	MinTotalFaces    int
	MinBlurScore     float64
	MinContrast      float64
	MinFaceSize      float64
	MaxMotionBlur    float64
	PoseCheck        bool
	DumpFailedFrames bool
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	projectRoot := os.Getenv("PROJECT_ROOT")
	if projectRoot == "" {
		projectRoot = "."
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Storage
		PROJECT_ROOT:     projectRoot,
		STUDENT_DATA_DIR: filepath.Join(projectRoot, "data", "student_data"),
		GALLERY_DATA_DIR: filepath.Join(projectRoot, "gallery", "data"),
		GALLERY_DIR:      filepath.Join(projectRoot, "gallery", "galleries"),
		// External tools
		FFMPEG_PATH:         envOr("FFMPEG_PATH", "ffmpeg"),
		FFPROBE_PATH:        envOr("FFPROBE_PATH", "ffprobe"),
		FACE_CASCADE_PATH:   envOr("FACE_CASCADE_PATH", filepath.Join(projectRoot, "cascade", "facefinder")),
		PUPLOC_CASCADE_PATH: envOr("PUPLOC_CASCADE_PATH", filepath.Join(projectRoot, "cascade", "puploc")),
		ENCODER_URL:         envOr("ENCODER_URL", "http://localhost:8081"),
		// DigitalOcean Spaces
		DO_SPACES_BUCKET:   os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:   os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT: os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_KEY:      os.Getenv("DO_SPACES_KEY"),
		DO_SPACES_SECRET:   os.Getenv("DO_SPACES_SECRET"),
	}

	return envVariables, nil
}

// GetQuality reads the quality gate thresholds, falling back to the
// defaults of the 50-sample checker variant.
func GetQuality() QualityConfig {
	return QualityConfig{
		SampleCount:      envOrInt("QUALITY_SAMPLE_COUNT", 50),
		DetectorConf:     envOrFloat("QUALITY_DETECTOR_CONF", 0.65),
		MinTotalFaces:    envOrInt("QUALITY_MIN_TOTAL_FACES", 3),
		MinBlurScore:     envOrFloat("QUALITY_MIN_BLUR", 50),
		MinContrast:      envOrFloat("QUALITY_MIN_CONTRAST", 20),
		MinFaceSize:      envOrFloat("QUALITY_MIN_FACE_SIZE", 60),
		MaxMotionBlur:    envOrFloat("QUALITY_MAX_MOTION_BLUR", 80),
		PoseCheck:        os.Getenv("QUALITY_POSE_CHECK") != "false",
		DumpFailedFrames: os.Getenv("QUALITY_DUMP_FAILED_FRAMES") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
