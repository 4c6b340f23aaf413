package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only fit for local development.
const DefaultJWTSecret = "dev-secret"

type Config struct {
	HTTP        HTTPConfig
	GRPC        GRPCConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Model       ModelConfig
	Detection   DetectionConfig
	Recognition RecognitionConfig
	LogLevel    string
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Addr string // "off" disables the health endpoint
}

type DatabaseConfig struct {
	Driver          string // postgres, mysql or sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string // empty disables result caching
	Password string
	DB       int
	TTL      time.Duration
}

type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
}

type ModelConfig struct {
	Dir         string
	CascadePath string
	ModelPath   string
	LabelsPath  string
	DatasetPath string
}

type DetectionConfig struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float64
	// TrainMinSize applies to enrolment photos, where faces may be small.
	TrainMinSize int
}

type RecognitionConfig struct {
	// Threshold is the largest LBPH distance still accepted as a match.
	Threshold float64
}

func Load() *Config {
	modelDir := getEnv("MODEL_DIR", "models")

	return &Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		GRPC: GRPCConfig{
			Addr: getEnv("GRPC_ADDR", ":9090"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
			DSN:             getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=attendance_db port=5432 sslmode=disable"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
			TTL:      envDuration("REDIS_RESULT_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", DefaultJWTSecret),
			JWTAudience: os.Getenv("JWT_AUDIENCE"),
		},
		Model: ModelConfig{
			Dir:         modelDir,
			CascadePath: getEnv("CASCADE_PATH", filepath.Join(modelDir, "facefinder")),
			ModelPath:   getEnv("MODEL_PATH", filepath.Join(modelDir, "face_model.yml")),
			LabelsPath:  getEnv("LABELS_PATH", filepath.Join(modelDir, "names.yml")),
			DatasetPath: getEnv("DATASET_PATH", "dataset"),
		},
		Detection: DetectionConfig{
			MinSize:      envInt("DETECT_MIN_SIZE", 100),
			TrainMinSize: envInt("TRAIN_DETECT_MIN_SIZE", 24),
			MaxSize:      envInt("DETECT_MAX_SIZE", 1000),
			ShiftFactor:  envFloat("DETECT_SHIFT_FACTOR", 0.1),
			ScaleFactor:  envFloat("DETECT_SCALE_FACTOR", 1.1),
			IoUThreshold: envFloat("DETECT_IOU_THRESHOLD", 0.2),
			MinQuality:   envFloat("DETECT_MIN_QUALITY", 5.0),
		},
		Recognition: RecognitionConfig{
			Threshold: envFloat("RECOGNITION_THRESHOLD", 150),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}
