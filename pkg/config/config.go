package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Training TrainingConfig
	Session  SessionConfig
	Policy   PolicyConfig
	Notify   NotifyConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port         string
	AllowOrigins []string
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type JWTConfig struct {
	SecretKey string
	TTL       time.Duration
}

type RedisConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type TrainingConfig struct {
	Workers       int
	QueueSize     int
	MaxEpisodes   int
	FailureCap    int
	ProgressEvery int
	ProgressTTL   time.Duration
	Parallelism   int
}

type SessionConfig struct {
	TTL         time.Duration
	MaxSessions int
	SweepEvery  time.Duration
}

type PolicyConfig struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
	Temperature   float64
}

type NotifyConfig struct {
	WebhookURL      string
	WebhookUser     string
	WebhookPassword string
	Timeout         time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Clinical Gym"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			AllowOrigins: strings.Split(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverMemory)),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			Name:       getEnv("DB_NAME", "clinical_gym"),
			SSLMode:    getEnv("DB_SSL_MODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "clinical_gym.db"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
			TTL:       getDuration("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:       getBool("REDIS_ENABLED", false),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Training: TrainingConfig{
			Workers:       getInt("TRAINING_WORKERS", 2),
			QueueSize:     getInt("TRAINING_QUEUE_SIZE", 64),
			MaxEpisodes:   getInt("TRAINING_MAX_EPISODES", 10000),
			FailureCap:    getInt("TRAINING_FAILURE_CAP", 5),
			ProgressEvery: getInt("TRAINING_PROGRESS_EVERY", 10),
			ProgressTTL:   getDuration("TRAINING_PROGRESS_TTL", time.Hour),
			Parallelism:   getInt("ORCHESTRATOR_PARALLELISM", 4),
		},
		Session: SessionConfig{
			TTL:         getDuration("SESSION_TTL", 30*time.Minute),
			MaxSessions: getInt("SESSION_MAX", 256),
			SweepEvery:  getDuration("SESSION_SWEEP_EVERY", time.Minute),
		},
		Policy: PolicyConfig{
			Provider:      getEnv("POLICY_PROVIDER", ""),
			Model:         getEnv("POLICY_MODEL", ""),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			GeminiKey:     getEnv("GEMINI_API_KEY", ""),
			Temperature:   getFloat("POLICY_TEMPERATURE", 0.5),
		},
		Notify: NotifyConfig{
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookUser:     getEnv("NOTIFY_WEBHOOK_USER", ""),
			WebhookPassword: getEnv("NOTIFY_WEBHOOK_PASSWORD", ""),
			Timeout:         getDuration("NOTIFY_TIMEOUT", 5*time.Second),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	switch cfg.Database.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.Database.Password == "" {
			return nil, errors.New("missing database password")
		}
	default:
		return nil, errors.New("unknown database driver: " + cfg.Database.Driver)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}
