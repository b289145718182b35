package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	SkipAuth    bool
	Environment string
	AppId       string

	LocalDBPath string // SQLite file owned by this sync process

	RemoteBaseURL  string
	RemoteEmail    string
	RemotePassword string
	RemoteTimeout  time.Duration
	RemoteDSN      string // Optional read-only Postgres DSN used by diagnostics

	DrainBatchSize int
	DrainSchedule  string
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MaxAttempts    int
	LockTTL        time.Duration
	DrainTimeout   time.Duration

	IntegritySchedule  string // empty disables the periodic integrity check
	Tolerance          float64
	DuplicateRulesFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8090"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "pos-sync"),

		LocalDBPath: getEnv("LOCAL_DB_PATH", "./data/pos.db"),

		RemoteBaseURL:  getEnv("REMOTE_BASE_URL", "http://localhost:3000/api"),
		RemoteEmail:    getEnv("REMOTE_EMAIL", ""),
		RemotePassword: getEnv("REMOTE_PASSWORD", ""),
		RemoteTimeout:  getDuration("REMOTE_TIMEOUT", 15*time.Second),
		RemoteDSN:      getEnv("REMOTE_DSN", ""),

		DrainBatchSize: getInt("DRAIN_BATCH_SIZE", 50),
		DrainSchedule:  getEnv("DRAIN_SCHEDULE", "@every 30s"),
		RetryBaseDelay: getDuration("RETRY_BASE_DELAY", 30*time.Second),
		RetryMaxDelay:  getDuration("RETRY_MAX_DELAY", 30*time.Minute),
		MaxAttempts:    getInt("MAX_ATTEMPTS", 10),
		LockTTL:        getDuration("LOCK_TTL", 2*time.Minute),
		DrainTimeout:   getDuration("DRAIN_TIMEOUT", 10*time.Minute),

		IntegritySchedule:  getEnv("INTEGRITY_SCHEDULE", "@every 10m"),
		Tolerance:          getFloat("TOLERANCE", 0.10),
		DuplicateRulesFile: getEnv("DUPLICATE_RULES_FILE", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Printf("Invalid %s=%q, using %v", key, raw, fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return v
}
