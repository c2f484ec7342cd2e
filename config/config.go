package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	PushEndpoint    string
	PushServerToken string
	PushTimeout     time.Duration

	AIAgentURL     string
	AIAgentTimeout time.Duration

	NotifyWorkers   int
	NotifyQueueSize int

	MessageRateLimit int
	RequestRateLimit int
	RateLimitWindow  time.Duration

	PresenceTTL time.Duration
	IdentityTTL time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "medbridge"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),

		PushEndpoint:    getEnv("PUSH_ENDPOINT", ""),
		PushServerToken: getEnv("PUSH_SERVER_TOKEN", ""),
		PushTimeout:     getEnvAsDuration("PUSH_TIMEOUT", 10*time.Second),

		AIAgentURL:     getEnv("AI_AGENT_URL", ""),
		AIAgentTimeout: getEnvAsDuration("AI_AGENT_TIMEOUT", 60*time.Second),

		NotifyWorkers:   getEnvAsInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 1024),

		MessageRateLimit: getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		RequestRateLimit: getEnvAsInt("REQUEST_RATE_LIMIT", 10),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),

		PresenceTTL: getEnvAsDuration("PRESENCE_TTL", 5*time.Minute),
		IdentityTTL: getEnvAsDuration("IDENTITY_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
