package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppMode        string
	APIBaseURL     string
	MediaBaseURL   string
	RequestTimeout time.Duration
	SessionToken   string
	Redis          RedisConfig
	S3             S3Config
	Sandbox        SandboxConfig
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	ProfileTTL time.Duration
}

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
}

// Enabled reports whether direct-to-S3 media upload is configured.
func (c S3Config) Enabled() bool {
	return c.Region != "" && c.Bucket != ""
}

type SandboxConfig struct {
	Port      string
	JWTSecret string
	// ListShape and UploadShape pick the payload shapes the sandbox answers with.
	ListShape   string
	UploadShape string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	apiBase := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/")
	mediaBase := strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/")
	if mediaBase == "" {
		mediaBase = apiBase + "/uploads"
	}

	return &Config{
		AppMode:        getEnv("APP_MODE", "development"),
		APIBaseURL:     apiBase,
		MediaBaseURL:   mediaBase,
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		SessionToken:   getEnv("SESSION_TOKEN", ""),
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			ProfileTTL: getEnvAsDuration("PROFILE_TTL", 24*time.Hour),
		},
		S3: S3Config{
			Region:     getEnv("S3_REGION", ""),
			Bucket:     getEnv("S3_BUCKET", ""),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			PublicBase: strings.TrimRight(getEnv("S3_PUBLIC_BASE", ""), "/"),
		},
		Sandbox: SandboxConfig{
			Port:        getEnv("SANDBOX_PORT", "8080"),
			JWTSecret:   getEnv("SANDBOX_JWT_SECRET", "change-me"),
			ListShape:   getEnv("SANDBOX_LIST_SHAPE", "array"),
			UploadShape: getEnv("SANDBOX_UPLOAD_SHAPE", "url"),
		},
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

// getEnvAsDuration accepts Go duration strings ("15s") or bare seconds ("15").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
