package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadENV loads the .env file when GO_ENV is unset or development
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

type EnvironmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	LOG_LEVEL    string
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL            string
	RESULT_CACHE_BACKEND string
	RESULT_CACHE_TTL     time.Duration
	// OCR service
	OCR_SERVICE_URL string
	OCR_SECRET      string
	// Inference
	MODEL_ACCESS_KEY   string
	INFERENCE_BASE_URL string
	INFERENCE_MODEL    string
	// Storage
	STORAGE_BACKEND      string
	UPLOAD_DIR           string
	DO_SPACES_BUCKET     string
	DO_SPACES_REGION     string
	DO_SPACES_ENDPOINT   string
	DO_SPACES_ACCESS_KEY string
	DO_SPACES_SECRET_KEY string
	// HTTP
	ALLOWED_ORIGINS []string
	CRON_ENABLED    bool
}

func Get() (*EnvironmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := getEnvOrDefault("DB_HOST", "localhost")
	dbPort := getEnvOrDefault("DB_PORT", "5432")

	cacheTTL, err := time.ParseDuration(os.Getenv("RESULT_CACHE_TTL"))
	if err != nil || cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	cronEnabled := true
	if v, err := strconv.ParseBool(os.Getenv("CRON_ENABLED")); err == nil {
		cronEnabled = v
	}

	envVariables := &EnvironmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		LOG_LEVEL:    getEnvOrDefault("LOG_LEVEL", "info"),
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getEnvOrDefault("JWT_ISSUER", "syllabus-sync"),
		// Redis
		REDIS_URL:            os.Getenv("REDIS_URL"),
		RESULT_CACHE_BACKEND: getEnvOrDefault("RESULT_CACHE_BACKEND", "memory"),
		RESULT_CACHE_TTL:     cacheTTL,
		// OCR
		OCR_SERVICE_URL: os.Getenv("OCR_SERVICE_URL"),
		OCR_SECRET:      os.Getenv("OCR_SECRET"),
		// Inference
		MODEL_ACCESS_KEY:   os.Getenv("MODEL_ACCESS_KEY"),
		INFERENCE_BASE_URL: os.Getenv("INFERENCE_BASE_URL"),
		INFERENCE_MODEL:    os.Getenv("INFERENCE_MODEL"),
		// Storage
		STORAGE_BACKEND:      getEnvOrDefault("STORAGE_BACKEND", "local"),
		UPLOAD_DIR:           getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		DO_SPACES_BUCKET:     os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:     getEnvOrDefault("DO_SPACES_REGION", "blr1"),
		DO_SPACES_ENDPOINT:   os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_ACCESS_KEY: os.Getenv("DO_SPACES_ACCESS_KEY"),
		DO_SPACES_SECRET_KEY: os.Getenv("DO_SPACES_SECRET_KEY"),
		// HTTP
		ALLOWED_ORIGINS: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		CRON_ENABLED:    cronEnabled,
	}

	return envVariables, nil
}

// IsProduction reports whether GO_ENV is production
func (e *EnvironmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
