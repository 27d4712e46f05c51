package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	DatabaseURL     string
	LogLevel        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	StreamAPIKey    string
	StreamAPISecret string
	StreamBaseURL   string
	ExternalTimeout int // seconds, applied per external call
	HistoryLimit    int // chat records loaded for context assembly
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		HTTPPort:        getEnv("HTTP_PORT", "5000"),
		DatabaseURL:     getEnv("DATABASE_URL", "chatforge.db"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		StreamAPIKey:    getEnv("STREAM_API_KEY", ""),
		StreamAPISecret: getEnv("STREAM_API_SECRET", ""),
		StreamBaseURL:   getEnv("STREAM_BASE_URL", "https://chat.stream-io-api.com"),
		ExternalTimeout: getEnvAsInt("EXTERNAL_TIMEOUT_SECONDS", 30),
		HistoryLimit:    getEnvAsInt("HISTORY_LIMIT", 10),
	}

	if AppConfig.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	if AppConfig.StreamAPIKey == "" || AppConfig.StreamAPISecret == "" {
		log.Fatal("STREAM_API_KEY and STREAM_API_SECRET environment variables are required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
