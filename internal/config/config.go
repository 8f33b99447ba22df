package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Vector store
	QdrantURL        string
	UserCollection   string
	SystemCollection string
	ManualCollection string
	SearchLimit      int

	// LLM completion service
	GroqAPIKey string
	GroqAPIURL string
	GroqModel  string

	// Embeddings configuration
	EmbeddingsProvider    string // "fastembed" (default), "google"
	FastembedPython       string
	FastembedScript       string
	EmbedBatchSize        int
	GeminiAPIKey          string
	GoogleEmbeddingsModel string

	// Upload handling
	MaxFileSize    int64
	MaxUploadFiles int
	FileStorageDir string
	SystemDocsDir  string

	// Redis Configuration (asynq backend)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Evaluation pipeline
	LLMRetryAttempts  int
	LLMRetryBackoff   time.Duration
	EvalDelay         time.Duration
	JobTTL            time.Duration
	WorkerConcurrency int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		UserCollection:   getEnv("USER_COLLECTION", "user_docs"),
		SystemCollection: getEnv("SYSTEM_COLLECTION", "system_docs"),
		ManualCollection: getEnv("MANUAL_COLLECTION", "manual_ingest"),
		SearchLimit:      getEnvInt("SEARCH_LIMIT", 5),

		GroqAPIKey: getEnv("GROQ_API_KEY", ""),
		GroqAPIURL: getEnv("GROQ_API_URL", "https://api.groq.com/openai/v1/chat/completions"),
		GroqModel:  getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "fastembed"),
		FastembedPython:       getEnv("FASTEMBED_PYTHON", "python3"),
		FastembedScript:       getEnv("FASTEMBED_SCRIPT", "./scripts/fastembed_helper.py"),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 25),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB per upload request
		MaxUploadFiles: getEnvInt("MAX_UPLOAD_FILES", 2),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
		SystemDocsDir:  getEnv("SYSTEM_DOCS_DIR", "./system"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LLMRetryAttempts:  getEnvInt("LLM_RETRY_ATTEMPTS", 3),
		LLMRetryBackoff:   time.Duration(getEnvInt("LLM_RETRY_BACKOFF_MS", 400)) * time.Millisecond,
		EvalDelay:         time.Duration(getEnvInt("EVAL_DELAY_MS", 2000)) * time.Millisecond,
		JobTTL:            time.Duration(getEnvInt("JOB_TTL_HOURS", 24)) * time.Hour,
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
	}

	return cfg, nil
}

// ValidateServer checks the options the API server cannot run without. The
// ingest CLI talks only to Qdrant and the embedding provider, so it skips
// this check.
func (c *Config) ValidateServer() error {
	if c.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required - set it in .env file")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
