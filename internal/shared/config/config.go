package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// PreprocessConfig controls the OCR image preprocessing stage.
type PreprocessConfig struct {
	Enabled           bool
	MinWidth          int
	MaxWidth          int
	CLAHE             bool
	Denoise           bool
	Sharpen           bool
	AdaptiveThreshold bool
	Close             bool
	Deskew            bool
}

// OCRConfig selects and parameterizes the OCR provider.
type OCRConfig struct {
	Provider       string // "tesseract" or "remote"
	Language       string
	PageSegMode    int
	RemoteURL      string
	TimeoutSeconds int
	MinTextLen     int
	MaxTextLen     int
}

// LLMConfig parameterizes the analysis model backend.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	DataDir         string
	CORSAllowOrigin []string
	MaxUploadBytes  int64
	RulesPath       string
	Preprocess      PreprocessConfig
	OCR             OCRConfig
	LLM             LLMConfig
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		DatabaseURL:     dbURL,
		DataDir:         getEnv("DATA_DIR", "./data"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		RulesPath:       getEnv("RULES_PATH", ""),
		Preprocess: PreprocessConfig{
			Enabled:           getEnvBool("PREPROCESS_ENABLED", true),
			MinWidth:          getEnvInt("PREPROCESS_MIN_WIDTH", 800),
			MaxWidth:          getEnvInt("PREPROCESS_MAX_WIDTH", 2000),
			CLAHE:             getEnvBool("PREPROCESS_CLAHE", true),
			Denoise:           getEnvBool("PREPROCESS_DENOISE", true),
			Sharpen:           getEnvBool("PREPROCESS_SHARPEN", true),
			AdaptiveThreshold: getEnvBool("PREPROCESS_ADAPTIVE_THRESHOLD", true),
			Close:             getEnvBool("PREPROCESS_CLOSE", true),
			Deskew:            getEnvBool("PREPROCESS_DESKEW", true),
		},
		OCR: OCRConfig{
			Provider:       normalizeOCRProvider(getEnv("OCR_PROVIDER", "tesseract")),
			Language:       getEnv("OCR_LANGUAGE", "chi_sim+eng"),
			PageSegMode:    getEnvInt("OCR_PSM", 6),
			RemoteURL:      getEnv("OCR_REMOTE_URL", ""),
			TimeoutSeconds: getEnvInt("OCR_TIMEOUT_SECONDS", 30),
			MinTextLen:     getEnvInt("OCR_MIN_TEXT_LEN", 1),
			MaxTextLen:     getEnvInt("OCR_MAX_TEXT_LEN", 5000),
		},
		LLM: LLMConfig{
			APIKey:         os.Getenv("LLM_API_KEY"),
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvInt("LLM_TIMEOUT_SECONDS", 120),
		},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeOCRProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "remote":
		return "remote"
	default:
		return "tesseract"
	}
}
