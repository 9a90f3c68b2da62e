package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ParserLlamaCloud = "llamacloud"
	ParserLocal      = "local"

	ClassifierHuggingFace = "huggingface"
	ClassifierOpenAI      = "openai"
)

type Config struct {
	Environment string
	Port        string
	Token       string
	LogLevel    string
	LogFormat   string
	Storage     StorageConfig
	Parser      ParserConfig
	Llama       LlamaConfig
	Classifier  ClassifierConfig
	Database    DatabaseConfig
}

type StorageConfig struct {
	UploadDir      string
	ImagesDir      string
	MaxUploadBytes int64
}

type ParserConfig struct {
	Provider      string
	TesseractLang string
}

type LlamaConfig struct {
	APIKey       string
	BaseURL      string
	Language     string
	NumWorkers   int
	Timeout      time.Duration
	PollInterval time.Duration
}

type ClassifierConfig struct {
	Provider     string
	HFToken      string
	HFModel      string
	HFBaseURL    string
	OpenAIAPIKey string
	OpenAIModel  string
	Labels       []string
	Timeout      time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	URL      string
	MaxConns int32
	Migrate  bool
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENV", "development"),
		Port:        getEnv("PORT", "5000"),
		Token:       getEnv("TOKEN", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Storage: StorageConfig{
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			ImagesDir:      getEnv("IMAGES_DIR", "extracted_images"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
		},
		Parser: ParserConfig{
			Provider:      strings.ToLower(getEnv("PARSER_PROVIDER", ParserLlamaCloud)),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
		},
		Llama: LlamaConfig{
			APIKey:       getEnv("LLAMA_CLOUD_API_KEY", ""),
			BaseURL:      getEnv("LLAMA_BASE_URL", "https://api.cloud.llamaindex.ai"),
			Language:     getEnv("LLAMA_LANGUAGE", "en"),
			NumWorkers:   getEnvAsInt("LLAMA_NUM_WORKERS", 1),
			Timeout:      getEnvAsDuration("LLAMA_TIMEOUT", 5*time.Minute),
			PollInterval: getEnvAsDuration("LLAMA_POLL_INTERVAL", 2*time.Second),
		},
		Classifier: ClassifierConfig{
			Provider:     strings.ToLower(getEnv("CLASSIFIER_PROVIDER", ClassifierHuggingFace)),
			HFToken:      getEnv("HF_API_TOKEN", ""),
			HFModel:      getEnv("HF_MODEL", "facebook/bart-large-mnli"),
			HFBaseURL:    getEnv("HF_BASE_URL", "https://api-inference.huggingface.co"),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Labels:       []string{"AI-generated", "human-written"},
			Timeout:      getEnvAsDuration("CLASSIFIER_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("METADATA_ENABLED", true),
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			Migrate:  getEnvAsBool("DB_MIGRATE", false),
		},
	}
}

// Validate reports every missing required key at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Parser.Provider {
	case ParserLlamaCloud:
		if c.Llama.APIKey == "" {
			errs = append(errs, errors.New("LLAMA_CLOUD_API_KEY environment variable not set"))
		}
	case ParserLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown PARSER_PROVIDER %q", c.Parser.Provider))
	}

	switch c.Classifier.Provider {
	case ClassifierHuggingFace:
	case ClassifierOpenAI:
		if c.Classifier.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CLASSIFIER_PROVIDER %q", c.Classifier.Provider))
	}

	if c.Database.Enabled && c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Llama.NumWorkers < 1 {
		errs = append(errs, errors.New("LLAMA_NUM_WORKERS must be at least 1"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
