package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port     int
	Env      string
	LogLevel string

	// Settings store
	Settings SettingsConfig

	// LLM
	LLM LLMConfig

	// Maximum number of live views kept by the API server
	MaxViews int
}

// SettingsConfig selects the backend for persisted user settings
type SettingsConfig struct {
	// Backend: memory, file, sqlite, postgres, redis
	Backend string

	// Path is used by the file and sqlite backends
	Path string

	DatabaseURL string
	RedisURL    string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	// Default provider: hosted-api, local-custom, on-device
	DefaultProvider string

	// Hosted (Gemini) settings
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// On-device runtime settings
	OnDeviceURL   string
	OnDeviceModel string

	// Transport timeout for a single model call
	RequestTimeout time.Duration
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvInt("PORT", 8080),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		MaxViews: getEnvInt("MAX_VIEWS", 256),

		Settings: SettingsConfig{
			Backend:     getEnv("SETTINGS_BACKEND", "file"),
			Path:        getEnv("SETTINGS_PATH", defaultSettingsPath()),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisURL:    getEnv("REDIS_URL", ""),
		},

		LLM: LLMConfig{
			DefaultProvider: getEnv("DEFAULT_PROVIDER", "hosted-api"),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-3-flash-preview"),
			GeminiBaseURL:   getEnv("GEMINI_BASE_URL", ""),
			OnDeviceURL:     getEnv("ONDEVICE_URL", "http://localhost:11434"),
			OnDeviceModel:   getEnv("ONDEVICE_MODEL", "gemma3:1b"),
			RequestTimeout:  getEnvDuration("LLM_TIMEOUT", 5*time.Minute),
		},
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Settings.Path == "" {
			return fmt.Errorf("SETTINGS_PATH required when using %s settings backend", c.Settings.Backend)
		}
	case "postgres":
		if c.Settings.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL required when using postgres settings backend")
		}
	case "redis":
		if c.Settings.RedisURL == "" {
			return fmt.Errorf("REDIS_URL required when using redis settings backend")
		}
	default:
		return fmt.Errorf("unknown settings backend %q", c.Settings.Backend)
	}

	switch c.LLM.DefaultProvider {
	case "hosted-api", "local-custom", "on-device":
	default:
		return fmt.Errorf("unknown default provider %q", c.LLM.DefaultProvider)
	}

	if c.MaxViews <= 0 {
		return fmt.Errorf("MAX_VIEWS must be positive")
	}

	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".autoqa-settings.yaml"
	}
	return dir + string(os.PathSeparator) + "autoqa" + string(os.PathSeparator) + "settings.yaml"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
