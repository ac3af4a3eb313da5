package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 所有環境變數只在這個套件讀取
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// External APIs
	FinMind FinMindConfig
	TWSE    TWSEConfig
	Yahoo   YahooConfig

	// Caches
	Cache CacheConfig

	// Screener
	ScreenWorkers int

	// Logging
	LogLevel  string
	LogFormat string
}

// FinMindConfig holds FinMind open data API configuration
type FinMindConfig struct {
	BaseURL string
	Token   string // optional bearer token, 無 token 時走免費額度
}

// TWSEConfig holds TWSE/TPEX intraday quote API configuration
type TWSEConfig struct {
	BaseURL string
}

// YahooConfig holds Yahoo 股市 scrape configuration
type YahooConfig struct {
	BaseURL string
}

// CacheConfig holds TTL cache parameters
type CacheConfig struct {
	APITTL       time.Duration // FinMind 回應快取
	APIMaxSize   int
	QuoteTTL     time.Duration // 盤中報價快取
	QuoteMaxSize int
	RosterTTL    time.Duration // 股票清單，每日更新
}

// Load reads configuration from environment variables
// ⭐ SSOT: 只有這個函式呼叫 os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "5001"),
		Env:  getEnv("ENV", "development"),

		FinMind: FinMindConfig{
			BaseURL: getEnv("FINMIND_BASE_URL", "https://api.finmindtrade.com/api/v4/data"),
			Token:   getEnv("FINMIND_TOKEN", ""),
		},

		TWSE: TWSEConfig{
			BaseURL: getEnv("TWSE_BASE_URL", "https://mis.twse.com.tw"),
		},

		Yahoo: YahooConfig{
			BaseURL: getEnv("YAHOO_BASE_URL", "https://tw.stock.yahoo.com"),
		},

		Cache: CacheConfig{
			APITTL:       getEnvAsDuration("CACHE_API_TTL", "5m"),
			APIMaxSize:   getEnvAsInt("CACHE_API_MAX_SIZE", 200),
			QuoteTTL:     getEnvAsDuration("CACHE_QUOTE_TTL", "10s"),
			QuoteMaxSize: getEnvAsInt("CACHE_QUOTE_MAX_SIZE", 50),
			RosterTTL:    getEnvAsDuration("CACHE_ROSTER_TTL", "24h"),
		},

		ScreenWorkers: getEnvAsInt("SCREEN_WORKERS", 10),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.ScreenWorkers <= 0 {
		return fmt.Errorf("SCREEN_WORKERS must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
