package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the quant core.
type Config struct {
	Port string

	// Database
	DBPath string

	// Universe
	StocksFile string

	// Quote provider
	QuoteBaseURL    string
	QuoteRatePerSec float64
	QuoteTimeoutSec int

	// Backtest defaults
	BacktestStartBalance    float64
	BacktestMaxPositions    int
	BacktestMinRemaining    float64
	BacktestFeeRate         float64 // decimal (e.g. 0.001 = 10 bps)
	BacktestAllowPyramiding bool

	// Auth
	JWTSecret string

	// Optional base64 AES-256 key for encrypting stored quote
	// credentials. Empty disables encryption at rest.
	EncryptionKey string

	// Localization
	Language string // "en" or "zh"
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	// Database path: prefer DB_PATH, then DATABASE_PATH for backward compatibility.
	dbPath := getEnv("DB_PATH", "")
	if dbPath == "" {
		dbPath = getEnv("DATABASE_PATH", "./data/quant.db")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		DBPath:                  dbPath,
		StocksFile:              getEnv("STOCKS_FILE", "./stocks.yaml"),
		QuoteBaseURL:            getEnv("QUOTE_BASE_URL", "https://finance.pae.baidu.com"),
		QuoteRatePerSec:         getEnvFloat("QUOTE_RATE_PER_SEC", 5),
		QuoteTimeoutSec:         getEnvInt("QUOTE_TIMEOUT_SEC", 15),
		BacktestStartBalance:    getEnvFloat("BACKTEST_START_BALANCE", 100000),
		BacktestMaxPositions:    getEnvInt("BACKTEST_MAX_HOLDS", 5),
		BacktestMinRemaining:    getEnvFloat("BACKTEST_MIN_BALANCE_TO_BUY", 5000),
		BacktestFeeRate:         getEnvFloat("BACKTEST_FEE_RATE", 0.001),
		BacktestAllowPyramiding: getEnv("BACKTEST_ALLOW_PYRAMIDING", "false") == "true",
		JWTSecret:               getEnv("JWT_SECRET", "dev-secret"),
		EncryptionKey:           getEnv("ENCRYPTION_KEY", ""),
		Language:                getEnv("LANGUAGE", "en"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
