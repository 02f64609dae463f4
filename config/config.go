package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"signal-enginev1/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Binance credentials (optional: klines and trade streams are public)
	BinanceAPIKey    string
	BinanceSecretKey string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string

	// Scan scope
	Symbols    string // comma-separated, e.g. "BTCUSDT,ETHUSDT"
	Timeframes string // comma-separated, e.g. "H1,H4"

	// Scheduler
	CandleLimit       int
	ScanInterval      time.Duration
	MonitorInterval   time.Duration
	RetentionInterval time.Duration
	RetentionDays     int

	// Paper trading
	TradeQuantity float64
	TradeLeverage float64

	// Alerting (both optional)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}

	return &Config{
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceSecretKey: getEnv("BINANCE_SECRET_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		Symbols:    getEnv("SYMBOLS", "BTCUSDT,ETHUSDT"),
		Timeframes: getEnv("TIMEFRAMES", strings.Join(model.DefaultTimeframes, ",")),

		CandleLimit:       getEnvInt("CANDLE_LIMIT", 200),
		ScanInterval:      getEnvDuration("SCAN_INTERVAL", 5*time.Minute),
		MonitorInterval:   getEnvDuration("MONITOR_INTERVAL", 3*time.Second),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", time.Hour),
		RetentionDays:     getEnvInt("RETENTION_DAYS", 30),

		TradeQuantity: getEnvFloat("TRADE_QUANTITY", 1),
		TradeLeverage: getEnvFloat("TRADE_LEVERAGE", 1),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// ParseSymbols splits the Symbols string into a clean slice.
func (c *Config) ParseSymbols() []string {
	return splitCSV(c.Symbols)
}

// ParseTimeframes splits the Timeframes string, dropping unknown values.
func (c *Config) ParseTimeframes() []string {
	var out []string
	for _, tf := range splitCSV(c.Timeframes) {
		tf = strings.ToUpper(tf)
		if !model.KnownTimeframe(tf) {
			log.Printf("[config] skipping unknown timeframe: %q", tf)
			continue
		}
		out = append(out, tf)
	}
	if len(out) == 0 {
		return model.DefaultTimeframes
	}
	return out
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
