package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings 应用配置。main 里调用一次 Load 后显式传给各组件，
// 不做进程级缓存单例。
type Settings struct {
	Environment string // development / production
	APIPort     int
	LogLevel    string
	LogPretty   bool

	DatabasePath string

	JWTSecret      string
	AllowedOrigins []string

	// WebhookTokens source → 共享 token；为空表示该来源不校验。
	WebhookTokens map[string]string

	// 行情源。FixtureDir 非空时优先使用 CSV 固定数据。
	FixtureDir       string
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceInterval  string

	// 经纪商凭据加密口令。
	BrokerPassphrase string

	TelegramToken  string
	TelegramChatID int64
}

const envPrefix = "PAPERTRADER_"

// Load 从环境变量读取配置（.env 由 main 通过 godotenv 预加载）。
func Load() (*Settings, error) {
	s := &Settings{
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabasePath:     getEnv("DATABASE_PATH", "data/papertrader.db"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		FixtureDir:       getEnv("FIXTURE_DIR", ""),
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceSecretKey: getEnv("BINANCE_SECRET_KEY", ""),
		BinanceInterval:  getEnv("BINANCE_INTERVAL", "1m"),
		BrokerPassphrase: getEnv("BROKER_PASSPHRASE", ""),
		TelegramToken:    getEnv("TELEGRAM_TOKEN", ""),
	}

	port, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid %sAPI_PORT: %w", envPrefix, err)
	}
	s.APIPort = port

	s.LogPretty = s.Environment == "development"
	if v := os.Getenv(envPrefix + "LOG_PRETTY"); v != "" {
		s.LogPretty = v == "true" || v == "1"
	}

	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			s.AllowedOrigins = append(s.AllowedOrigins, origin)
		}
	}

	s.WebhookTokens = map[string]string{}
	if v := getEnv("CHARTINK_TOKEN", ""); v != "" {
		s.WebhookTokens["chartink"] = v
	}
	if v := getEnv("TRADINGVIEW_TOKEN", ""); v != "" {
		s.WebhookTokens["tradingview"] = v
	}

	if v := getEnv("TELEGRAM_CHAT_ID", ""); v != "" {
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %sTELEGRAM_CHAT_ID: %w", envPrefix, err)
		}
		s.TelegramChatID = chatID
	}

	return s, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}
