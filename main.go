package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"papertrader/api"
	"papertrader/broker"
	"papertrader/config"
	"papertrader/execution"
	"papertrader/logger"
	"papertrader/market"
	"papertrader/notify"
	"papertrader/portfolio"
	"papertrader/strategy"
	"papertrader/trading"
)

// defaultJWTSecret 文档/模板里出现过的占位密钥，禁止在生产使用。
const defaultJWTSecret = "your-jwt-secret-key-change-in-production-make-it-long-and-random"

// ConfigFile 可选的 config.json 覆盖项，优先级高于环境变量。
type ConfigFile struct {
	APIPort    int    `json:"api_port"`
	LogLevel   string `json:"log_level"`
	FixtureDir string `json:"fixture_dir"`
}

func loadConfigFile() (*ConfigFile, error) {
	data, err := os.ReadFile("config.json")
	if err != nil {
		return nil, fmt.Errorf("read config.json: %w", err)
	}
	var cf ConfigFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	return &cf, nil
}

// validateJWTSecret 拒绝空密钥、短密钥和默认占位密钥。
func validateJWTSecret(secret string) error {
	if secret == "" {
		return errors.New("jwt secret is empty")
	}
	if secret == defaultJWTSecret {
		return errors.New("jwt secret is the default placeholder, generate a random one")
	}
	if len(secret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	return nil
}

func main() {
	// .env 不存在不是错误
	_ = godotenv.Load()

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		os.Exit(1)
	}

	if cf, err := loadConfigFile(); err == nil {
		if cf.APIPort > 0 {
			settings.APIPort = cf.APIPort
		}
		if cf.LogLevel != "" {
			settings.LogLevel = cf.LogLevel
		}
		if cf.FixtureDir != "" {
			settings.FixtureDir = cf.FixtureDir
		}
	}

	log := logger.New(settings.LogLevel, settings.LogPretty)

	if settings.Environment == "production" {
		if err := validateJWTSecret(settings.JWTSecret); err != nil {
			log.Fatal().Err(err).Msg("refusing to start")
		}
	} else if settings.JWTSecret == "" {
		log.Warn().Msg("jwt secret not set, api auth disabled (development mode)")
	}

	store, err := config.OpenStore(settings.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	var provider market.Provider
	if settings.FixtureDir != "" {
		provider, err = market.LoadCSVDir(settings.FixtureDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", settings.FixtureDir).Msg("load fixture data")
		}
		log.Info().Str("dir", settings.FixtureDir).Msg("using csv fixture market data")
	} else {
		provider = market.NewBinanceProvider(settings.BinanceAPIKey, settings.BinanceSecretKey, settings.BinanceInterval)
		log.Info().Str("interval", settings.BinanceInterval).Msg("using binance market data")
	}

	// 纸面交易账户：长生命周期，回测账户与其相互独立
	pm := portfolio.NewManager(nil)
	engine := execution.NewEngine(pm)

	registry := strategy.NewRegistry()
	registry.Register("mean-reversion", strategy.NewMeanReversion(20, 1))
	registry.Register("rsi-reversal", strategy.NewRSIReversal(14, 1))

	tradingSvc := trading.NewService(engine, registry, log)
	brokerSvc := broker.NewService(store, settings.BrokerPassphrase)

	notifier, err := notify.NewTelegram(settings.TelegramToken, settings.TelegramChatID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init telegram notifier")
	}

	server := api.NewServer(settings, store, tradingSvc, brokerSvc, provider, notifier, log)
	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("api server exited")
	}
}
