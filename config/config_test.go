package config

import (
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults when env is empty", func(t *testing.T) {
		t.Setenv("PAPERTRADER_ENVIRONMENT", "")
		t.Setenv("PAPERTRADER_API_PORT", "")
		t.Setenv("PAPERTRADER_LOG_LEVEL", "")
		t.Setenv("PAPERTRADER_ALLOWED_ORIGINS", "")

		s, err := Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if s.Environment != "development" {
			t.Errorf("expected development, got %s", s.Environment)
		}
		if s.APIPort != 8080 {
			t.Errorf("expected default port 8080, got %d", s.APIPort)
		}
		if s.LogLevel != "info" {
			t.Errorf("expected info, got %s", s.LogLevel)
		}
		if !s.LogPretty {
			t.Error("development defaults to pretty logs")
		}
		if len(s.AllowedOrigins) != 2 {
			t.Errorf("expected 2 default origins, got %v", s.AllowedOrigins)
		}
	})

	t.Run("should read prefixed env vars", func(t *testing.T) {
		t.Setenv("PAPERTRADER_ENVIRONMENT", "production")
		t.Setenv("PAPERTRADER_API_PORT", "9090")
		t.Setenv("PAPERTRADER_JWT_SECRET", "secret")
		t.Setenv("PAPERTRADER_ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("PAPERTRADER_CHARTINK_TOKEN", "tok-chartink")
		t.Setenv("PAPERTRADER_TELEGRAM_CHAT_ID", "12345")

		s, err := Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if s.Environment != "production" || s.APIPort != 9090 {
			t.Errorf("env overrides not applied: %+v", s)
		}
		if s.LogPretty {
			t.Error("production defaults to json logs")
		}
		if len(s.AllowedOrigins) != 2 || s.AllowedOrigins[1] != "https://b.example" {
			t.Errorf("origins not trimmed/split: %v", s.AllowedOrigins)
		}
		if s.WebhookTokens["chartink"] != "tok-chartink" {
			t.Errorf("chartink token not mapped: %v", s.WebhookTokens)
		}
		if s.TelegramChatID != 12345 {
			t.Errorf("chat id not parsed, got %d", s.TelegramChatID)
		}
	})

	t.Run("should reject non-numeric port", func(t *testing.T) {
		t.Setenv("PAPERTRADER_API_PORT", "not-a-port")
		if _, err := Load(); err == nil {
			t.Error("expected error for bad port")
		}
	})

	t.Run("should reject non-numeric chat id", func(t *testing.T) {
		t.Setenv("PAPERTRADER_API_PORT", "")
		t.Setenv("PAPERTRADER_TELEGRAM_CHAT_ID", "abc")
		if _, err := Load(); err == nil {
			t.Error("expected error for bad chat id")
		}
	})
}
