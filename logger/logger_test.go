package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	t.Run("should parse level", func(t *testing.T) {
		log := New("debug", false)
		if log.GetLevel() != zerolog.DebugLevel {
			t.Errorf("expected debug level, got %s", log.GetLevel())
		}
	})

	t.Run("should fall back to info on bad level", func(t *testing.T) {
		log := New("nonsense", false)
		if log.GetLevel() != zerolog.InfoLevel {
			t.Errorf("expected info fallback, got %s", log.GetLevel())
		}
	})

	t.Run("should fall back to info on empty level", func(t *testing.T) {
		log := New("", true)
		if log.GetLevel() != zerolog.InfoLevel {
			t.Errorf("expected info fallback, got %s", log.GetLevel())
		}
	})
}

func TestNop(t *testing.T) {
	log := Nop()
	if log.GetLevel() != zerolog.Disabled {
		t.Errorf("expected disabled logger, got %s", log.GetLevel())
	}
}
