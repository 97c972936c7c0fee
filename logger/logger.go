package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New 构造应用日志器。开发环境用彩色 console writer，
// 其他环境输出 JSON。组件通过参数显式接收 logger，不走全局变量。
func New(level string, pretty bool) zerolog.Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop 静默日志器，测试用。
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
