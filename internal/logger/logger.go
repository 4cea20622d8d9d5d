package logger

import (
	"io"
	"os"

	"poke-arena/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. .env is loaded first so LOG_LEVEL and
// LOG_FILE may live there.
func New() zerolog.Logger {
	_ = config.LoadEnvFile()
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return SetLevel(level)
}

func SetLevel(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(output(os.Getenv("LOG_FILE"))).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}

// output tees stdout into a rotated file when path is set.
func output(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	return zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	})
}

var Module = fx.Provide(New)
