package infra

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// Logger is an alias so callers do not import zerolog directly.
type Logger = zerolog.Logger

// NewLogger builds a zerolog logger writing to stdout. Development gets a
// console writer and debug level, everything else structured JSON at info.
func NewLogger(appEnv string) Logger {
	return newLogger(appEnv, os.Stdout)
}

// NewRotatingLogger mirrors NewLogger but tees output into a size-rotated
// file so long-running deployments do not grow a single log without bound.
func NewRotatingLogger(appEnv, path string) Logger {
	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	return newLogger(appEnv, zerolog.MultiLevelWriter(os.Stdout, rotated))
}

func newLogger(appEnv string, sink io.Writer) Logger {
	level := zerolog.InfoLevel
	out := sink

	if appEnv == "development" {
		level = zerolog.DebugLevel
		if sink == io.Writer(os.Stdout) {
			out = zerolog.ConsoleWriter{Out: os.Stdout}
		}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "thumbgen").
		Logger()
}
