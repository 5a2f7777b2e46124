package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/arnold/goalmentor-api/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var output io.Writer = os.Stdout

// Init installs a JSON slog logger as the process default. Records go to
// stdout, a rotated file, or both.
func Init(cfg config.LogConfig) {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	output = io.MultiWriter(writers...)
	h := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	slog.SetDefault(slog.New(h))
	slog.Info("logger initialized", "level", cfg.Level, "file", cfg.File)
}

// Writer returns the sink chosen by Init so access logs land next to
// application logs.
func Writer() io.Writer {
	return output
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
