package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogFileConfig struct {
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`
	Quiet bool   `json:"quiet" yaml:"quiet"`
	// Console is "charm" (the default) or "tint".
	Console string        `json:"console" yaml:"console"`
	File    LogFileConfig `json:"file" yaml:"file"`
}

var logLevel = new(slog.LevelVar)

// InitSlog sets the default slog logger, pretty console output goes to stderr
// and, when a file path is configured, JSON lines go to a rotating log file.
// The returned closer flushes and closes the log file.
func InitSlog(config LogConfig) (io.Closer, error) {
	level := slog.LevelInfo
	if config.Level != "" {
		err := level.UnmarshalText([]byte(config.Level))
		if err != nil {
			return nil, err
		}
	}
	logLevel.Set(level)

	var handlers []slog.Handler
	if !config.Quiet {
		console, err := consoleHandler(config.Console, level)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, console)
	}

	var closer io.Closer = nopCloser{}
	if config.File.Path != "" {
		file := &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			LocalTime:  true,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
		}))
		closer = file

		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)
		go func() {
			for range c {
				file.Rotate()
			}
		}()
	}

	slog.SetDefault(slog.New(teeHandler(handlers)))
	return closer, nil
}

func consoleHandler(style string, level slog.Level) (slog.Handler, error) {
	switch style {
	case "", "charm":
		return charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.Level(level),
		}), nil
	case "tint":
		return tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		}), nil
	default:
		return nil, fmt.Errorf("unknown console log style %q", style)
	}
}

func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// teeHandler fans a record out to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		err := h.Handle(ctx, r.Clone())
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
