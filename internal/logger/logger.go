package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	*zerolog.Logger
}

var (
	// Default log levels per environment; LOG_LEVEL overrides them
	logLevel = map[string]zerolog.Level{
		"development": zerolog.DebugLevel,
		"staging":     zerolog.InfoLevel,
		"production":  zerolog.InfoLevel,
		"test":        zerolog.WarnLevel,
	}
)

// Config represents logger configuration
type Config struct {
	IsProduction bool
	AppEnv       string
	Level        string
	Out          io.Writer
}

// New creates a new logger instance for a specific component
func New(component string) *Logger {
	env := os.Getenv("APP_ENV")
	return NewWithConfig(component, Config{
		IsProduction: env == "production",
		AppEnv:       env,
		Level:        os.Getenv("LOG_LEVEL"),
	})
}

// Nop returns a logger that discards everything. Used by tests and optional collaborators.
func Nop(component string) *Logger {
	l := zerolog.Nop()
	return &Logger{Logger: &l}
}

// NewWithConfig creates a new logger instance with custom configuration
func NewWithConfig(component string, config Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	level := getLogLevel(config.AppEnv, config.Level)

	// Production ships JSON lines with the component as a field
	if config.IsProduction {
		l := zerolog.New(out).Level(level).With().Timestamp().Str("component", component).Logger()
		return &Logger{Logger: &l}
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %s", component, i)
		},
		FormatLevel: func(i interface{}) string {
			if level, ok := i.(string); ok {
				switch level {
				case "debug":
					return "\033[36m[DEBUG]\033[0m"
				case "info":
					return "\033[34m[INFO]\033[0m"
				case "success":
					return "\033[32m[SUCCESS]\033[0m"
				case "warn":
					return "\033[33m[WARN]\033[0m"
				case "error":
					return "\033[31m[ERROR]\033[0m"
				case "fatal":
					return "\033[35m[FATAL]\033[0m"
				default:
					return fmt.Sprintf("[%s]", level)
				}
			}
			return "???"
		},
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Logger{Logger: &l}
}

// getLogLevel resolves an explicit level name first, then the environment default
func getLogLevel(env, explicit string) zerolog.Level {
	if explicit != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(explicit)); err == nil {
			return lvl
		}
	}
	if level, exists := logLevel[env]; exists {
		return level
	}
	return zerolog.DebugLevel
}

// With returns a child logger tagged with a sub-component, e.g. a sub-fetch name
func (l *Logger) With(sub string) *Logger {
	child := l.Logger.With().Str("sub", sub).Logger()
	return &Logger{Logger: &child}
}

func (l *Logger) Success() *zerolog.Event { return l.Logger.Info().Str("level", "success") }

func (l *Logger) LogDebugf(format string, v ...interface{}) {
	l.Debug().Msgf(format, v...)
}

func (l *Logger) LogInfo(msg string) {
	l.Info().Msg(msg)
}

func (l *Logger) LogInfof(format string, v ...interface{}) {
	l.Info().Msgf(format, v...)
}

func (l *Logger) LogSuccessf(format string, v ...interface{}) {
	l.Success().Msgf(format, v...)
}

func (l *Logger) LogWarn(msg string) {
	l.Warn().Msg(msg)
}

func (l *Logger) LogWarnf(format string, v ...interface{}) {
	l.Warn().Msgf(format, v...)
}

func (l *Logger) LogError(msg string, err error) {
	if err != nil {
		l.Error().Err(err).Msg(msg)
		return
	}
	l.Error().Msg(msg)
}

func (l *Logger) LogErrorf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

func (l *Logger) LogFatal(msg string, err error) {
	if err != nil {
		l.Fatal().Err(err).Msg(msg)
		return
	}
	l.Fatal().Msg(msg)
}
