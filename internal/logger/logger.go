package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger with the writers it owns
type Logger struct {
	logger   zerolog.Logger
	file     *RotatingWriter
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string    // debug, info, warn, error
	File      string    // log file path
	Console   bool      // enable console output
	Pretty    bool      // pretty format for console
	Redaction bool      // enable sensitive data redaction
	MaxSize   int       // max size in MB before rotation
	MaxAge    int       // max age in days
	Compress  bool      // compress rotated logs
	Output    io.Writer // replaces stdout for console output
}

// New creates a logger and installs it as the global zerolog logger.
// The level is applied globally so SetLevel can change it at runtime.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	console := cfg.Output
	if console == nil {
		console = os.Stdout
	}

	var writers []io.Writer

	if cfg.Console {
		var consoleWriter io.Writer = console
		if cfg.Pretty {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        console,
				TimeFormat: time.RFC3339,
			}
		}
		writers = append(writers, consoleWriter)
	}

	var file *RotatingWriter
	if cfg.File != "" {
		file, err = NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = console
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		writer = redactor.Wrap(writer)
	}

	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(writer).
		With().
		Timestamp().
		Logger()

	log.Logger = logger

	return &Logger{
		logger:   logger,
		file:     file,
		redactor: redactor,
	}, nil
}

// ParseLevel accepts debug, info, warn and error, plus zerolog's other names
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

// SetLevel changes the level of every logger in the process
func (l *Logger) SetLevel(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(parsed)
	l.logger.Info().Str("level", parsed.String()).Msg("Log level changed")
	return nil
}

// Level returns the active level
func (l *Logger) Level() zerolog.Level {
	return zerolog.GlobalLevel()
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// With creates a child logger context
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// GetZerolog returns the underlying zerolog.Logger
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.logger
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSize:   100,
		MaxAge:    7,
		Compress:  true,
	}
}
