// Package logger provides structured logging for the storage engine.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with engine-specific component scoping.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// New creates a new structured logger.
func New(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "relstore").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger.
func (l *Logger) GetZerolog() *zerolog.Logger { return &l.zlog }

func (l *Logger) Debug(msg string) *zerolog.Event { return l.zlog.Debug().Str("msg", msg) }
func (l *Logger) Info(msg string) *zerolog.Event  { return l.zlog.Info().Str("msg", msg) }
func (l *Logger) Warn(msg string) *zerolog.Event  { return l.zlog.Warn().Str("msg", msg) }
func (l *Logger) Error(msg string) *zerolog.Event { return l.zlog.Error().Str("msg", msg) }

// LogGrpcRequest logs a completed admin RPC at info level, or warn with
// the error attached if the RPC failed.
func (l *Logger) LogGrpcRequest(method string, d time.Duration, err error) {
	ev := l.zlog.Info()
	if err != nil {
		ev = l.zlog.Warn().Err(err)
	}
	ev.Str("method", method).Dur("duration", d).Msg("grpc request")
}

// Component returns a logger tagged with the given subsystem name, used
// by each layer (disk, buffer, index, heap, catalog) to scope its log
// lines without threading a field list through every call site.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// WithFields returns a logger with additional structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

var global *Logger

// Init sets the process-wide default logger (used by components that
// are not handed an explicit *Logger).
func Init(cfg Config) {
	global = New(cfg)
	log.Logger = *global.GetZerolog()
}

// Get returns the global logger, lazily initializing it with defaults.
func Get() *Logger {
	if global == nil {
		Init(Config{Level: "info", Pretty: true})
	}
	return global
}
