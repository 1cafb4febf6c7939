// Package log provides structured logging for climacrop on top of zerolog.
//
// Components ask for a named Logger and attach key/value pairs:
//
//	logger := log.GetLoggerWithName("ridge").With(log.ModelNameKey, "RidgeCV")
//	logger.Info("Training started", log.SamplesKey, 120, log.FeaturesKey, 14)
//
// The process-wide provider is configured once with SetupLogger (or replaced
// with SetProvider in tests); loggers created before that keep working and
// pick up the new level on their next call.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	cerrors "github.com/banerjixplores/climacrop/pkg/errors"
)

// Standard field keys.
const (
	ModelNameKey  = "model_name"
	ComponentKey  = "component"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	PredsKey      = "predictions"
	DurationMsKey = "duration_ms"
	SystemKey     = "system_type"
	RunIDKey      = "run_id"
	PathKey       = "path"
	ErrorKey      = "error"
)

// Operation and phase values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationTune      = "tune"
	OperationLoad      = "load"
	OperationRender    = "render"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseValidation = "validation"
	PhaseServing    = "serving"
)

// Level is a logging level.
type Level int8

// Logging levels.
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	Disabled
)

// ToLogLevel parses a level name. Unknown names map to InfoLevel.
func ToLogLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error", "fatal":
		return ErrorLevel
	case "disabled", "off", "none":
		return Disabled
	default:
		return InfoLevel
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case Disabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger is a leveled key/value logger.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// LoggerProvider hands out loggers sharing one output and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}

type zerologProvider struct {
	base zerolog.Logger
}

// NewZerologProvider returns a JSON provider writing to stderr.
func NewZerologProvider(level Level) LoggerProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter returns a JSON provider writing to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) LoggerProvider {
	base := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	return &zerologProvider{base: base}
}

// NewConsoleProvider returns a human-readable provider for terminals.
func NewConsoleProvider(w io.Writer, level Level) LoggerProvider {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	base := zerolog.New(cw).Level(level.zerolog()).With().Timestamp().Logger()
	return &zerologProvider{base: base}
}

func (p *zerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{zl: p.base.With().Str("logger", name).Logger()}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.base = p.base.Level(level.zerolog())
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...interface{}) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...interface{}) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...interface{}) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...interface{}) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...interface{}) Logger {
	if len(fields) == 0 {
		return l
	}
	return &zerologLogger{zl: l.zl.With().Fields(normalize(fields)).Logger()}
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields []interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		ev = ev.Fields(normalize(fields))
	}
	ev.Msg(msg)
}

// normalize pads an odd-length key/value list so the last key is not dropped.
func normalize(fields []interface{}) []interface{} {
	if len(fields)%2 == 0 {
		return fields
	}
	out := make([]interface{}, len(fields)+1)
	copy(out, fields)
	out[len(fields)] = "(MISSING)"
	return out
}

var (
	mu       sync.RWMutex
	provider LoggerProvider = NewZerologProvider(InfoLevel)
)

// SetupLogger installs a JSON provider on stderr at the named level and routes
// pkg/errors warnings to it.
func SetupLogger(level string) {
	SetProvider(NewZerologProvider(ToLogLevel(level)))
}

// SetupLoggerWithFormat is SetupLogger with a choice of "json" or "console" output.
func SetupLoggerWithFormat(level, format string) {
	if strings.EqualFold(format, "console") {
		SetProvider(NewConsoleProvider(os.Stderr, ToLogLevel(level)))
		return
	}
	SetupLogger(level)
}

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	mu.Lock()
	provider = p
	mu.Unlock()

	warnLogger := p.GetLoggerWithName("warnings")
	cerrors.SetWarningHandler(func(err error) {
		warnLogger.Warn(err.Error())
	})
}

// GetLogger returns an unnamed logger from the current provider.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a named logger from the current provider.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// LogError logs err at error level with optional extra fields.
func LogError(err error, msg string, fields ...interface{}) {
	if err == nil {
		return
	}
	fields = append(fields, ErrorKey, err.Error())
	GetLogger().Error(msg, fields...)
}
