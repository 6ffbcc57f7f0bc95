package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels accepted in the configuration
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Log formats accepted in the configuration
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger wraps zap's Logger. Diagnostics go to stderr; activity records
// are never written through it.
type Logger struct {
	*zap.Logger
}

// New builds a logger writing to stderr with the given level and format
func New(level, format string) (*Logger, error) {
	return newWithWriter(level, format, os.Stderr)
}

func newWithWriter(level, format string, w io.Writer) (*Logger, error) {
	lvl, err := toZapLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(format) {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(cfg)
	case FormatConsole, "":
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(lvl))
	return &Logger{Logger: zap.New(core, zap.AddCaller())}, nil
}

// toZapLevel converts a textual level to a zapcore.Level
func toZapLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case DebugLevel:
		return zapcore.DebugLevel, nil
	case InfoLevel, "":
		return zapcore.InfoLevel, nil
	case WarnLevel:
		return zapcore.WarnLevel, nil
	case ErrorLevel:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
