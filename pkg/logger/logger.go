// Package logger provides structured request logging for the gateway.
// It keeps a small Field API on top of zap and redacts student account
// numbers before they reach the log sink.
package logger

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/blake2b"
)

// Level represents the severity of a log message.
type Level = zapcore.Level

const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

// ParseLevel parses a string into a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field is a key-value pair for structured logging.
type Field = zap.Field

func String(key, value string) Field      { return zap.String(key, value) }
func Int(key string, value int) Field     { return zap.Int(key, value) }
func Int64(key string, value int64) Field { return zap.Int64(key, value) }
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

// Err creates an error field.
func Err(err error) Field { return zap.Error(err) }

// Options configures the logger.
type Options struct {
	Output io.Writer
	Level  Level

	// JSON selects the production encoder; otherwise a console encoder is used.
	JSON bool

	// RedactionKey keys the account digest. Empty disables redaction.
	RedactionKey string
}

// Logger wraps a zap.Logger.
type Logger struct {
	zl *zap.Logger
}

// New creates a new Logger with the given options.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(opts.Output), zap.NewAtomicLevelAt(opts.Level))
	SetRedactionKey(opts.RedactionKey)
	return &Logger{zl: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// With returns a new Logger with the given fields added.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zl: l.zl.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zl.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zl.Error(msg, fields...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}

// RequestIDKey is the field key used for request tracing.
const RequestIDKey = "request_id"

// WithRequestID returns a logger with the request ID attached.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN FIELDS
// ══════════════════════════════════════════════════════════════════════════════

func ChatID(id int64) Field          { return Int64("chat_id", id) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

// Account logs a student account number, redacted when a key is configured.
func Account(accountID string) Field {
	return String("account", RedactAccount(accountID))
}

var (
	redactMu  sync.RWMutex
	redactKey []byte
)

// SetRedactionKey sets the key used by RedactAccount. Empty disables redaction.
func SetRedactionKey(key string) {
	redactMu.Lock()
	defer redactMu.Unlock()
	if key == "" {
		redactKey = nil
		return
	}
	// blake2b keys are limited to 64 bytes.
	k := []byte(key)
	if len(k) > blake2b.Size {
		k = k[:blake2b.Size]
	}
	redactKey = k
}

// RedactAccount returns a stable keyed digest of an account number so that
// log lines for the same student can be correlated without exposing it.
func RedactAccount(accountID string) string {
	redactMu.RLock()
	key := redactKey
	redactMu.RUnlock()
	if key == nil || accountID == "" {
		return accountID
	}
	h, err := blake2b.New(8, key)
	if err != nil {
		return "redacted"
	}
	h.Write([]byte(accountID))
	return "acct_" + hex.EncodeToString(h.Sum(nil))
}
