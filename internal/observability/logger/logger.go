package logger

import (
	"context"
	"fmt"
	"strings"

	"timberline-crm/internal/observability/requestid"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerContextKey     contextKey = "logger"
	adminEmailContextKey contextKey = "admin_email"
	rootErrorContextKey  contextKey = "root_err"
)

type rootErrorContainer struct {
	err error
}

// Logger wraps zap.Logger to enforce the structured logging conventions:
// JSON output, RFC3339Nano timestamps, module/action fields on every entry,
// and redaction of secret/PII keys.
type Logger struct {
	zap         *zap.Logger
	serviceName string
}

// Field is a structured log field.
type Field = zapcore.Field

// New creates a Logger. level is one of "debug", "info", "warn", "error".
func New(serviceName string, level string) (*Logger, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("serviceName is required")
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	z = z.With(zap.String("service", serviceName))

	return &Logger{zap: z, serviceName: serviceName}, nil
}

// Module returns a field for the module/component.
func Module(name string) Field {
	return zap.String("module", name)
}

// Action returns a field for the action/operation.
func Action(name string) Field {
	return zap.String("action", name)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...Field) {
	contextFields := []Field{}

	if requestID := requestid.GetRequestID(ctx); requestID != "" {
		contextFields = append(contextFields, zap.String("request_id", requestID))
	}
	if admin := GetAdminEmailFromContext(ctx); admin != "" {
		contextFields = append(contextFields, zap.String("admin", admin))
	}

	sanitized := sanitizeFields(fields)

	// Missing module/action degrade to "unknown" instead of panicking; the
	// convention is enforced by review, runtime resilience wins.
	hasModule, hasAction := false, false
	for _, f := range sanitized {
		if f.Key == "module" {
			hasModule = true
		}
		if f.Key == "action" {
			hasAction = true
		}
	}
	if !hasModule {
		sanitized = append(sanitized, zap.String("module", "unknown"))
	}
	if !hasAction {
		sanitized = append(sanitized, zap.String("action", "unknown"))
	}

	allFields := append(contextFields, sanitized...)

	switch level {
	case zapcore.DebugLevel:
		l.zap.Debug(msg, allFields...)
	case zapcore.InfoLevel:
		l.zap.Info(msg, allFields...)
	case zapcore.WarnLevel:
		l.zap.Warn(msg, allFields...)
	case zapcore.ErrorLevel:
		l.zap.Error(msg, allFields...)
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// sanitizeFields redacts forbidden keys so secrets and customer PII never
// reach the log stream.
func sanitizeFields(fields []Field) []Field {
	forbiddenKeys := map[string]bool{
		"authorization": true,
		"token":         true,
		"password":      true,
		"secret":        true,
		"api_key":       true,
		"database_url":  true,
		"cookie":        true,
		"session":       true,
		// customer PII
		"email":     true,
		"phone":     true,
		"full_name": true,
		"address":   true,
		"message":   true,
	}

	sanitized := make([]Field, 0, len(fields))
	for _, field := range fields {
		if forbiddenKeys[strings.ToLower(field.Key)] {
			sanitized = append(sanitized, zap.String(field.Key, "[REDACTED]"))
		} else {
			sanitized = append(sanitized, field)
		}
	}
	return sanitized
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Context plumbing

func GetAdminEmailFromContext(ctx context.Context) string {
	if v := ctx.Value(adminEmailContextKey); v != nil {
		if email, ok := v.(string); ok {
			return email
		}
	}
	return ""
}

func SetAdminEmailInContext(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, adminEmailContextKey, email)
}

// GetLogger retrieves the logger from context, falling back to a fresh one so
// callers never nil-check.
func GetLogger(ctx context.Context) *Logger {
	if v := ctx.Value(loggerContextKey); v != nil {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	l, _ := New("timberline-crm", "info")
	return l
}

func SetLoggerInContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

// InitRootErrorContext installs a container that lets deep layers record the
// root cause of a 5xx for the request-summary log line.
func InitRootErrorContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, rootErrorContextKey, &rootErrorContainer{})
}

func SetRootError(ctx context.Context, err error) {
	if container, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		container.err = err
	}
}

func GetRootError(ctx context.Context) error {
	if container, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		return container.err
	}
	return nil
}
