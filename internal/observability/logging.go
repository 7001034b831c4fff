package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/model"
)

type loggerKey struct{}

// NewLogger builds the JSON logger written to stdout. An unparsable level
// falls back to info.
//
// Levels, roughly:
//   - error: store failures, panics, 5xx answers
//   - warn:  rejected mutations, failed entity loads, open breaker
//   - info:  access lines, session sweeps, mutation outcomes
//   - debug: cache traffic, field patches, resolved sub-forms
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Sampling = nil
	zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zc.Level.SetLevel(lvl)
	}
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	return zc.Build()
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in ctx, or fallback.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, _ := ctx.Value(loggerKey{}).(*zap.Logger); l != nil {
		return l
	}
	return fallback
}

// RequestLogger tags the context logger with the session owner and the
// correlation and trace IDs of the request.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)
	rc := model.RequestContextFrom(ctx)
	if rc == nil {
		return logger
	}
	fields := []zap.Field{
		zap.String("username", rc.Username),
		zap.String("correlation_id", rc.CorrelationID),
	}
	if rc.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rc.TraceID))
	}
	return logger.With(fields...)
}

const redacted = "[REDACTED]"

// Keys autobrr uses for credentials across clients, indexers and notifiers.
var credentialKeys = []string{
	"password", "pass", "secret", "token", "apikey", "api_key",
	"webhook", "cookie", "authorization", "headers",
}

// RedactValues copies values with credentials masked at any depth. Keys are
// matched case-insensitively against the built-in credential keys plus
// extra, which may hold full dotted paths such as "settings.apikey".
func RedactValues(values map[string]any, extra ...string) map[string]any {
	if values == nil {
		return nil
	}
	keys := make(map[string]struct{}, len(credentialKeys)+len(extra))
	for _, k := range credentialKeys {
		keys[k] = struct{}{}
	}
	for _, k := range extra {
		keys[strings.ToLower(k)] = struct{}{}
	}
	return redactMap(values, keys)
}

func redactMap(in map[string]any, keys map[string]struct{}) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		_, secret := keys[strings.ToLower(k)]
		switch nested := v.(type) {
		case model.Values:
			if !secret {
				out[k] = redactMap(nested, keys)
				continue
			}
		case map[string]any:
			if !secret {
				out[k] = redactMap(nested, keys)
				continue
			}
		}
		if secret && v != nil && v != "" {
			out[k] = redacted
		} else {
			out[k] = v
		}
	}
	return out
}
