// Package logger wraps zap with the field helpers the chat service logs by.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component so log queries can join on them.
const (
	KeyCorrelationID  = "correlation_id"
	KeyUserID         = "user_id"
	KeyConversationID = "conversation_id"
	KeyModel          = "model"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// NewFor picks the console encoder in development and JSON elsewhere.
func NewFor(level string, development bool) (*Logger, error) {
	if development {
		return NewDevelopment(level)
	}
	return New(level)
}

// New creates a JSON logger writing to stdout.
func New(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	cfg.OutputPaths = []string{"stdout"}
	return build(cfg)
}

// NewDevelopment creates a colored console logger.
func NewDevelopment(level string) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return build(cfg)
}

func build(cfg zap.Config) (*Logger, error) {
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: z}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// WithRequest scopes a logger to one HTTP request. userID may be empty
// on unauthenticated routes and is omitted then.
func (l *Logger) WithRequest(correlationID, userID string) *Logger {
	fields := []zap.Field{zap.String(KeyCorrelationID, correlationID)}
	if userID != "" {
		fields = append(fields, zap.String(KeyUserID, userID))
	}
	return l.With(fields...)
}

// WithConversation scopes a logger to a user's conversation.
func (l *Logger) WithConversation(userID, conversationID string) *Logger {
	return l.With(
		zap.String(KeyUserID, userID),
		zap.String(KeyConversationID, conversationID),
	)
}

// WithExchange adds the target model to a conversation-scoped logger.
func (l *Logger) WithExchange(userID, conversationID, model string) *Logger {
	log := l.WithConversation(userID, conversationID)
	if model != "" {
		log = log.With(zap.String(KeyModel, model))
	}
	return log
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
