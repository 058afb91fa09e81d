package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFor(t *testing.T) {
	for _, dev := range []bool{true, false} {
		l, err := NewFor("debug", dev)
		if err != nil {
			t.Fatalf("NewFor(development=%v): %v", dev, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("NewFor(development=%v) ignored the debug level", dev)
		}
	}
	l, err := NewFor("warn", false)
	if err != nil {
		t.Fatalf("NewFor: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("warn logger should drop info entries")
	}
}

func TestWithConversationFields(t *testing.T) {
	l, logs := observed()
	l.WithConversation("user-1", "conv-1").Info("exchange completed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields[KeyUserID] != "user-1" || fields[KeyConversationID] != "conv-1" {
		t.Errorf("unexpected fields %v", fields)
	}
}

func TestWithExchangeAddsModel(t *testing.T) {
	l, logs := observed()
	l.WithExchange("user-1", "conv-1", "gemini-2.0-flash").Info("a")
	l.WithExchange("user-1", "conv-1", "").Info("b")

	entries := logs.All()
	if got := entries[0].ContextMap()[KeyModel]; got != "gemini-2.0-flash" {
		t.Errorf("model field = %v", got)
	}
	if _, ok := entries[1].ContextMap()[KeyModel]; ok {
		t.Error("empty model should not be logged")
	}
}

func TestWithRequestOmitsAnonymousUser(t *testing.T) {
	l, logs := observed()
	l.WithRequest("corr-1", "").Info("anon")
	l.WithRequest("corr-2", "user-2").Info("authed")

	entries := logs.All()
	if _, ok := entries[0].ContextMap()[KeyUserID]; ok {
		t.Error("anonymous request should not carry user_id")
	}
	if entries[1].ContextMap()[KeyCorrelationID] != "corr-2" || entries[1].ContextMap()[KeyUserID] != "user-2" {
		t.Errorf("unexpected fields %v", entries[1].ContextMap())
	}
}
