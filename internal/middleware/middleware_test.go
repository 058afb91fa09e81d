package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/capitalize-ai/alpine-chat/internal/auth"
	"github.com/capitalize-ai/alpine-chat/internal/model"
	"github.com/capitalize-ai/alpine-chat/pkg/logger"
)

type stubVerifier struct {
	user *model.User
	err  error
}

func (s stubVerifier) Verify(_ context.Context, token string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != "good" {
		return nil, auth.ErrUnauthenticated
	}
	return s.user, nil
}

func TestAuth(t *testing.T) {
	user := &model.User{ID: "u1", Email: "alice@example.com"}
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
	})

	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		status   int
		code     string
	}{
		{"missing header", "", stubVerifier{user: user}, http.StatusUnauthorized, "unauthenticated"},
		{"wrong scheme", "Basic good", stubVerifier{user: user}, http.StatusUnauthorized, "unauthenticated"},
		{"bad token", "Bearer bad", stubVerifier{user: user}, http.StatusUnauthorized, "unauthenticated"},
		{"store failure", "Bearer good", stubVerifier{err: errors.New("db down")}, http.StatusInternalServerError, "internal_error"},
		{"ok", "bearer good", stubVerifier{user: user}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Auth(tt.verifier, logger.NewNop())(next).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.code != "" {
				var body model.ErrorResponse
				json.NewDecoder(rec.Body).Decode(&body)
				if body.Code != tt.code {
					t.Errorf("expected code %q, got %q", tt.code, body.Code)
				}
				return
			}
			if seen != "u1" {
				t.Errorf("user not in context, got %q", seen)
			}
		})
	}
}

func TestLoggingSetsCorrelationID(t *testing.T) {
	var got string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "abc-123" || rec.Header().Get("X-Correlation-ID") != "abc-123" {
		t.Errorf("correlation id not propagated: ctx=%q header=%q", got, rec.Header().Get("X-Correlation-ID"))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status not passed through: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("correlation id not generated")
	}
}

func TestUserRateLimit(t *testing.T) {
	h := UserRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUser(req.Context(), &model.User{ID: userID}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("u1") != http.StatusOK || send("u1") != http.StatusOK {
		t.Fatal("requests within the limit were rejected")
	}
	if code := send("u1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
	if code := send("u2"); code != http.StatusOK {
		t.Errorf("other user limited: %d", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff header missing")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ok   bool
	}{
		{"email ok", ValidateEmail("alice@example.com"), true},
		{"email display name", ValidateEmail("Alice <alice@example.com>"), false},
		{"email missing", ValidateEmail(""), false},
		{"email malformed", ValidateEmail("alice"), false},
		{"password ok", ValidatePassword("pw123"), true},
		{"password empty", ValidatePassword(""), false},
		{"password too long", ValidatePassword(strings.Repeat("x", 73)), false},
		{"name ok", ValidateFullName("Alice"), true},
		{"name blank", ValidateFullName("   "), false},
		{"content ok", ValidateMessageContent("hi", false), true},
		{"content blank", ValidateMessageContent(" \n", false), false},
		{"content blank with file", ValidateMessageContent("", true), true},
		{"content too long with file", ValidateMessageContent(strings.Repeat("x", 100001), true), false},
		{"content invalid utf8", ValidateMessageContent("\xff", false), false},
		{"conversation id ok", ValidateConversationID("0190d7a4-5c1e-7b3a-9f00-1234567890ab"), true},
		{"conversation id bad", ValidateConversationID("nope"), false},
		{"title long", ValidateTitle(strings.Repeat("t", 257)), false},
	}
	for _, tt := range tests {
		if (tt.err == nil) != tt.ok {
			t.Errorf("%s: got %v", tt.name, tt.err)
		}
		var verr *ValidationError
		if tt.err != nil && !errors.As(tt.err, &verr) {
			t.Errorf("%s: expected *ValidationError, got %T", tt.name, tt.err)
		}
	}
}
