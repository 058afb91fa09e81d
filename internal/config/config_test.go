package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg := FromEnv()
	if cfg.JWTSecret != developmentSecret {
		t.Errorf("expected development secret, got %q", cfg.JWTSecret)
	}
	if cfg.JWTExpiration != 7*24*time.Hour {
		t.Errorf("JWTExpiration = %v", cfg.JWTExpiration)
	}
	if cfg.StoreDriver != "sqlite" || cfg.LLMProvider != "gemini" {
		t.Errorf("unexpected drivers %q/%q", cfg.StoreDriver, cfg.LLMProvider)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if err := FromEnv().Validate(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET")
	}
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("STORE_DRIVER", "postgres")
	if err := FromEnv().Validate(); err == nil {
		t.Error("expected error for unknown store driver")
	}

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LLM_PROVIDER", "palm")
	if err := FromEnv().Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRATION", "2h")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := FromEnv()
	if cfg.JWTExpiration != 2*time.Hour {
		t.Errorf("JWTExpiration = %v", cfg.JWTExpiration)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Errorf("LLMTimeout = %v", cfg.LLMTimeout)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
}

func TestValidateWriteTimeoutCoversExchange(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LLM_TIMEOUT", "60s")

	t.Setenv("SERVER_WRITE_TIMEOUT", "120s")
	if err := FromEnv().Validate(); err == nil {
		t.Error("expected error when write timeout cannot cover reply and title calls")
	}

	t.Setenv("SERVER_WRITE_TIMEOUT", "121s")
	if err := FromEnv().Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	t.Setenv("SERVER_WRITE_TIMEOUT", "")
	if err := FromEnv().Validate(); err != nil {
		t.Errorf("default write timeout rejected: %v", err)
	}
}
