package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Addr != ":8080" {
		t.Errorf("Expected default addr :8080, got %s", cfg.Addr)
	}
	if cfg.JWTIssuer != "parc-api" || cfg.JWTAudience != "parc-api" {
		t.Errorf("Expected default issuer/audience parc-api, got %s/%s", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("Expected default expiry 24h, got %v", cfg.JWTExpiry)
	}
	if cfg.SignatureDir != "var/signatures" {
		t.Errorf("Expected default signature dir var/signatures, got %s", cfg.SignatureDir)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("SIGNATURE_DIR", "/tmp/sigs")

	cfg := Load()

	if cfg.Addr != ":9090" {
		t.Errorf("Expected addr :9090, got %s", cfg.Addr)
	}
	if cfg.JWTExpiry != 30*time.Minute {
		t.Errorf("Expected expiry 30m, got %v", cfg.JWTExpiry)
	}
	if cfg.SignatureDir != "/tmp/sigs" {
		t.Errorf("Expected signature dir /tmp/sigs, got %s", cfg.SignatureDir)
	}
}

func TestLoadIgnoresInvalidExpiry(t *testing.T) {
	t.Setenv("JWT_EXPIRY", "not-a-duration")

	cfg := Load()
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("Expected fallback expiry 24h, got %v", cfg.JWTExpiry)
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	if _, err := LoadAndValidate(); err == nil {
		t.Error("Expected short secret to be rejected")
	}

	t.Setenv("JWT_SECRET", "a-secret-of-respectable-length")
	if _, err := LoadAndValidate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}
