package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	Addr         string
	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	JWTExpiry    time.Duration
	SignatureDir string
}

func Load() *Config {
	config := &Config{
		Addr:         getEnv("ADDR", ":8080"),
		JWTSecret:    getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTIssuer:    getEnv("JWT_ISS", "parc-api"),
		JWTAudience:  getEnv("JWT_AUD", "parc-api"),
		JWTExpiry:    24 * time.Hour, // Default to 24 hours
		SignatureDir: getEnv("SIGNATURE_DIR", "var/signatures"),
	}

	// Parse JWT expiry from environment if provided
	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}

	return config
}

// LoadAndValidate loads the configuration and rejects unusable values
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if len(cfg.JWTSecret) < 16 {
		return nil, errors.New("JWT_SECRET must be at least 16 characters")
	}
	if cfg.JWTExpiry <= 0 {
		return nil, errors.New("JWT_EXPIRY must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
