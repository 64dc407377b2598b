package config_test

import (
	"testing"
	"time"

	"github.com/noah-isme/salon-pos/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/salon",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("addr = %q", cfg.HTTPAddr())
	}
	if cfg.CurrencyCode != "PHP" {
		t.Fatalf("currency = %q, want PHP", cfg.CurrencyCode)
	}
	if cfg.LoyaltyPointValue != 100 {
		t.Fatalf("point value = %d, want 100", cfg.LoyaltyPointValue)
	}
	if cfg.LoyaltyEarnBps != 100 {
		t.Fatalf("earn bps = %d, want 100", cfg.LoyaltyEarnBps)
	}
	if cfg.AccessTokenTTL != 12*time.Hour {
		t.Fatalf("access ttl = %v", cfg.AccessTokenTTL)
	}
}

func TestLoadMissingDatabase(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	if _, err := config.LoadForTests(env); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadMissingSecret(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	if _, err := config.LoadForTests(env); err == nil {
		t.Fatal("expected error for missing JWT_SECRET")
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["LOYALTY_POINT_VALUE"] = "50"
	env["CATALOG_CACHE_TTL"] = "30s"
	env["CORS_ALLOWED_ORIGINS"] = "https://pos.example.com, https://admin.example.com"
	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LoyaltyPointValue != 50 {
		t.Fatalf("point value = %d, want 50", cfg.LoyaltyPointValue)
	}
	if cfg.CatalogCacheTTL != 30*time.Second {
		t.Fatalf("catalog ttl = %v", cfg.CatalogCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	env := baseEnv()
	env["ACCESS_TOKEN_TTL"] = "not-a-duration"
	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTokenTTL != 12*time.Hour {
		t.Fatalf("access ttl = %v, want fallback 12h", cfg.AccessTokenTTL)
	}
}
