package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MODE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := FromEnv()
	if cfg.Mode != ModeOffline {
		t.Fatalf("mode: got %q", cfg.Mode)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("addr: got %q", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("driver: got %q", cfg.DBDriver)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Fatalf("cache ttl: got %v", cfg.CacheTTL)
	}
	if cfg.LogMode != "dev" {
		t.Fatalf("log mode: got %q", cfg.LogMode)
	}
	if !cfg.EnableLocalAuth {
		t.Fatal("local auth should default on")
	}
}

func TestFromEnvOnline(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("LOG_MODE", "")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("ENABLE_LOCAL_AUTH", "no")

	cfg := FromEnv()
	if cfg.LogMode != "prod" {
		t.Fatalf("log mode: got %q", cfg.LogMode)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORSOrigins(), want) {
		t.Fatalf("cors: got %v", cfg.CORSOrigins())
	}
	if cfg.TokenTTL != 90*time.Minute {
		t.Fatalf("token ttl: got %v", cfg.TokenTTL)
	}
	if cfg.EnableLocalAuth {
		t.Fatal("local auth should be off")
	}
}

func TestEnvDurationRejectsGarbage(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	if got := envDuration("SHUTDOWN_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("got %v", got)
	}
	t.Setenv("SHUTDOWN_TIMEOUT", "-5s")
	if got := envDuration("SHUTDOWN_TIMEOUT", time.Second); got != time.Second {
		t.Fatalf("negative: got %v", got)
	}
}
