package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Tick time.Duration `env:"TANDEM_TEST_TICK" envDefault:"60s"`
	Path string        `env:"TANDEM_TEST_PATH" envDefault:"data/tandem.db"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Tick != 60*time.Second {
		t.Fatalf("expected default tick 60s, got %v", cfg.Tick)
	}
	if cfg.Path != "data/tandem.db" {
		t.Fatalf("expected default path, got %q", cfg.Path)
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("TANDEM_TEST_TICK", "5s")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Tick != 5*time.Second {
		t.Fatalf("expected tick 5s, got %v", cfg.Tick)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("TANDEM_TEST_TICK", "not-a-duration")

	var cfg envTestConfig
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
}
