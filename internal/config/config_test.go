package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tolerance != 0.10 {
		t.Errorf("expected default tolerance 0.10, got %v", cfg.Tolerance)
	}
	if cfg.DrainBatchSize != 50 {
		t.Errorf("expected default batch size 50, got %d", cfg.DrainBatchSize)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TOLERANCE", "0.25")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("DRAIN_BATCH_SIZE", "7")
	t.Setenv("MAX_ATTEMPTS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tolerance != 0.25 {
		t.Errorf("tolerance = %v", cfg.Tolerance)
	}
	if cfg.RemoteTimeout != 3*time.Second {
		t.Errorf("remote timeout = %s", cfg.RemoteTimeout)
	}
	if cfg.DrainBatchSize != 7 {
		t.Errorf("batch size = %d", cfg.DrainBatchSize)
	}
	if cfg.MaxAttempts != 10 {
		t.Errorf("malformed MAX_ATTEMPTS should fall back to 10, got %d", cfg.MaxAttempts)
	}
}
