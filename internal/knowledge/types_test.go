package knowledge

import (
	"testing"
	"time"
)

func TestBuildSearchConfig_Defaults(t *testing.T) {
	cfg := buildSearchConfig(nil)

	if cfg.topK != 5 {
		t.Errorf("topK = %d, want 5", cfg.topK)
	}
	if cfg.threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", cfg.threshold)
	}
	if cfg.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.timeout)
	}
}

func TestBuildSearchConfig_Overrides(t *testing.T) {
	cfg := buildSearchConfig([]SearchOption{
		WithTopK(3),
		WithThreshold(0.8),
		WithTimeout(time.Second),
	})

	if cfg.topK != 3 || cfg.threshold != 0.8 || cfg.timeout != time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestBuildSearchConfig_IgnoresInvalid(t *testing.T) {
	cfg := buildSearchConfig([]SearchOption{
		WithTopK(0),
		WithTimeout(0),
	})

	if cfg.topK != 5 || cfg.timeout != 10*time.Second {
		t.Errorf("invalid values must fall back to defaults, got %+v", cfg)
	}
}
