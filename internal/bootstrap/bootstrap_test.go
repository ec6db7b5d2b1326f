package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/config"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ai/canned"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.MaxAttempts = 3
	cfg.LLM.TimeoutSeconds = 10
	return cfg
}

func TestGenerateBudgetCoversRetries(t *testing.T) {
	cfg := testConfig()
	gen := NewGenerator(cfg, zap.NewNop(), false)

	got := GenerateBudget(gen, cfg)
	if got < 3*cfg.CallTimeout() {
		t.Fatalf("expected room for every attempt, got %v", got)
	}
}

func TestGenerateBudgetWithoutRetries(t *testing.T) {
	cfg := testConfig()
	if got := GenerateBudget(canned.Offline(), cfg); got != 10*time.Second {
		t.Fatalf("expected the plain call timeout, got %v", got)
	}
	cfg.LLM.APIKey = ""
	if gen := NewGenerator(cfg, zap.NewNop(), false); gen != nil {
		t.Fatalf("expected no generator without a key, got %T", gen)
	}
}
