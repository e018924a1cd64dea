package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.GitHubAPIURL != "https://api.github.com" {
		t.Errorf("GitHubAPIURL = %q", cfg.GitHubAPIURL)
	}
	if cfg.NotifyAttempts != 5 {
		t.Errorf("NotifyAttempts = %d, want 5", cfg.NotifyAttempts)
	}
	if cfg.NotifyBackoffBase != time.Second {
		t.Errorf("NotifyBackoffBase = %v, want 1s", cfg.NotifyBackoffBase)
	}
	if cfg.NotifyBackoffCap != 16*time.Second {
		t.Errorf("NotifyBackoffCap = %v, want 16s", cfg.NotifyBackoffCap)
	}
	if cfg.HostingPollInterval != 10*time.Second {
		t.Errorf("HostingPollInterval = %v", cfg.HostingPollInterval)
	}
	if cfg.HostingPollBudget != 120*time.Second {
		t.Errorf("HostingPollBudget = %v", cfg.HostingPollBudget)
	}
	if cfg.NewRelicEnabled {
		t.Error("NewRelicEnabled should default to false")
	}
	if cfg.HasFallback() {
		t.Error("no fallback provider should be configured by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Clearenv()
	t.Setenv("PORT", "9999")
	t.Setenv("DEPLOY_SECRET", "s3cret")
	t.Setenv("GITHUB_OWNER", "octo")
	t.Setenv("LLM_FALLBACK_URL", "https://fallback.example.com/v1")
	t.Setenv("GEN_ATTEMPTS", "7")
	t.Setenv("HOSTING_POLL_INTERVAL", "2s")
	t.Setenv("NEW_RELIC_ENABLED", "true")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DeploySecret != "s3cret" {
		t.Errorf("DeploySecret = %q", cfg.DeploySecret)
	}
	if cfg.GitHubOwner != "octo" {
		t.Errorf("GitHubOwner = %q", cfg.GitHubOwner)
	}
	if !cfg.HasFallback() {
		t.Error("fallback provider should be configured")
	}
	if cfg.GenAttempts != 7 {
		t.Errorf("GenAttempts = %d", cfg.GenAttempts)
	}
	if cfg.HostingPollInterval != 2*time.Second {
		t.Errorf("HostingPollInterval = %v", cfg.HostingPollInterval)
	}
	if !cfg.NewRelicEnabled {
		t.Error("NewRelicEnabled should be true")
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	os.Clearenv()
	t.Setenv("GEN_ATTEMPTS", "not-a-number")
	t.Setenv("HOSTING_POLL_BUDGET", "-5s")
	t.Setenv("NEW_RELIC_ENABLED", "maybe")

	cfg := Load()

	if cfg.GenAttempts != 3 {
		t.Errorf("GenAttempts = %d, want default 3", cfg.GenAttempts)
	}
	if cfg.HostingPollBudget != 120*time.Second {
		t.Errorf("HostingPollBudget = %v, want default", cfg.HostingPollBudget)
	}
	if cfg.NewRelicEnabled {
		t.Error("invalid NEW_RELIC_ENABLED should fall back to false")
	}
}
