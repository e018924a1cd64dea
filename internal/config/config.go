package config

import (
	"os"
	"strconv"
	"time"
)

// ProviderConfig holds credentials for one LLM completion endpoint.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Config struct {
	Port         string
	DeploySecret string

	// GitHub hosting provider
	GitHubAPIURL string
	GitHubToken  string
	GitHubOwner  string

	// LLM providers; fallback is optional (empty BaseURL disables it)
	PrimaryLLM  ProviderConfig
	FallbackLLM ProviderConfig

	DatabasePath string

	// Generation retry tuning
	GenAttempts    int
	GenBackoffBase time.Duration
	GenBackoffCap  time.Duration
	GenTimeout     time.Duration

	// Repository operation retry tuning
	RepoAttempts    int
	RepoBackoffBase time.Duration
	RepoBackoffCap  time.Duration
	RepoTimeout     time.Duration

	// Hosting activation polling
	HostingPollInterval time.Duration
	HostingPollBudget   time.Duration

	// Notification delivery
	NotifyAttempts    int
	NotifyBackoffBase time.Duration
	NotifyBackoffCap  time.Duration
	NotifyTimeout     time.Duration

	NewRelicLicense string
	NewRelicAppName string
	NewRelicEnabled bool
}

func Load() *Config {
	newRelicEnabledStr := getEnv("NEW_RELIC_ENABLED", "false")
	newRelicEnabled, err := strconv.ParseBool(newRelicEnabledStr)
	if err != nil {
		newRelicEnabled = false
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DeploySecret: getEnv("DEPLOY_SECRET", "change-this-secret-before-running-in-production"),

		GitHubAPIURL: getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitHubToken:  getEnv("GITHUB_TOKEN", ""),
		GitHubOwner:  getEnv("GITHUB_OWNER", ""),

		PrimaryLLM: ProviderConfig{
			BaseURL: getEnv("LLM_PRIMARY_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("LLM_PRIMARY_KEY", ""),
			Model:   getEnv("LLM_PRIMARY_MODEL", "gpt-4o-mini"),
		},
		FallbackLLM: ProviderConfig{
			BaseURL: getEnv("LLM_FALLBACK_URL", ""),
			APIKey:  getEnv("LLM_FALLBACK_KEY", ""),
			Model:   getEnv("LLM_FALLBACK_MODEL", ""),
		},

		DatabasePath: getEnv("DATABASE_PATH", "./pagesmith.db"),

		GenAttempts:    getEnvInt("GEN_ATTEMPTS", 3),
		GenBackoffBase: getEnvDuration("GEN_BACKOFF_BASE", 2*time.Second),
		GenBackoffCap:  getEnvDuration("GEN_BACKOFF_CAP", 30*time.Second),
		GenTimeout:     getEnvDuration("GEN_TIMEOUT", 120*time.Second),

		RepoAttempts:    getEnvInt("REPO_ATTEMPTS", 3),
		RepoBackoffBase: getEnvDuration("REPO_BACKOFF_BASE", time.Second),
		RepoBackoffCap:  getEnvDuration("REPO_BACKOFF_CAP", 10*time.Second),
		RepoTimeout:     getEnvDuration("REPO_TIMEOUT", 30*time.Second),

		HostingPollInterval: getEnvDuration("HOSTING_POLL_INTERVAL", 10*time.Second),
		HostingPollBudget:   getEnvDuration("HOSTING_POLL_BUDGET", 120*time.Second),

		NotifyAttempts:    getEnvInt("NOTIFY_ATTEMPTS", 5),
		NotifyBackoffBase: getEnvDuration("NOTIFY_BACKOFF_BASE", time.Second),
		NotifyBackoffCap:  getEnvDuration("NOTIFY_BACKOFF_CAP", 16*time.Second),
		NotifyTimeout:     getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		NewRelicLicense: getEnv("NEW_RELIC_LICENSE_KEY", ""),
		NewRelicAppName: getEnv("NEW_RELIC_APP_NAME", "pagesmith-deployment"),
		NewRelicEnabled: newRelicEnabled,
	}
}

// HasFallback reports whether a secondary LLM provider is configured.
func (c *Config) HasFallback() bool {
	return c.FallbackLLM.BaseURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
