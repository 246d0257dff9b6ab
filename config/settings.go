// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig
	TryOn   TryOnConfig
	Queue   QueueConfig
	Player  PlayerConfig
	Catalog CatalogConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// TryOnConfig holds try-on rendering provider configuration.
type TryOnConfig struct {
	// Concurrency caps in-flight render calls across the whole process;
	// the AI player and the job queue share this budget.
	Concurrency  int
	PollInterval time.Duration
	PollTimeout  time.Duration
	MaxAttempts  int
	BaseURL      string
	APIKey       string
}

// QueueConfig holds the player-facing job queue configuration.
type QueueConfig struct {
	// Concurrency is the client-side cap on jobs processed at once.
	Concurrency  int
	IdleInterval time.Duration
	RestartDelay time.Duration
	DatabasePath string
}

// PlayerConfig holds AI-player run configuration.
type PlayerConfig struct {
	// RunDuration is advisory context for planning, not a hard deadline.
	RunDuration time.Duration
	// RemoteSearchBudget is the hard per-run cap on remote catalog searches.
	RemoteSearchBudget int
	// RemotePickBudget is the hard per-run cap on remote-sourced garments.
	RemotePickBudget int
	InventoryDir     string
}

// CatalogConfig holds the remote product search configuration.
type CatalogConfig struct {
	RemoteBaseURL string
	RemoteAPIKey  string
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-5.2", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-opus-4-5-20251101", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-v3.2", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-3-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified LLM provider, loading values
// from environment variables. Returns an error if the provider is
// unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 2048)
	if err != nil {
		return Settings{}, err
	}
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	tryOnConcurrency, err := getEnvInt("TRYON_CONCURRENCY", 6)
	if err != nil {
		return Settings{}, err
	}
	pollInterval, err := getEnvDuration("TRYON_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return Settings{}, err
	}
	pollTimeout, err := getEnvDuration("TRYON_POLL_TIMEOUT", 90*time.Second)
	if err != nil {
		return Settings{}, err
	}
	tryOnAttempts, err := getEnvInt("TRYON_MAX_ATTEMPTS", 3)
	if err != nil {
		return Settings{}, err
	}

	queueConcurrency, err := getEnvInt("QUEUE_CONCURRENCY", 3)
	if err != nil {
		return Settings{}, err
	}
	idleInterval, err := getEnvDuration("QUEUE_IDLE_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Settings{}, err
	}
	restartDelay, err := getEnvDuration("QUEUE_RESTART_DELAY", time.Second)
	if err != nil {
		return Settings{}, err
	}

	runDuration, err := getEnvDuration("PLAYER_RUN_DURATION", 3*time.Minute)
	if err != nil {
		return Settings{}, err
	}
	searchBudget, err := getEnvInt("PLAYER_REMOTE_SEARCH_BUDGET", 2)
	if err != nil {
		return Settings{}, err
	}
	pickBudget, err := getEnvInt("PLAYER_REMOTE_PICK_BUDGET", 2)
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		TryOn: TryOnConfig{
			Concurrency:  tryOnConcurrency,
			PollInterval: pollInterval,
			PollTimeout:  pollTimeout,
			MaxAttempts:  tryOnAttempts,
			BaseURL:      os.Getenv("TRYON_BASE_URL"),
			APIKey:       os.Getenv("TRYON_API_KEY"),
		},
		Queue: QueueConfig{
			Concurrency:  queueConcurrency,
			IdleInterval: idleInterval,
			RestartDelay: restartDelay,
			DatabasePath: getEnvString("QUEUE_DB_PATH", "stylerush.db"),
		},
		Player: PlayerConfig{
			RunDuration:        runDuration,
			RemoteSearchBudget: searchBudget,
			RemotePickBudget:   pickBudget,
			InventoryDir:       getEnvString("PLAYER_INVENTORY_DIR", "closet"),
		},
		Catalog: CatalogConfig{
			RemoteBaseURL: os.Getenv("CATALOG_REMOTE_BASE_URL"),
			RemoteAPIKey:  os.Getenv("CATALOG_REMOTE_API_KEY"),
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
