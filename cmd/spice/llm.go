package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/dedup"
	"github.com/Veraticus/spice-reconcile/internal/llm"
)

// Verifier modes accepted by --verifier.
const (
	verifierLLM  = "llm"
	verifierMock = "mock"
	verifierNone = "none"
)

// apiKeyEnv names the conventional environment variable per provider.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

func setLLMDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.cache_ttl", 24*time.Hour)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.timeout", 60*time.Second)
}

// llmConfig builds the provider configuration from viper. The API key is read
// from llm.<provider>_api_key, falling back to the provider's usual variable.
func llmConfig(v *viper.Viper) (llm.Config, error) {
	provider := v.GetString("llm.provider")

	cfg := llm.Config{
		Provider:       provider,
		Model:          v.GetString("llm.model"),
		BaseURL:        v.GetString("llm.base_url"),
		ClaudeCodePath: v.GetString("llm.claude_code_path"),
		Temperature:    v.GetFloat64("llm.temperature"),
		MaxTokens:      v.GetInt("llm.max_tokens"),
		MaxRetries:     v.GetInt("llm.max_retries"),
		RetryDelay:     v.GetDuration("llm.retry_delay"),
		CacheTTL:       v.GetDuration("llm.cache_ttl"),
		Timeout:        v.GetDuration("llm.timeout"),
		RateLimit:      v.GetInt("llm.rate_limit"),
	}

	envName, needsKey := apiKeyEnv[provider]
	if !needsKey {
		return cfg, nil
	}

	cfg.APIKey = v.GetString("llm." + provider + "_api_key")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(envName)
	}
	if cfg.APIKey == "" {
		return llm.Config{}, fmt.Errorf("%w: %s API key not found in config or %s environment variable",
			common.ErrMissingConfig, provider, envName)
	}
	return cfg, nil
}

// createVerifier returns the tier-2 verifier for mode. A nil verifier keeps
// every uncertain pair unique.
func createVerifier(mode string) (dedup.Verifier, error) {
	switch mode {
	case verifierNone:
		return nil, nil
	case verifierMock:
		return dedup.NewMockVerifier(viper.GetStringMapString("dedup.mock_aliases")), nil
	case verifierLLM, "":
		cfg, err := llmConfig(viper.GetViper())
		if err != nil {
			return nil, common.NewUserError("LLM verifier is not configured (use --verifier=none to skip it)", err)
		}
		verifier, err := llm.NewVerifierFromConfig(cfg, slog.Default().With("component", "llm"))
		if err != nil {
			return nil, err
		}
		return verifier, nil
	default:
		return nil, fmt.Errorf("%w: unknown verifier %q (want llm, mock or none)", common.ErrInvalidConfig, mode)
	}
}
