package llm

import (
	"testing"
)

func TestParseProviderType(t *testing.T) {
	cases := []struct {
		input string
		want  ProviderType
	}{
		{"openai", ProviderOpenAI},
		{"gpt", ProviderOpenAI},
		{"Anthropic", ProviderAnthropic},
		{"claude", ProviderAnthropic},
		{"deepseek", ProviderDeepSeek},
		{"GEMINI", ProviderGemini},
		{"google", ProviderGemini},
	}
	for _, tc := range cases {
		got, err := ParseProviderType(tc.input)
		if err != nil {
			t.Errorf("ParseProviderType(%q) error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseProviderTypeUnknown(t *testing.T) {
	if _, err := ParseProviderType("llama"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuilderDefaults(t *testing.T) {
	provider, err := ProviderOpenAI.APIKey("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected openai, got %s", provider.Name())
	}
	if provider.Model() != ModelOpenAIGPT52 {
		t.Errorf("expected default model, got %s", provider.Model())
	}
}

func TestBuilderCustomModel(t *testing.T) {
	provider, err := ProviderAnthropic.Model(ModelAnthropicClaudeHaiku4).APIKey("sk-ant-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Model() != ModelAnthropicClaudeHaiku4 {
		t.Errorf("expected haiku model, got %s", provider.Model())
	}
}

func TestFromEnvMissingKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	if _, err := ProviderDeepSeek.FromEnv(); err == nil {
		t.Error("expected error when API key env var is unset")
	}
}
