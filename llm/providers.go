package llm

import (
	"sort"
	"strings"
)

// DefaultProviderName is used when a Config does not name a provider.
const DefaultProviderName = "openai"

// ProviderSpec describes one known provider: where its credential comes from,
// which endpoint to talk to, and which model to use when the caller does not
// pick one. An empty BaseURL means the client library's default endpoint.
type ProviderSpec struct {
	Name         string
	APIKeyEnv    string
	BaseURL      string
	DefaultModel string
}

// providers is the static table of known providers. Everything except
// anthropic and ollama speaks the OpenAI chat completions protocol and shares
// the OpenAI client with a per-provider base URL.
var providers = map[string]ProviderSpec{
	"openai": {
		Name:         "openai",
		APIKeyEnv:    "OPENAI_API_KEY",
		DefaultModel: "gpt-5-chat-latest",
	},
	"groq": {
		Name:         "groq",
		APIKeyEnv:    "GROQ_API_KEY",
		BaseURL:      "https://api.groq.com/openai/v1",
		DefaultModel: "llama-3.3-70b-versatile",
	},
	"google": {
		Name:         "google",
		APIKeyEnv:    "GEMINI_API_KEY",
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
		DefaultModel: "gemini-2.5-flash-lite",
	},
	"perplexity": {
		Name:         "perplexity",
		APIKeyEnv:    "PERPLEXITY_API_KEY",
		BaseURL:      "https://api.perplexity.ai",
		DefaultModel: "sonar",
	},
	"anthropic": {
		Name:         "anthropic",
		APIKeyEnv:    "ANTHROPIC_API_KEY",
		DefaultModel: "claude-4-sonnet-latest",
	},
	"xai": {
		Name:         "xai",
		APIKeyEnv:    "XAI_API_KEY",
		BaseURL:      "https://api.x.ai/v1",
		DefaultModel: "grok-3-mini",
	},
	"deepseek": {
		Name:         "deepseek",
		APIKeyEnv:    "DEEPSEEK_API_KEY",
		BaseURL:      "https://api.deepseek.com",
		DefaultModel: "deepseek-chat",
	},
	"mistral": {
		Name:         "mistral",
		APIKeyEnv:    "MISTRAL_API_KEY",
		BaseURL:      "https://api.mistral.ai/v1",
		DefaultModel: "mistral-medium",
	},
	"cohere": {
		Name:         "cohere",
		APIKeyEnv:    "COHERE_API_KEY",
		BaseURL:      "https://api.cohere.ai/compatibility/v1",
		DefaultModel: "command-r",
	},
	"ollama": {
		Name:         "ollama",
		DefaultModel: "llama3.2",
	},
}

// LookupProvider returns the table entry for a provider name. Unknown names
// return a configuration error listing the valid names.
func LookupProvider(name string) (ProviderSpec, error) {
	spec, ok := providers[name]
	if !ok {
		return ProviderSpec{}, NewConfigurationError(
			"unknown provider %q, valid providers are: %s",
			name, strings.Join(ProviderNames(), ", "),
		)
	}
	return spec, nil
}

// ProviderNames returns the known provider names in sorted order.
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
