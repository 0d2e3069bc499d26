package llm

import (
	"os"
	"time"
)

// ResponseFormat selects how the provider should shape its output.
type ResponseFormat string

const (
	// ResponseFormatText requests free-form text (the provider default).
	ResponseFormatText ResponseFormat = "text"
	// ResponseFormatJSONObject requests a single JSON object. Responses in
	// this mode are parsed into Message.Data by callers that asked for it.
	ResponseFormatJSONObject ResponseFormat = "json_object"
	// ResponseFormatJSONSchema requests JSON conforming to a schema supplied
	// through Config.Extra ("json_schema_name", "json_schema").
	ResponseFormatJSONSchema ResponseFormat = "json_schema"
)

// Defaults applied by New when the corresponding Config field is unset.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxRetries     = 2
	DefaultMaxConcurrency = 100
)

// DefaultTemperature is applied when Config.Temperature is nil.
const DefaultTemperature float32 = 1.0

// Config describes one transport: which provider to talk to, with which
// credential, endpoint and model, and the sampling and retry parameters to
// apply. Blank fields are filled from the provider table; values set here
// always win over table defaults.
type Config struct {
	// Provider is a key of the provider table. Empty means
	// DefaultProviderName.
	Provider string
	// APIKey overrides the credential from the provider's environment
	// variable.
	APIKey string
	// BaseURL overrides the provider's endpoint.
	BaseURL string
	// Model overrides the provider's default model.
	Model string
	// Timeout bounds each individual attempt. Zero or negative means
	// DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt. Zero means
	// DefaultMaxRetries; negative disables retries.
	MaxRetries int
	// MaxConcurrency bounds the number of in-flight requests during Batch.
	// Zero or negative means DefaultMaxConcurrency.
	MaxConcurrency int
	// ResponseFormat selects the output shape. Empty means ResponseFormatText.
	ResponseFormat ResponseFormat
	// Temperature is the sampling temperature. Nil means DefaultTemperature;
	// point at zero to request deterministic sampling.
	Temperature *float32
	// MaxCompletionTokens caps the response length. Zero means the provider
	// default.
	MaxCompletionTokens int
	// ReasoningEffort is the reasoning effort hint for models that support
	// one ("low", "medium", "high"). Empty means unset.
	ReasoningEffort string
	// Extra carries provider-specific knobs that have no first-class field.
	// Recognized keys are documented on the response format constants.
	Extra map[string]any
}

// withDefaults resolves the provider name and fills every unset field from
// the provider table and the package defaults. Explicit values are never
// overwritten.
func (c Config) withDefaults() (Config, error) {
	if c.Provider == "" {
		c.Provider = DefaultProviderName
	}
	spec, err := LookupProvider(c.Provider)
	if err != nil {
		return Config{}, err
	}
	if c.APIKey == "" && spec.APIKeyEnv != "" {
		c.APIKey = os.Getenv(spec.APIKeyEnv)
	}
	if c.BaseURL == "" {
		c.BaseURL = spec.BaseURL
	}
	if c.Model == "" {
		c.Model = spec.DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.ResponseFormat == "" {
		c.ResponseFormat = ResponseFormatText
	}
	if c.Temperature == nil {
		temp := DefaultTemperature
		c.Temperature = &temp
	}
	return c, nil
}
