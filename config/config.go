// Package config loads the YAML configuration for the agentine CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/vincentdeneuf/agentine/llm"
	"gopkg.in/yaml.v3"
)

// ChatConfig holds the interactive chat defaults.
type ChatConfig struct {
	Provider     string `yaml:"provider,omitempty"`      // provider table name
	Model        string `yaml:"model,omitempty"`         // model override
	Stream       bool   `yaml:"stream,omitempty"`        // stream replies by default
	ShowStats    bool   `yaml:"show_stats,omitempty"`    // print token stats after each reply
	HistoryDB    string `yaml:"history_db,omitempty"`    // SQLite transcript path, empty disables persistence
	SystemPrompt string `yaml:"system_prompt,omitempty"` // instruction for the default assistant
}

// ProviderConfig overrides entries of the built-in provider table.
type ProviderConfig struct {
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // read the key from this variable instead
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
}

// AgentConfig configures one chat agent.
type AgentConfig struct {
	Instruction    string `yaml:"instruction,omitempty"`
	Provider       string `yaml:"provider,omitempty"`
	Model          string `yaml:"model,omitempty"`
	ResponseFormat string `yaml:"response_format,omitempty"` // text, json_object, json_schema
	Default        bool   `yaml:"default,omitempty"`         // used when no agent is named
}

// LegionConfig names the speaker and selector agents for routed chat.
// Set both or neither.
type LegionConfig struct {
	Speaker  string `yaml:"speaker,omitempty"`
	Selector string `yaml:"selector,omitempty"`
}

// Config is the root of the configuration file.
type Config struct {
	Chat      ChatConfig                `yaml:"chat,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Agents    map[string]AgentConfig    `yaml:"agents,omitempty"`
	Legion    LegionConfig              `yaml:"legion,omitempty"`
}

// DefaultPath returns the default config file path, ~/.agentine/config.yaml.
// Can be overridden via the AGENTINE_CONFIG environment variable.
func DefaultPath() string {
	if envPath := os.Getenv("AGENTINE_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.agentine/config.yaml"
	}
	return filepath.Join(homeDir, ".agentine", "config.yaml")
}

// Load reads the config file at path and merges it over the defaults. A
// missing file is not an error; the defaults alone run a plain chat against
// the default provider.
func Load(path string) (*Config, error) {
	defaults := Config{
		Chat: ChatConfig{
			Provider:     llm.DefaultProviderName,
			Stream:       true,
			SystemPrompt: "You are a helpful assistant.",
		},
		Providers: make(map[string]ProviderConfig),
		Agents:    make(map[string]AgentConfig),
	}

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err != nil {
		return &defaults, nil
	}

	raw, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
	}

	if err := mergo.Merge(&defaults, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	if err := defaults.validate(); err != nil {
		return nil, err
	}
	return &defaults, nil
}

// validate rejects configurations that cannot be wired into agents.
func (c *Config) validate() error {
	if (c.Legion.Speaker == "") != (c.Legion.Selector == "") {
		return llm.NewConfigurationError("legion requires both speaker and selector")
	}
	if c.Legion.Speaker != "" {
		if _, ok := c.Agents[c.Legion.Speaker]; !ok {
			return llm.NewConfigurationError("legion speaker %q is not a configured agent", c.Legion.Speaker)
		}
		if _, ok := c.Agents[c.Legion.Selector]; !ok {
			return llm.NewConfigurationError("legion selector %q is not a configured agent", c.Legion.Selector)
		}
	}

	defaults := 0
	for name, agentCfg := range c.Agents {
		switch agentCfg.ResponseFormat {
		case "", string(llm.ResponseFormatText), string(llm.ResponseFormatJSONObject), string(llm.ResponseFormatJSONSchema):
		default:
			return llm.NewConfigurationError("agent %q has unknown response format %q", name, agentCfg.ResponseFormat)
		}
		if agentCfg.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return llm.NewConfigurationError("only one agent may be marked default, found %d", defaults)
	}
	return nil
}

// DefaultAgentName returns the name of the agent marked default, if any.
func (c *Config) DefaultAgentName() (string, bool) {
	for name, agentCfg := range c.Agents {
		if agentCfg.Default {
			return name, true
		}
	}
	return "", false
}

// LLMConfig resolves the transport config for the named agent. Agent
// settings win over provider overrides, which win over the built-in provider
// table. An empty name resolves from the chat defaults alone.
func (c *Config) LLMConfig(agentName string) llm.Config {
	cfg := llm.Config{
		Provider: c.Chat.Provider,
		Model:    c.Chat.Model,
	}

	if agentName != "" {
		if agentCfg, ok := c.Agents[agentName]; ok {
			if agentCfg.Provider != "" {
				cfg.Provider = agentCfg.Provider
				// A provider switch drops the chat-level model; model names
				// do not carry across providers.
				cfg.Model = ""
			}
			if agentCfg.Model != "" {
				cfg.Model = agentCfg.Model
			}
			if agentCfg.ResponseFormat != "" {
				cfg.ResponseFormat = llm.ResponseFormat(agentCfg.ResponseFormat)
			}
		}
	}

	if override, ok := c.Providers[cfg.Provider]; ok {
		if override.APIKey != "" {
			cfg.APIKey = override.APIKey
		}
		if cfg.APIKey == "" && override.APIKeyEnv != "" {
			cfg.APIKey = os.Getenv(override.APIKeyEnv)
		}
		if override.BaseURL != "" {
			cfg.BaseURL = override.BaseURL
		}
		if cfg.Model == "" && override.Model != "" {
			cfg.Model = override.Model
		}
	}
	return cfg
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
