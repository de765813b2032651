package batch

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"clinical_note_noiser/audit"
	"clinical_note_noiser/generator"
)

// Config is the process-wide configuration; it is not changed after startup.
type Config struct {
	LLM        LLMConfig   `yaml:"llm"`
	Retry      RetryConfig `yaml:"retry"`
	Batch      BatchConfig `yaml:"batch"`
	Audit      AuditConfig `yaml:"audit"`
	ServerAddr string      `yaml:"server_addr,omitempty"`
}

// LLMConfig selects and tunes the generation provider.
type LLMConfig struct {
	Provider        string   `yaml:"provider"`
	Model           string   `yaml:"model"`
	APIKey          string   `yaml:"api_key,omitempty"`
	APIKeyEnv       string   `yaml:"api_key_env,omitempty"`
	BaseURL         string   `yaml:"base_url,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
	MaxOutputTokens int64    `yaml:"max_output_tokens,omitempty"`
}

type RetryConfig struct {
	Backoff        []time.Duration `yaml:"backoff"`
	MinOutputChars int             `yaml:"min_output_chars"`
}

type BatchConfig struct {
	InDir   string        `yaml:"in_dir"`
	OutDir  string        `yaml:"out_dir"`
	Pattern string        `yaml:"pattern"`
	Delay   time.Duration `yaml:"delay"`
}

type AuditConfig struct {
	LogFile    string `yaml:"log_file"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// DefaultPattern selects the documents read from the input directory.
const DefaultPattern = "*.json"

var defaultAPIKeyEnv = map[string]string{
	"openai":   "OPENAI_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
	"gemini":   "GEMINI_API_KEY",
	"mock":     "",
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-5-mini",
		},
		Retry: RetryConfig{
			Backoff:        append([]time.Duration(nil), generator.DefaultBackoff...),
			MinOutputChars: generator.DefaultMinOutputChars,
		},
		Batch: BatchConfig{
			Pattern: DefaultPattern,
			Delay:   350 * time.Millisecond,
		},
		Audit: AuditConfig{
			LogFile: audit.DefaultLogFile,
		},
	}
}

// LoadConfig reads YAML (or JSON) config from disk on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks settings shared by every command.
func (c Config) Validate() error {
	if _, ok := defaultAPIKeyEnv[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Provider == "deepseek" && c.LLM.BaseURL == "" {
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
	}
	if c.LLM.Model == "" && c.LLM.Provider != "mock" {
		return errors.New("llm.model is required")
	}
	if c.LLM.Temperature != nil && *c.LLM.Temperature < 0 {
		return errors.New("llm.temperature must not be negative")
	}
	if c.LLM.MaxOutputTokens < 0 {
		return errors.New("llm.max_output_tokens must not be negative")
	}
	for i, d := range c.Retry.Backoff {
		if d < 0 {
			return fmt.Errorf("retry.backoff[%d] is negative", i)
		}
	}
	if c.Retry.MinOutputChars < 0 {
		return errors.New("retry.min_output_chars must not be negative")
	}
	if c.Batch.Delay < 0 {
		return errors.New("batch.delay must not be negative")
	}
	if c.Batch.Pattern != "" && !doublestar.ValidatePattern(c.Batch.Pattern) {
		return fmt.Errorf("batch.pattern %q is not a valid glob", c.Batch.Pattern)
	}
	if c.Audit.LogFile == "" && c.Audit.SQLitePath == "" {
		return errors.New("audit needs log_file or sqlite_path")
	}
	return nil
}

// ResolveAPIKey resolves the key inline first, then from the configured or provider default env var.
func (c LLMConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	env := c.APIKeyEnv
	if env == "" {
		env = defaultAPIKeyEnv[c.Provider]
	}
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// Settings converts the config into what provider constructors take.
func (c LLMConfig) Settings() *generator.LLMSettings {
	return &generator.LLMSettings{
		Provider:        c.Provider,
		Model:           c.Model,
		APIKey:          c.ResolveAPIKey(),
		BaseURL:         c.BaseURL,
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
	}
}
