// Package config loads the bio generator settings from JSON or YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v3"

	"bio_generator/form"
	"bio_generator/generator"
)

// Config holds server, pipeline and model settings.
type Config struct {
	ServerAddr  string     `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	Timeout     Duration   `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
	ExtraModels []string   `json:"extra_models,omitempty" yaml:"extra_models,omitempty" validate:"dive,required"`
	ServiceURL  string     `json:"service_url,omitempty" yaml:"service_url,omitempty" validate:"omitempty,url"`
	Verbose     bool       `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	LLM         *LLMConfig `json:"llm,omitempty" yaml:"llm,omitempty"`
}

// LLMConfig selects the Generation Service backend.
type LLMConfig struct {
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"required,oneof=groq openai gemini http mock"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
}

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.parse(s)
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration: want string like \"30s\" or seconds, got %s", b)
	}
	*d = Duration(n * float64(time.Second))
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

const (
	DefaultServerAddr = ":8080"
	DefaultProvider   = "groq"
)

var defaultKeyEnv = map[string]string{
	"groq":   "GROQ_API_KEY",
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// Default returns settings that talk to Groq with the first allow-listed model.
func Default() Config {
	return Config{
		ServerAddr: DefaultServerAddr,
		Timeout:    Duration(form.DefaultTimeout),
		LLM: &LLMConfig{
			Provider: DefaultProvider,
			Model:    form.Models[0],
			BaseURL:  generator.GroqBaseURL,
		},
	}
}

// Load reads a JSON config from disk, or YAML when the file ends in .yaml or .yml.
// Unset fields keep their Default values and the API key is resolved from the environment.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	cfg.LLM = nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.ResolveAPIKey(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.LLM == nil {
		c.LLM = Default().LLM
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.LLM.Model == "" && c.LLM.Provider != "gemini" {
		c.LLM.Model = form.Models[0]
	}
	if c.LLM.Provider == "groq" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = generator.GroqBaseURL
	}
}

// ResolveAPIKey fills LLM.APIKey from api_key_env, or from the provider's conventional
// variable, when no key is set inline.
func (c *Config) ResolveAPIKey(getenv func(string) string) {
	if c.LLM == nil || c.LLM.APIKey != "" {
		return
	}
	env := c.LLM.APIKeyEnv
	if env == "" {
		env = defaultKeyEnv[c.LLM.Provider]
	}
	if env != "" {
		c.LLM.APIKey = getenv(env)
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.LLM != nil {
		if c.LLM.Provider == "http" && c.ServiceURL == "" {
			return errors.New("config: llm provider http requires service_url")
		}
		if c.LLM.Provider == "gemini" && c.LLM.Model == "" {
			return errors.New("config: llm provider gemini requires llm.model")
		}
	}
	return nil
}

// Schema returns the request schema with extra_models appended to the allow-list.
// A gemini backend cannot serve the built-in models, so its configured model is
// allowed and becomes the default.
func (c Config) Schema() form.Schema {
	schema := form.DefaultSchema().WithModels(c.ExtraModels...)
	if c.LLM != nil && c.LLM.Provider == "gemini" {
		schema = schema.WithDefaultModel(c.LLM.Model)
	}
	return schema
}

// LLMSettings converts the llm block for the generator package.
func (c Config) LLMSettings() *generator.LLMSettings {
	if c.LLM == nil {
		return nil
	}
	return &generator.LLMSettings{
		Provider:  c.LLM.Provider,
		Model:     c.LLM.Model,
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
		MaxTokens: c.LLM.MaxTokens,
	}
}
