// Package config loads the diary configuration from an optional YAML file,
// the environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mrcrgl/diariesai/generator"
	"github.com/mrcrgl/diariesai/publisher"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "diariesai.yaml"

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Environment variables that override the file.
const (
	EnvAssistantID  = "OPENAI_ASSISTANT_ID"
	EnvOrganization = "OPENAI_ORGANISATION"
	EnvAPIKey       = "OPENAI_API_KEY"
	EnvIGUser       = "IG_USER"
	EnvIGPass       = "IG_PASS"
)

// Config is the complete runtime configuration.
type Config struct {
	DataDir          string `yaml:"data_dir"`
	InstructionsPath string `yaml:"instructions_path"`
	SettingsPath     string `yaml:"settings_path"`
	Provider         string `yaml:"provider"`

	Assistant Assistant `yaml:"assistant"`
	Instagram Instagram `yaml:"instagram"`
	Prompts   Prompts   `yaml:"prompts"`
}

// Assistant configures the assistant and image service.
type Assistant struct {
	ID           string        `yaml:"id" validate:"required"`
	Organization string        `yaml:"organization"`
	APIKey       string        `yaml:"api_key" validate:"required"`
	BaseURL      string        `yaml:"base_url" validate:"omitempty,url"`
	Model        string        `yaml:"model" validate:"required"`
	ImageModel   string        `yaml:"image_model" validate:"required"`
	ImageSize    string        `yaml:"image_size" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	// MaxPolls bounds the wait for one job; 0 waits forever.
	MaxPolls int    `yaml:"max_polls" validate:"gte=0"`
	FollowUp string `yaml:"follow_up"`
}

// Instagram configures the publisher.
type Instagram struct {
	Username      string `yaml:"username" validate:"required"`
	Password      string `yaml:"password" validate:"required"`
	Locale        string `yaml:"locale" validate:"required"`
	BaseURL       string `yaml:"base_url" validate:"omitempty,url"`
	CaptionFormat string `yaml:"caption_format" validate:"oneof=plain raw"`
	// ReuseSession skips the password login while the stored session works.
	ReuseSession  bool   `yaml:"reuse_session"`
}

// Prompts are text/template strings. Default sees {{.Date}}; Prepare sees
// {{.Date}} and {{.Prompt}}.
type Prompts struct {
	Default string `yaml:"default"`
	Prepare string `yaml:"prepare"`
}

// Default prompt templates.
const (
	DefaultPromptTemplate = "Tagebucheintrag vom {{.Date}}"
	PreparePromptTemplate = "Tagebucheintrag vom {{.Date}}: {{.Prompt}}"
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		DataDir:          "data",
		InstructionsPath: "instructions.txt",
		SettingsPath:     publisher.DefaultSettingsPath,
		Provider:         ProviderOpenAI,
		Assistant: Assistant{
			Model:        generator.DefaultModel,
			ImageModel:   generator.DefaultImageModel,
			ImageSize:    generator.DefaultImageSize,
			PollInterval: generator.DefaultPollInterval,
			FollowUp:     generator.DefaultFollowUp,
		},
		Instagram: Instagram{
			Locale:        publisher.DefaultLocale,
			BaseURL:       publisher.DefaultBaseURL,
			CaptionFormat: publisher.CaptionRaw,
		},
		Prompts: Prompts{
			Default: DefaultPromptTemplate,
			Prepare: PreparePromptTemplate,
		},
	}
}

// Load reads path, fills defaults and applies environment overrides.
// A missing file is only an error when required is set.
func Load(path string, required bool, getenv func(string) string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if getenv != nil {
		merged.ApplyEnv(getenv)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// MergeWithDefaults returns a copy with zero fields taken from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	setString(&result.DataDir, defaults.DataDir)
	setString(&result.InstructionsPath, defaults.InstructionsPath)
	setString(&result.SettingsPath, defaults.SettingsPath)
	setString(&result.Provider, defaults.Provider)

	a, d := &result.Assistant, defaults.Assistant
	setString(&a.ID, d.ID)
	setString(&a.Organization, d.Organization)
	setString(&a.APIKey, d.APIKey)
	setString(&a.BaseURL, d.BaseURL)
	setString(&a.Model, d.Model)
	setString(&a.ImageModel, d.ImageModel)
	setString(&a.ImageSize, d.ImageSize)
	setString(&a.FollowUp, d.FollowUp)
	if a.PollInterval == 0 {
		a.PollInterval = d.PollInterval
	}
	if a.MaxPolls == 0 {
		a.MaxPolls = d.MaxPolls
	}

	ig, di := &result.Instagram, defaults.Instagram
	setString(&ig.Username, di.Username)
	setString(&ig.Password, di.Password)
	setString(&ig.Locale, di.Locale)
	setString(&ig.BaseURL, di.BaseURL)
	setString(&ig.CaptionFormat, di.CaptionFormat)

	setString(&result.Prompts.Default, defaults.Prompts.Default)
	setString(&result.Prompts.Prepare, defaults.Prompts.Prepare)

	return result
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// ApplyEnv overrides credentials with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Assistant.ID, EnvAssistantID)
	override(&c.Assistant.Organization, EnvOrganization)
	override(&c.Assistant.APIKey, EnvAPIKey)
	override(&c.Instagram.Username, EnvIGUser)
	override(&c.Instagram.Password, EnvIGPass)
}

// Validate checks the values every command needs. Credentials are checked
// separately by ValidateAssistant and ValidateInstagram, only when a command
// actually talks to the services.
func (c *Config) Validate() error {
	if err := validator.New().Var(c.Provider, "oneof=openai mock"); err != nil {
		return fmt.Errorf("config error: provider %q must be one of openai, mock", c.Provider)
	}
	if err := validator.New().Var(c.Instagram.CaptionFormat, "oneof=plain raw"); err != nil {
		return fmt.Errorf("config error: instagram.caption_format %q must be one of plain, raw", c.Instagram.CaptionFormat)
	}
	if c.DataDir == "" {
		return errors.New("config error: data_dir is empty")
	}
	if c.Assistant.MaxPolls < 0 {
		return errors.New("config error: assistant.max_polls must be non-negative")
	}
	return nil
}

// ValidateAssistant checks the assistant settings before generation. The
// mock provider needs no credentials.
func (c *Config) ValidateAssistant() error {
	if c.Provider == ProviderMock {
		return nil
	}
	if err := validator.New().Struct(c.Assistant); err != nil {
		return describe("assistant", err)
	}
	return nil
}

// ValidateInstagram checks the publisher settings before posting.
func (c *Config) ValidateInstagram() error {
	if err := validator.New().Struct(c.Instagram); err != nil {
		return describe("instagram", err)
	}
	return nil
}

var envHints = map[string]string{
	"assistant.id":       EnvAssistantID,
	"assistant.api_key":  EnvAPIKey,
	"instagram.username": EnvIGUser,
	"instagram.password": EnvIGPass,
}

// describe turns validator errors into messages naming the YAML key and,
// for credentials, the environment variable to set.
func describe(section string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config error: %s: %w", section, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := section + "." + yamlKey(fe.Field())
		msg := fmt.Sprintf("%s failed %s", key, fe.Tag())
		if fe.Tag() == "required" {
			msg = key + " is required"
			if env, ok := envHints[key]; ok {
				msg += " (set " + env + ")"
			}
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
}

var yamlKeys = map[string]string{
	"ID":            "id",
	"APIKey":        "api_key",
	"BaseURL":       "base_url",
	"ImageModel":    "image_model",
	"ImageSize":     "image_size",
	"PollInterval":  "poll_interval",
	"MaxPolls":      "max_polls",
	"FollowUp":      "follow_up",
	"CaptionFormat": "caption_format",
}

func yamlKey(field string) string {
	if k, ok := yamlKeys[field]; ok {
		return k
	}
	return strings.ToLower(field)
}
