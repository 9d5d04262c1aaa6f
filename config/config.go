package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	Resolver  ResolverConfig  `yaml:"resolver"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	HTTP      HTTPConfig      `yaml:"http"`
	Audio     AudioConfig     `yaml:"audio"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Pushover  PushoverConfig  `yaml:"pushover"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ResolverConfig struct {
	Provider  string         `yaml:"provider"`
	Azure     AzureConfig    `yaml:"azure"`
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
}

type AzureConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type DispatchConfig struct {
	Timeout string `yaml:"resolver_timeout"`
	// HistoryTurns is nil when unset; 0 disables conversation history.
	HistoryTurns *int `yaml:"history_turns"`
}

type HTTPConfig struct {
	Addr              string `yaml:"addr"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
	MaxAudioBytes     int64  `yaml:"max_audio_bytes"`
}

type AudioConfig struct {
	Source     string `yaml:"source"`
	FileDir    string `yaml:"file_dir"`
	SampleRate int    `yaml:"sample_rate"`
}

// OpenAIConfig configures Whisper speech-to-text.
type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type TelemetryConfig struct {
	Tracing bool `yaml:"tracing"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigError lists required settings that are unset, by environment
// variable name.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// Load reads the YAML file at path (if any), expands ${VAR} references,
// fills unset credentials from the environment and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(os.Getenv(key))
		}
	}

	fill(&c.Resolver.Provider, "HOME_DISPATCH_PROVIDER")
	fill(&c.Resolver.Azure.Endpoint, "AZURE_OPENAI_ENDPOINT")
	fill(&c.Resolver.Azure.APIKey, "AZURE_OPENAI_API_KEY")
	fill(&c.Resolver.Azure.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	fill(&c.Resolver.Azure.APIVersion, "AZURE_OPENAI_API_VERSION")
	fill(&c.Resolver.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&c.Resolver.OpenAI.Model, "OPENAI_MODEL")
	fill(&c.Resolver.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	fill(&c.Resolver.Gemini.APIKey, "GEMINI_API_KEY")
	fill(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&c.Pushover.Token, "PUSHOVER_TOKEN")
	fill(&c.Pushover.UserKey, "PUSHOVER_USER_KEY")
	fill(&c.MQTT.BrokerURL, "MQTT_BROKER_URL")
}

const defaultHistoryTurns = 10

func (c *Config) setDefaults() {
	c.Resolver.Provider = strings.ToLower(strings.TrimSpace(c.Resolver.Provider))
	if c.Resolver.Provider == "" {
		c.Resolver.Provider = ProviderAzure
	}
	if c.Resolver.Azure.APIVersion == "" {
		c.Resolver.Azure.APIVersion = "2024-06-01"
	}
	if c.Resolver.OpenAI.Model == "" {
		c.Resolver.OpenAI.Model = "gpt-4.1"
	}
	if c.Resolver.Anthropic.Model == "" {
		c.Resolver.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Resolver.Gemini.Model == "" {
		c.Resolver.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Dispatch.Timeout == "" {
		c.Dispatch.Timeout = "30s"
	}
	if c.Dispatch.HistoryTurns == nil {
		turns := defaultHistoryTurns
		c.Dispatch.HistoryTurns = &turns
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestsPerMinute == 0 {
		c.HTTP.RequestsPerMinute = 30
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = 5
	}
	if c.HTTP.MaxAudioBytes == 0 {
		c.HTTP.MaxAudioBytes = 10 << 20
	}
	if c.Audio.Source == "" {
		c.Audio.Source = "file"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "en"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "home-dispatch"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// SessionHistory returns how many exchanges a conversation session keeps.
func (c *Config) SessionHistory() int {
	if c.Dispatch.HistoryTurns == nil {
		return defaultHistoryTurns
	}
	return *c.Dispatch.HistoryTurns
}

// ResolverTimeout returns the parsed dispatch timeout.
func (c *Config) ResolverTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Dispatch.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid dispatch.resolver_timeout %q: %w", c.Dispatch.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid dispatch.resolver_timeout %q: must be positive", c.Dispatch.Timeout)
	}
	return d, nil
}

// Validate checks what the selected resolver needs. Unset credentials are
// reported together as a *ConfigError.
func (c *Config) Validate() error {
	var missing []string
	need := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	switch c.Resolver.Provider {
	case ProviderAzure:
		need(c.Resolver.Azure.Endpoint, "AZURE_OPENAI_ENDPOINT")
		need(c.Resolver.Azure.APIKey, "AZURE_OPENAI_API_KEY")
		need(c.Resolver.Azure.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	case ProviderOpenAI:
		need(c.Resolver.OpenAI.APIKey, "OPENAI_API_KEY")
	case ProviderAnthropic:
		need(c.Resolver.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	case ProviderGemini:
		need(c.Resolver.Gemini.APIKey, "GEMINI_API_KEY")
	default:
		return fmt.Errorf("unknown resolver provider %q (want azure, openai, anthropic or gemini)", c.Resolver.Provider)
	}

	if c.Pushover.Enabled {
		need(c.Pushover.Token, "PUSHOVER_TOKEN")
		need(c.Pushover.UserKey, "PUSHOVER_USER_KEY")
	}
	if c.MQTT.Enabled {
		need(c.MQTT.BrokerURL, "MQTT_BROKER_URL")
	}

	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	if _, err := c.ResolverTimeout(); err != nil {
		return err
	}
	return nil
}
