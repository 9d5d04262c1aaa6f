package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var credentialVars = []string{
	"HOME_DISPATCH_PROVIDER",
	"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
	"OPENAI_API_KEY", "OPENAI_MODEL", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
	"PUSHOVER_TOKEN", "PUSHOVER_USER_KEY", "MQTT_BROKER_URL",
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range credentialVars {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderAzure, cfg.Resolver.Provider)
	assert.Equal(t, "2024-06-01", cfg.Resolver.Azure.APIVersion)
	assert.Equal(t, "gpt-4.1", cfg.Resolver.OpenAI.Model)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10, cfg.SessionHistory())
	assert.Equal(t, "info", cfg.Log.Level)

	timeout, err := cfg.ResolverTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("MY_CLAUDE_KEY", "sk-ant-test")

	path := writeConfig(t, `
resolver:
  provider: Anthropic
  anthropic:
    api_key: ${MY_CLAUDE_KEY}
dispatch:
  resolver_timeout: 5s
http:
  addr: ":9090"
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Resolver.Provider)
	assert.Equal(t, "sk-ant-test", cfg.Resolver.Anthropic.APIKey)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvFillsCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "azure-key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.Resolver.Azure.Endpoint)
	assert.Equal(t, "gpt-4o", cfg.Resolver.Azure.Deployment)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileValuesWinOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "from-env")

	path := writeConfig(t, `
resolver:
  provider: openai
  openai:
    api_key: from-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Resolver.OpenAI.APIKey)
	assert.Equal(t, "from-env", cfg.OpenAI.APIKey)
}

func TestValidate_ReportsMissingVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_DEPLOYMENT"}, cfgErr.Missing)
	assert.Contains(t, err.Error(), "AZURE_OPENAI_API_KEY, AZURE_OPENAI_DEPLOYMENT")
}

func TestValidate_OptionalIntegrations(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")

	path := writeConfig(t, `
resolver:
  provider: gemini
pushover:
  enabled: true
mqtt:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, []string{"PUSHOVER_TOKEN", "PUSHOVER_USER_KEY", "MQTT_BROKER_URL"}, cfgErr.Missing)
}

func TestValidate_UnknownProviderAndBadTimeout(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "resolver:\n  provider: llama\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "unknown resolver provider")

	t.Setenv("OPENAI_API_KEY", "k")
	cfg, err = Load(writeConfig(t, "resolver:\n  provider: openai\ndispatch:\n  resolver_timeout: soon\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "invalid dispatch.resolver_timeout")
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600))

	// godotenv does not override variables that are already set, even to "".
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("GEMINI_API_KEY"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_HistoryTurnsZeroIsKept(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, "dispatch:\n  history_turns: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Dispatch.HistoryTurns)
	assert.Equal(t, 0, cfg.SessionHistory())

	cfg, err = Load(writeConfig(t, "dispatch:\n  history_turns: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SessionHistory())
}
