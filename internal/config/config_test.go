package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test. Init reads the project
// config from the working directory.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		viper.Reset()
		os.Chdir(old)
	})
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Models.Primary)
	assert.Equal(t, "gpt-4o-mini", cfg.Models.Fallback)
	assert.Equal(t, "https://models.inference.ai.azure.com", cfg.GitHub.Endpoint)
	assert.Equal(t, "2024-08-01-preview", cfg.GitHub.APIVersion)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 4, cfg.Processing.ConcurrentRequests)
	assert.Equal(t, 3, cfg.Processing.MaxRetries)
	assert.True(t, cfg.Analytics.Enabled)
	assert.InDelta(t, 0.10, cfg.Analytics.ErrorRateAlert, 1e-9)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Security.RedactLogging)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestInit_ReadsProjectFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aurelis.yaml"), []byte(
		"models:\n  primary: codestral-2501\nserver:\n  port: 9090\n"), 0644))
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	Init("")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "codestral-2501", cfg.Models.Primary)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.Equal(t, "gpt-4o-mini", cfg.Models.Fallback)
}

func TestInit_ExplicitDisableRespected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aurelis.yaml"), []byte(
		"cache:\n  enabled: false\nanalytics:\n  enabled: false\n"), 0644))
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	Init("")
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Analytics.Enabled)
	// Disabling does not wipe the remaining defaults.
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.NotEmpty(t, cfg.Analytics.Dir)
}

func TestInit_CacheTTLAloneKeepsCacheEnabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aurelis.yaml"), []byte(
		"cache:\n  ttl: 30m\n"), 0644))
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	Init("")
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestInit_GithubTokenFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "ghp_fromplainenv")

	Init("")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ghp_fromplainenv", cfg.GitHub.Token)
}

func TestInit_PrefixedTokenWinsOverPlain(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "ghp_plain")
	t.Setenv("AURELIS_GITHUB_TOKEN", "ghp_prefixed")

	Init("")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ghp_prefixed", cfg.GitHub.Token)
}

func TestInit_FallsBackToUserConfig(t *testing.T) {
	home := t.TempDir()
	userDir := filepath.Join(home, UserConfigDir)
	require.NoError(t, os.MkdirAll(userDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(
		"models:\n  primary: mistral-large-2407\n"), 0644))

	// Working directory has no project config.
	chdir(t, t.TempDir())
	t.Setenv("HOME", home)

	Init("")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mistral-large-2407", cfg.Models.Primary)
}

func TestInit_ExplicitFilePinsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0644))
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	Init(path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, path, viper.ConfigFileUsed())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	viper.Set("server.port", 99999)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")

	viper.Reset()
	viper.Set("analytics.error_rate_alert", 1.5)
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_rate_alert")

	viper.Reset()
	viper.Set("models.primary", "gpt-99")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
}

func TestWriteProject(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteProject(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".aurelis.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "primary: gpt-4o")

	// Second init refuses to clobber the existing file.
	_, err = WriteProject(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestSaveUser(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path, err := SaveUser("models.primary", "codestral-2501")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(HomeDir(), "config.yaml"), path)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "codestral-2501", v.GetString("models.primary"))

	// Merges with existing keys instead of replacing the file.
	_, err = SaveUser("server.port", 9000)
	require.NoError(t, err)
	v = viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "codestral-2501", v.GetString("models.primary"))
	assert.Equal(t, 9000, v.GetInt("server.port"))
}

func TestSaveUser_RefusesToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := SaveUser("github.token", "ghp_secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing")
}
