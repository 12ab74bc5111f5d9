package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/spf13/viper"
)

// Config file names in resolution order: CLI flag, environment, project
// .aurelis.yaml, user ~/.aurelis/config.yaml, system /etc/aurelis/config.yaml,
// built-in defaults.
const (
	ProjectConfigName = ".aurelis"
	UserConfigDir     = ".aurelis"
	SystemConfigDir   = "/etc/aurelis"
	EnvPrefix         = "AURELIS"
)

// Config represents the application configuration.
type Config struct {
	Models     ModelsConfig     `mapstructure:"models"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Security   SecurityConfig   `mapstructure:"security"`
	Server     ServerConfig     `mapstructure:"server"`
}

type ModelsConfig struct {
	// Primary/fallback apply when a task has no routing entry of its own.
	Primary     string            `mapstructure:"primary"`
	Fallback    string            `mapstructure:"fallback"`
	Temperature float64           `mapstructure:"temperature"`
	MaxTokens   int               `mapstructure:"max_tokens"`
	TaskRouting map[string]string `mapstructure:"task_routing"` // task type -> model override
}

type GitHubConfig struct {
	Token      string        `mapstructure:"token"` // normally via GITHUB_TOKEN, not the file
	Endpoint   string        `mapstructure:"endpoint"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	Dir        string        `mapstructure:"dir"`
}

type ProcessingConfig struct {
	ConcurrentRequests int           `mapstructure:"concurrent_requests"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

type AnalyticsConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Dir            string  `mapstructure:"dir"`
	ErrorRateAlert float64 `mapstructure:"error_rate_alert"` // fraction, 0 disables
	DailyCostAlert float64 `mapstructure:"daily_cost_alert"` // dollars, 0 disables
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

type SecurityConfig struct {
	APIKey        string `mapstructure:"api_key"` // local serve mode key, optional
	RedactLogging bool   `mapstructure:"redact_logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
}

// HomeDir returns the user-level aurelis directory (~/.aurelis).
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return UserConfigDir
	}
	return filepath.Join(home, UserConfigDir)
}

// Init wires viper to the documented resolution order. Called once from the
// CLI before any Load. cfgFile, if set, pins an explicit config file.
func Init(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(ProjectConfigName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.BindEnv("github.token", "AURELIS_GITHUB_TOKEN", "GITHUB_TOKEN")

	// Project file wins; user and system files are consulted only when no
	// project file exists.
	if err := viper.ReadInConfig(); err != nil && cfgFile == "" {
		for _, dir := range []string{HomeDir(), SystemConfigDir} {
			v := viper.New()
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(dir)
			if err := v.ReadInConfig(); err == nil {
				viper.SetConfigFile(v.ConfigFileUsed())
				viper.ReadInConfig()
				break
			}
		}
	}
}

// Load loads the configuration from viper state and environment.
func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// WriteProject writes a commented default project config (.aurelis.yaml)
// into dir. Used by `aurelis init`.
func WriteProject(dir string) (string, error) {
	path := filepath.Join(dir, ProjectConfigName+".yaml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(defaultProjectYAML), 0644); err != nil {
		return "", fmt.Errorf("failed to write project config: %w", err)
	}
	return path, nil
}

// SaveUser persists a single key into the user config file
// (~/.aurelis/config.yaml), creating it if needed. The GitHub token is never
// written by this path.
func SaveUser(key string, value interface{}) (string, error) {
	if key == "github.token" {
		return "", fmt.Errorf("refusing to store the GitHub token in a config file; use GITHUB_TOKEN or `aurelis auth login`")
	}

	dir := HomeDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.ReadInConfig() // missing file is fine, created below
	v.Set(key, value)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write user config: %w", err)
	}
	return path, nil
}

func setDefaults(cfg *Config) {
	if cfg.Models.Primary == "" {
		cfg.Models.Primary = "gpt-4o"
	}
	if cfg.Models.Fallback == "" {
		cfg.Models.Fallback = "gpt-4o-mini"
	}
	if cfg.Models.Temperature == 0 {
		cfg.Models.Temperature = 0.2
	}
	if cfg.Models.MaxTokens == 0 {
		cfg.Models.MaxTokens = 4096
	}

	if cfg.GitHub.Endpoint == "" {
		cfg.GitHub.Endpoint = "https://models.inference.ai.azure.com"
	}
	if cfg.GitHub.APIVersion == "" {
		cfg.GitHub.APIVersion = "2024-08-01-preview"
	}
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = 120 * time.Second
	}

	// Enabled defaults to true unless the user said otherwise; the struct
	// zero value cannot tell "false" from "unset".
	if !viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = true
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(HomeDir(), "cache")
	}

	if cfg.Processing.ConcurrentRequests == 0 {
		cfg.Processing.ConcurrentRequests = 4
	}
	if cfg.Processing.Timeout == 0 {
		cfg.Processing.Timeout = 300 * time.Second
	}
	if cfg.Processing.MaxRetries == 0 {
		cfg.Processing.MaxRetries = 3
	}
	if cfg.Processing.RetryDelay == 0 {
		cfg.Processing.RetryDelay = time.Second
	}

	if !viper.IsSet("analytics.enabled") {
		cfg.Analytics.Enabled = true
	}
	if cfg.Analytics.Dir == "" {
		cfg.Analytics.Dir = filepath.Join(HomeDir(), "analytics")
	}
	if cfg.Analytics.ErrorRateAlert == 0 {
		cfg.Analytics.ErrorRateAlert = 0.10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = filepath.Join(HomeDir(), "logs", "aurelis.log")
	}
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 50
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}

	cfg.Security.RedactLogging = true

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 300 * time.Second
	}
}

func validate(cfg *Config) error {
	for _, m := range []string{cfg.Models.Primary, cfg.Models.Fallback} {
		if _, ok := models.Lookup(m); !ok {
			return fmt.Errorf("unknown model: %q (see `aurelis models`)", m)
		}
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Processing.ConcurrentRequests < 1 {
		return fmt.Errorf("concurrent_requests must be >= 1")
	}
	if cfg.Analytics.ErrorRateAlert < 0 || cfg.Analytics.ErrorRateAlert > 1 {
		return fmt.Errorf("error_rate_alert must be within [0,1]")
	}
	return nil
}

const defaultProjectYAML = `# Aurelis project configuration.
# Resolution order: CLI flag > environment (AURELIS_*, GITHUB_TOKEN) >
# this file > ~/.aurelis/config.yaml > /etc/aurelis/config.yaml > defaults.

models:
  primary: gpt-4o
  fallback: gpt-4o-mini
  temperature: 0.2
  max_tokens: 4096
  # task_routing:
  #   code_generation: codestral-2501
  #   documentation: cohere-command-r

cache:
  enabled: true
  ttl: 1h
  max_entries: 1000

processing:
  concurrent_requests: 4
  timeout: 300s
  max_retries: 3

analytics:
  enabled: true

logging:
  level: info
`
