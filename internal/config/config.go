// Package config loads maildigest configuration via viper with env
// overrides and optional hot reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full maildigest configuration.
type Config struct {
	Profile    ProfileConfig  `mapstructure:"profile" yaml:"profile"`
	Provider   ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Pipeline   PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Mail       MailConfig     `mapstructure:"mail" yaml:"mail"`
	Categories []string       `mapstructure:"categories" yaml:"categories"`
}

// ProfileConfig identifies the user; collected by the setup wizard and
// stamped into report headers.
type ProfileConfig struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

// ProviderConfig configures the generation backend.
type ProviderConfig struct {
	Name              string `mapstructure:"name" yaml:"name"`
	APIKey            string `mapstructure:"api_key" yaml:"api_key"`
	Model             string `mapstructure:"model" yaml:"model"`
	BaseURL           string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MinIntervalMillis int    `mapstructure:"min_interval_millis" yaml:"min_interval_millis"`
}

// Timeout returns the HTTP timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// MinInterval returns the minimum inter-call spacing as a duration.
func (p ProviderConfig) MinInterval() time.Duration {
	return time.Duration(p.MinIntervalMillis) * time.Millisecond
}

// PipelineConfig configures the chunking, retry, and batching mechanics.
// All knobs are passed to the core as explicit parameters; the core never
// reads configuration itself.
type PipelineConfig struct {
	SizeLimit           int       `mapstructure:"size_limit" yaml:"size_limit"`
	MaxHeaderChars      int       `mapstructure:"max_header_chars" yaml:"max_header_chars"`
	MaxTokens           int       `mapstructure:"max_tokens" yaml:"max_tokens"`
	TruncationRatios    []float64 `mapstructure:"truncation_ratios" yaml:"truncation_ratios"`
	BackoffSeconds      []int     `mapstructure:"backoff_seconds" yaml:"backoff_seconds"`
	CallTimeoutSeconds  int       `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	BatchLadder         []int     `mapstructure:"batch_ladder" yaml:"batch_ladder"`
	InitialBatchSize    int       `mapstructure:"initial_batch_size" yaml:"initial_batch_size"`
	MaxConcurrentUnits  int       `mapstructure:"max_concurrent_units" yaml:"max_concurrent_units"`
}

// BackoffDelays returns the transient delay ladder as durations.
func (p PipelineConfig) BackoffDelays() []time.Duration {
	out := make([]time.Duration, len(p.BackoffSeconds))
	for i, s := range p.BackoffSeconds {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// CallTimeout returns the hard per-call wall-clock limit.
func (p PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

// MailConfig configures the mail source.
type MailConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir,omitempty"`
	WindowDays int    `mapstructure:"window_days" yaml:"window_days"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("profile", defaults.Profile)
	viper.SetDefault("provider", defaults.Provider)
	viper.SetDefault("pipeline", defaults.Pipeline)
	viper.SetDefault("mail", defaults.Mail)
	viper.SetDefault("categories", defaults.Categories)

	// Environment variables with MAILDIGEST_ prefix
	viper.SetEnvPrefix("MAILDIGEST")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.maildigest")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Provider.APIKey = ResolveEnvVars(cfg.Provider.APIKey)
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

var envVarRe = regexp.MustCompile(`\$\{(\w+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
