package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the indicators service.
type Config struct {
	// Upstream page and how to request it
	SourceURL         string        `mapstructure:"source_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`

	// Cache behaviour
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RefreshCron string        `mapstructure:"refresh_cron"`

	// HTTP surface and logging
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
}

// Flags returns the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("fundamentusapi", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("listen-addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	return fs
}

// Load reads configuration from defaults, an optional config file,
// environment variables and command-line flags, in increasing precedence.
// flags may be nil.
//
// Recognized environment variables:
//   - FUNDAMENTUS_URL (optional, defaults to production)
//   - FUNDAMENTUS_USER_AGENT
//   - REQUEST_TIMEOUT (e.g. "10s")
//   - REQUESTS_PER_MINUTE (0 disables limiting)
//   - CACHE_TTL (e.g. "1h")
//   - REFRESH_CRON (standard 5-field cron, empty disables)
//   - LISTEN_ADDR
//   - LOG_LEVEL, LOG_FORMAT
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("source_url", "https://www.fundamentus.com.br/resultado.php")
	v.SetDefault("user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("requests_per_minute", 6)
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("refresh_cron", "")
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.BindEnv("source_url", "FUNDAMENTUS_URL")
	v.BindEnv("user_agent", "FUNDAMENTUS_USER_AGENT")
	v.BindEnv("request_timeout", "REQUEST_TIMEOUT")
	v.BindEnv("requests_per_minute", "REQUESTS_PER_MINUTE")
	v.BindEnv("cache_ttl", "CACHE_TTL")
	v.BindEnv("refresh_cron", "REFRESH_CRON")
	v.BindEnv("listen_addr", "LISTEN_ADDR")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("log_format", "LOG_FORMAT")

	configPath := ""
	if flags != nil {
		configPath, _ = flags.GetString("config")
		if f := flags.Lookup("listen-addr"); f != nil && f.Changed {
			v.BindPFlag("listen_addr", f)
		}
		if f := flags.Lookup("log-level"); f != nil && f.Changed {
			v.BindPFlag("log_level", f)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fundamentusapi")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string

	if u, err := url.Parse(c.SourceURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("FUNDAMENTUS_URL must be an absolute http(s) URL, got %q", c.SourceURL))
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		problems = append(problems, "FUNDAMENTUS_USER_AGENT must not be empty")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if c.RequestsPerMinute < 0 {
		problems = append(problems, "REQUESTS_PER_MINUTE must not be negative")
	}
	if c.CacheTTL <= 0 {
		problems = append(problems, "CACHE_TTL must be positive")
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			problems = append(problems, fmt.Sprintf("REFRESH_CRON is invalid: %v", err))
		}
	}
	if c.ListenAddr == "" {
		problems = append(problems, "LISTEN_ADDR must not be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return level, nil
}
