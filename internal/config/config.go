package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL  = "http://localhost:3000"
	DefaultTeamCode = "TEAM123"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// StorageConfig holds run history settings. An empty path disables history.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig holds settings for repeated runs.
type WatchConfig struct {
	Interval Duration `yaml:"interval"`
}

// Config is the root application configuration.
type Config struct {
	BaseURL  string            `yaml:"base_url"`
	TeamCode string            `yaml:"team_code"`
	Password string            `yaml:"password"`
	Timeout  Duration          `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Storage  StorageConfig     `yaml:"storage"`
	Alerts   AlertsConfig      `yaml:"alerts"`
	Watch    WatchConfig       `yaml:"watch"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		BaseURL:  DefaultBaseURL,
		TeamCode: DefaultTeamCode,
		Alerts: AlertsConfig{
			Webhook: WebhookConfig{Cooldown: Duration{5 * time.Minute}},
		},
		Watch: WatchConfig{Interval: Duration{5 * time.Minute}},
	}
}

// Load reads and parses the config file at path on top of the defaults.
// The result is not validated; call Validate once all overrides are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Durations are decoded as strings so errors can name the offending key.
	type rawConfig struct {
		BaseURL  string            `yaml:"base_url"`
		TeamCode string            `yaml:"team_code"`
		Password string            `yaml:"password"`
		Timeout  string            `yaml:"timeout"`
		Headers  map[string]string `yaml:"headers"`
		Storage  StorageConfig     `yaml:"storage"`
		Alerts   struct {
			Webhook struct {
				URL      string `yaml:"url"`
				Cooldown string `yaml:"cooldown"`
			} `yaml:"webhook"`
		} `yaml:"alerts"`
		Watch struct {
			Interval string `yaml:"interval"`
		} `yaml:"watch"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := Default()
	if raw.BaseURL != "" {
		cfg.BaseURL = raw.BaseURL
	}
	if raw.TeamCode != "" {
		cfg.TeamCode = raw.TeamCode
	}
	cfg.Password = raw.Password
	cfg.Headers = raw.Headers
	cfg.Storage = raw.Storage
	cfg.Alerts.Webhook.URL = raw.Alerts.Webhook.URL

	durations := []struct {
		key string
		val string
		dst *Duration
	}{
		{"timeout", raw.Timeout, &cfg.Timeout},
		{"alerts.webhook.cooldown", raw.Alerts.Webhook.Cooldown, &cfg.Alerts.Webhook.Cooldown},
		{"watch.interval", raw.Watch.Interval, &cfg.Watch.Interval},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		dur, err := time.ParseDuration(d.val)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, d.val, err)
		}
		d.dst.Duration = dur
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment. Only BASE_URL is read.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("BASE_URL"); v != "" {
		c.BaseURL = v
	}
}

// ApplyArgs overrides the team code and password from positional arguments.
func (c *Config) ApplyArgs(args []string) {
	if len(args) > 0 && args[0] != "" {
		c.TeamCode = args[0]
	}
	if len(args) > 1 {
		c.Password = args[1]
	}
}

// Validate checks the final, fully overridden configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: must be an absolute http or https URL", c.BaseURL)
	}
	if c.TeamCode == "" {
		return fmt.Errorf("team_code is required")
	}
	if c.Timeout.Duration < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.Watch.Interval.Duration <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	if c.Alerts.Webhook.URL != "" {
		if _, err := url.ParseRequestURI(c.Alerts.Webhook.URL); err != nil {
			return fmt.Errorf("invalid alerts.webhook.url %q: %w", c.Alerts.Webhook.URL, err)
		}
	}
	return nil
}
