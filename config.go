package cand

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost        = "localhost"
	DefaultTimeout     = time.Second
	DefaultSettleDelay = 100 * time.Millisecond
)

type clientOptions struct {
	log      logrus.FieldLogger
	timeout  time.Duration
	settle   time.Duration
	odConfig string
	ports    Ports
}

func defaultOptions() clientOptions {
	return clientOptions{
		log:     logrus.StandardLogger(),
		timeout: DefaultTimeout,
		settle:  DefaultSettleDelay,
		ports:   DefaultPorts,
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *clientOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithTimeout sets how long a command waits for its reply.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSettleDelay sets the wait between the transport connecting and the
// first broadcast, so the daemon's subscription is in place.
func WithSettleDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		if d >= 0 {
			o.settle = d
		}
	}
}

// WithODConfig sets the dictionary config file pushed to the daemon on the
// first connect.
func WithODConfig(path string) Option {
	return func(o *clientOptions) {
		o.odConfig = path
	}
}

// WithPorts overrides the daemon ports used by Dial.
func WithPorts(p Ports) Option {
	return func(o *clientOptions) {
		o.ports = p
	}
}

// Config is the client section of a client config file.
type Config struct {
	Host          string `ini:"host" yaml:"host"`
	TimeoutMs     int    `ini:"timeout_ms" yaml:"timeout_ms"`
	SettleMs      int    `ini:"settle_ms" yaml:"settle_ms"`
	ODConfig      string `ini:"od_config" yaml:"od_config"`
	CommandPort   int    `ini:"command_port" yaml:"command_port"`
	SubscribePort int    `ini:"subscribe_port" yaml:"subscribe_port"`
	PublishPort   int    `ini:"publish_port" yaml:"publish_port"`
	LogLevel      string `ini:"log_level" yaml:"log_level"`
}

type yamlConfig struct {
	Client *Config `yaml:"client"`
}

// DefaultConfig returns the config used when no file is given.
func DefaultConfig() Config {
	return Config{
		Host:          DefaultHost,
		TimeoutMs:     int(DefaultTimeout / time.Millisecond),
		SettleMs:      int(DefaultSettleDelay / time.Millisecond),
		CommandPort:   DefaultPorts.Command,
		SubscribePort: DefaultPorts.Subscribe,
		PublishPort:   DefaultPorts.Publish,
		LogLevel:      "info",
	}
}

// LoadConfig reads a client config file. Files ending in .yaml or .yml are
// read as YAML with a top level client mapping, anything else as INI with a
// [client] section. Missing keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = loadYAMLConfig(path, &cfg)
	default:
		err = loadINIConfig(path, &cfg)
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("cand: config %s: %w", path, err)
	}
	return cfg, nil
}

func loadINIConfig(path string, cfg *Config) error {
	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return fmt.Errorf("cand: load config %s: %w", path, err)
	}
	if err := file.Section("client").MapTo(cfg); err != nil {
		return fmt.Errorf("cand: parse config %s: %w", path, err)
	}
	return nil
}

func loadYAMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cand: load config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &yamlConfig{Client: cfg}); err != nil {
		return fmt.Errorf("cand: parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges of the numeric settings.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is empty")
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	if c.SettleMs < 0 {
		return fmt.Errorf("settle_ms must not be negative, got %d", c.SettleMs)
	}
	for _, p := range []struct {
		name string
		port int
	}{
		{"command_port", c.CommandPort},
		{"subscribe_port", c.SubscribePort},
		{"publish_port", c.PublishPort},
	} {
		if p.port <= 0 || p.port > 0xFFFF {
			return fmt.Errorf("%s out of range: %d", p.name, p.port)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Ports returns the configured daemon ports.
func (c Config) Ports() Ports {
	return Ports{
		Command:   c.CommandPort,
		Subscribe: c.SubscribePort,
		Publish:   c.PublishPort,
	}
}

// Options converts the config into client options. The logger is a new
// logrus logger at the configured level.
func (c Config) Options() []Option {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	opts := []Option{
		WithLogger(log),
		WithTimeout(time.Duration(c.TimeoutMs) * time.Millisecond),
		WithSettleDelay(time.Duration(c.SettleMs) * time.Millisecond),
		WithPorts(c.Ports()),
	}
	if c.ODConfig != "" {
		opts = append(opts, WithODConfig(c.ODConfig))
	}
	return opts
}
