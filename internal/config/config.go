package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/karupanerura/mq-cst/internal/parser"
	"github.com/karupanerura/mq-cst/internal/types"
)

const EnvName = "MQ_CST_CONFIG"

type Config struct {
	Parser ParserConfig `toml:"parser"`
	Server ServerConfig `toml:"server"`
}

type ParserConfig struct {
	// RecoveryWindow is unset when nil so that an explicit 0 can disable
	// token skipping.
	RecoveryWindow *int `toml:"recovery_window"`
	Debug          bool `toml:"debug"`
}

type ServerConfig struct {
	Listen        string   `toml:"listen"`
	SessionTTL    Duration `toml:"session_ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
	MaxTextBytes  int      `toml:"max_text_bytes"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load loads configuration from a TOML file. Environment variables in path
// are expanded.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)
	if _, err := os.Stat(path); err != nil {
		return nil, configError(fmt.Errorf("os.Stat: %w", err))
	}

	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, configError(fmt.Errorf("toml.DecodeFile: %w", err))
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, configError(fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", ")))
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError(err)
	}
	return &cfg, nil
}

// LoadFromEnv loads the file named by MQ_CST_CONFIG, or returns the defaults
// when it is not set.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvName)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if c.Parser.RecoveryWindow == nil {
		n := parser.DefaultRecoveryWindow
		c.Parser.RecoveryWindow = &n
	}

	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8080"
	}
	if c.Server.SessionTTL.Duration == 0 {
		c.Server.SessionTTL.Duration = 30 * time.Minute
	}
	if c.Server.SweepInterval.Duration == 0 {
		c.Server.SweepInterval.Duration = time.Minute
	}
	if c.Server.MaxTextBytes == 0 {
		c.Server.MaxTextBytes = 1 << 20
	}
}

func (c *Config) validate() error {
	if *c.Parser.RecoveryWindow < 0 {
		return fmt.Errorf("parser.recovery_window must not be negative: %d", *c.Parser.RecoveryWindow)
	}
	if c.Server.SessionTTL.Duration < 0 || c.Server.SweepInterval.Duration < 0 {
		return fmt.Errorf("server durations must not be negative")
	}
	if c.Server.MaxTextBytes < 0 {
		return fmt.Errorf("server.max_text_bytes must not be negative: %d", c.Server.MaxTextBytes)
	}
	return nil
}

// ParserOptions converts the parser section into parser options.
func (c *Config) ParserOptions() []parser.Option {
	return []parser.Option{
		parser.WithRecoveryWindow(*c.Parser.RecoveryWindow),
		parser.WithDebug(c.Parser.Debug),
	}
}

func configError(err error) error {
	return &types.Error{Tag: types.ConfigErrorTag, Err: err}
}
