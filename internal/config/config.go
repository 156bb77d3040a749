// Package config holds the settings of the plintools command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "~/.plintools/config.yaml"

type Config struct {
	// Baudrate overrides the description speed when nonzero.
	Baudrate    int               `yaml:"baudrate"`
	Log         LogConfig         `yaml:"log"`
	Gen         GenConfig         `yaml:"gen"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	PlotJuggler PlotJugglerConfig `yaml:"plotjuggler"`
	Redis       RedisConfig       `yaml:"redis"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GenConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ScheduleTable string        `yaml:"schedule_table"`
	// Seed makes the fuzz sequence reproducible when nonzero.
	Seed uint64 `yaml:"seed"`
}

type MonitorConfig struct {
	ChangedOnly bool `yaml:"changed_only"`
}

type PlotJugglerConfig struct {
	Addr   string `yaml:"addr"`
	Format string `yaml:"format"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	History  int64  `yaml:"history"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Gen: GenConfig{
			Interval: 100 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			ChangedOnly: true,
		},
		PlotJuggler: PlotJugglerConfig{
			Addr:   "127.0.0.1:9870",
			Format: "json",
		},
		Redis: RedisConfig{
			Channel: "linbus",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads path over the defaults. A leading ~ is expanded; a missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
