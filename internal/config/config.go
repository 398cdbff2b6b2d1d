// Package config provides configuration management for yamlinc using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration is loaded once by the CLI and handed to the compiler
// and the watch orchestrator as an explicit value. Settings cover the
// include directive, recognized input extensions, the output directory,
// logging, and the timings of the watch loop.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/logging"
)

// Defaults applied when a setting is absent.
const (
	DefaultDirective = "$include"
	DefaultOutputDir = "."
	DefaultArmDelay  = time.Second
	DefaultAddGrace  = 15 * time.Second
	DefaultDebounce  = 100 * time.Millisecond
)

// DefaultExtensions are the input document extensions, without dots.
var DefaultExtensions = []string{"yml", "yaml"}

type Config struct {
	Directive  string      `mapstructure:"directive" yaml:"directive"`
	Extensions []string    `mapstructure:"extensions" yaml:"extensions"`
	OutputDir  string      `mapstructure:"output_dir" yaml:"output_dir"`
	Mute       bool        `mapstructure:"mute" yaml:"mute"`
	Log        LogConfig   `mapstructure:"log" yaml:"log"`
	Watch      WatchConfig `mapstructure:"watch" yaml:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type WatchConfig struct {
	// ArmDelay is how long after start-up change events start counting and
	// the child command is first launched.
	ArmDelay time.Duration `mapstructure:"arm_delay" yaml:"arm_delay"`
	// AddGrace is how long "add" events are ignored, so the initial burst
	// produced by scanning the tree does not trigger recompiles.
	AddGrace time.Duration `mapstructure:"add_grace" yaml:"add_grace"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	// Command is used when no command follows "--" on the command line.
	Command string   `mapstructure:"command" yaml:"command"`
	Ignore  []string `mapstructure:"ignore" yaml:"ignore"`
}

// Keys lists every configuration key.
var Keys = []string{
	"directive",
	"extensions",
	"output_dir",
	"mute",
	"log.level",
	"log.format",
	"watch.arm_delay",
	"watch.add_grace",
	"watch.debounce",
	"watch.command",
	"watch.ignore",
}

// BindEnv makes v consult the environment for every key. Call it after the
// env prefix and key replacer are set.
func BindEnv(v *viper.Viper) {
	for _, key := range Keys {
		_ = v.BindEnv(key)
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, viper.New())
	return cfg
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, yerrors.NewConfigError(fmt.Sprintf("failed to decode configuration: %v", err))
	}

	applyDefaults(&config, v)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	if config.Directive == "" {
		config.Directive = DefaultDirective
	}

	// viper hands comma separated env values over as a single string
	if len(config.Extensions) == 1 && strings.Contains(config.Extensions[0], ",") {
		config.Extensions = strings.Split(config.Extensions[0], ",")
	}
	if len(config.Extensions) == 0 {
		config.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range config.Extensions {
		config.Extensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}

	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = logging.FormatConsole
	}

	if !v.IsSet("watch.arm_delay") && config.Watch.ArmDelay == 0 {
		config.Watch.ArmDelay = DefaultArmDelay
	}
	if !v.IsSet("watch.add_grace") && config.Watch.AddGrace == 0 {
		config.Watch.AddGrace = DefaultAddGrace
	}
	if !v.IsSet("watch.debounce") && config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}
}

// Validate checks configuration values for correctness
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Directive) == "" {
		return yerrors.NewConfigError("directive must not be empty")
	}
	if len(c.Extensions) == 0 {
		return yerrors.NewConfigError("at least one input extension is required")
	}
	for _, ext := range c.Extensions {
		if ext == "" || strings.ContainsAny(ext, `/\`) {
			return yerrors.NewConfigError(fmt.Sprintf("invalid extension %q", ext))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return yerrors.NewConfigError(err.Error())
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatText, logging.FormatJSON:
	default:
		return yerrors.NewConfigError(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if c.Watch.ArmDelay < 0 || c.Watch.AddGrace < 0 || c.Watch.Debounce < 0 {
		return yerrors.NewConfigError("watch durations must not be negative")
	}
	if _, err := c.CommandArgs(); err != nil {
		return yerrors.NewConfigError(fmt.Sprintf("watch.command: %v", err))
	}

	return nil
}

// LoggerConfig builds the logger settings. Mute keeps only errors.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	level, _ := logging.ParseLevel(c.Log.Level)
	if c.Mute {
		level = logging.LevelError
	}
	return &logging.LoggerConfig{
		Level:  level,
		Format: c.Log.Format,
		Output: os.Stderr,
	}
}

// CommandArgs splits Watch.Command the way a POSIX shell would, expanding
// environment variables. An empty command yields no arguments.
func (c *Config) CommandArgs() ([]string, error) {
	if strings.TrimSpace(c.Watch.Command) == "" {
		return nil, nil
	}
	return shell.Fields(c.Watch.Command, os.Getenv)
}
