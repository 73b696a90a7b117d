// Package config loads the stress harness configuration.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Stress modes.
const (
	ModeGated = "gated"
	ModeFree  = "free"
)

// Config represents the application configuration
type Config struct {
	Buffer  BufferConfig  `mapstructure:"buffer"`
	Stress  StressConfig  `mapstructure:"stress"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// BufferConfig describes the double buffer under test
type BufferConfig struct {
	Size   int  `mapstructure:"size"`
	Mapped bool `mapstructure:"mapped"` // place slots in an anonymous mapping
}

// StressConfig controls the writer and reader goroutines
type StressConfig struct {
	Readers        int           `mapstructure:"readers"`
	Duration       time.Duration `mapstructure:"duration"`
	ClearEvery     int           `mapstructure:"clearEvery"` // 0 disables clears
	ReportInterval time.Duration `mapstructure:"reportInterval"`
	Window         int           `mapstructure:"window"`    // samples in the moving average
	Mode           string        `mapstructure:"mode"`      // gated, free
	WriterCPU      int           `mapstructure:"writerCPU"` // -1 leaves the writer unpinned
}

// MetricsConfig represents the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("buffer.size", 4096)
	v.SetDefault("buffer.mapped", false)
	v.SetDefault("stress.readers", 4)
	v.SetDefault("stress.duration", 10*time.Second)
	v.SetDefault("stress.clearEvery", 0)
	v.SetDefault("stress.reportInterval", time.Second)
	v.SetDefault("stress.window", 10)
	v.SetDefault("stress.mode", ModeGated)
	v.SetDefault("stress.writerCPU", -1)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("log.level", "info")
}

// Load loads configuration from file. An empty path yields defaults,
// overridden by DBUF_* environment variables.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DBUF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the harness cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Buffer.Size <= 0:
		return errors.Errorf("buffer.size must be positive, got %d", c.Buffer.Size)
	case c.Stress.Readers <= 0:
		return errors.Errorf("stress.readers must be positive, got %d", c.Stress.Readers)
	case c.Stress.Duration <= 0:
		return errors.Errorf("stress.duration must be positive, got %s", c.Stress.Duration)
	case c.Stress.ClearEvery < 0:
		return errors.Errorf("stress.clearEvery must not be negative, got %d", c.Stress.ClearEvery)
	case c.Stress.ReportInterval <= 0:
		return errors.Errorf("stress.reportInterval must be positive, got %s", c.Stress.ReportInterval)
	case c.Stress.Window <= 0:
		return errors.Errorf("stress.window must be positive, got %d", c.Stress.Window)
	case c.Stress.WriterCPU < -1:
		return errors.Errorf("stress.writerCPU must be -1 or a CPU index, got %d", c.Stress.WriterCPU)
	}
	switch c.Stress.Mode {
	case ModeGated, ModeFree:
	default:
		return errors.Errorf("stress.mode must be %q or %q, got %q", ModeGated, ModeFree, c.Stress.Mode)
	}
	return nil
}
