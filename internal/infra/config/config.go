package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	// Port enables the status API when non-empty.
	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	OutDir         string `mapstructure:"out_dir" yaml:"out_dir"`
	Workers        int    `mapstructure:"workers" yaml:"workers"`
	MaxAttempts    int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	MirrorFailures int    `mapstructure:"mirror_failures" yaml:"mirror_failures"`
	MinSegmentSize int64  `mapstructure:"min_segment_size" yaml:"min_segment_size"`
	Resume         bool   `mapstructure:"resume" yaml:"resume"`
}

type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxIdlePerHost int           `mapstructure:"max_idle_per_host" yaml:"max_idle_per_host"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// Load reads the config file at path, falling back to defaults for anything
// unset. A missing file is not an error when path is the default location.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.max_attempts", 3)
	v.SetDefault("download.mirror_failures", 5)
	v.SetDefault("download.min_segment_size", int64(1<<20))
	v.SetDefault("download.resume", true)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", "metalinkdl/1.0")
	v.SetDefault("http.max_idle_per_host", 16)
	v.SetDefault("http.initial_backoff", "1s")
	v.SetDefault("http.max_backoff", "30s")
	v.SetDefault("log.path", "metalinkdl.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", false)

	explicit := path != ""
	if !explicit {
		path = "metalinkdl.yaml"
	}

	v.SetEnvPrefix("METALINKDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Download.Workers <= 0 {
		c.Download.Workers = 4
	}

	if c.Download.MaxAttempts <= 0 {
		c.Download.MaxAttempts = 3
	}

	if c.Download.MirrorFailures <= 0 {
		c.Download.MirrorFailures = 5
	}

	if c.Download.MinSegmentSize <= 0 {
		c.Download.MinSegmentSize = 1 << 20
	}

	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}

	return nil
}
